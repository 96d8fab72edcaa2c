package stream_test

import (
	"context"
	"testing"

	"blogsmith/src/core/pipeline"
	"blogsmith/src/core/stream"
)

func TestHubDeliversToSubscribers(t *testing.T) {
	hub := stream.NewHub()

	tokenA, chA := hub.Subscribe(1)
	tokenB, chB := hub.Subscribe(1)
	defer hub.Unsubscribe(1, tokenA)
	defer hub.Unsubscribe(1, tokenB)

	tokenOther, chOther := hub.Subscribe(2)
	defer hub.Unsubscribe(2, tokenOther)

	ev := pipeline.Event{JobID: 1, Kind: pipeline.EventProgress, Step: "research"}
	hub.Notify(context.Background(), ev)

	for _, ch := range []<-chan pipeline.Event{chA, chB} {
		select {
		case got := <-ch:
			if got.Step != "research" {
				t.Errorf("event step = %q, want research", got.Step)
			}
		default:
			t.Error("subscriber missed event")
		}
	}

	select {
	case got := <-chOther:
		t.Errorf("subscriber of job 2 received event for job %d", got.JobID)
	default:
	}
}

func TestHubUnsubscribeClosesChannel(t *testing.T) {
	hub := stream.NewHub()

	token, ch := hub.Subscribe(1)
	hub.Unsubscribe(1, token)

	if _, open := <-ch; open {
		t.Error("channel still open after Unsubscribe")
	}

	// Publishing after the last unsubscribe must not panic.
	hub.Publish(pipeline.Event{JobID: 1})
}

func TestHubDropsWhenSubscriberSlow(t *testing.T) {
	hub := stream.NewHub()

	token, ch := hub.Subscribe(1)
	defer hub.Unsubscribe(1, token)

	// Fill well past the subscriber buffer; Publish must never block.
	for i := 0; i < 100; i++ {
		hub.Publish(pipeline.Event{JobID: 1, Progress: i})
	}

	var received int
	for {
		select {
		case <-ch:
			received++
			continue
		default:
		}
		break
	}
	if received == 0 || received >= 100 {
		t.Errorf("received = %d, want some but not all events", received)
	}
}
