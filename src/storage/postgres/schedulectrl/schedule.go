package schedulectrl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"blogsmith/src/core/pipeline"
)

// ErrScheduleNotFound is returned when a referenced schedule does not exist.
var ErrScheduleNotFound = errors.New("schedule not found")

// Schedule is a recurring trigger configuration. Topics holds the manual
// rotation list (or recent AI suggestions) as a JSON string array.
type Schedule struct {
	ID          int64             `gorm:"primaryKey" json:"id"`
	Name        string            `gorm:"not null" json:"name"`
	CronExpr    string            `gorm:"not null" json:"cron_expr"`
	Timezone    string            `json:"timezone"`
	TopicSource string            `gorm:"not null" json:"topic_source"`
	Topics      json.RawMessage   `json:"topics,omitempty"`
	NextIndex   int               `json:"next_index"`
	FeedURL     string            `gorm:"column:feed_url" json:"feed_url,omitempty"`
	Category    pipeline.Category `gorm:"not null" json:"category"`
	Template    string            `json:"template,omitempty"`
	AutoApprove bool              `json:"auto_approve"`
	Enabled     bool              `gorm:"index" json:"enabled"`
	LastRunAt   *time.Time        `json:"last_run_at,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// TopicList decodes the Topics column.
func (s *Schedule) TopicList() []string {
	if len(s.Topics) == 0 {
		return nil
	}
	var topics []string
	if err := json.Unmarshal(s.Topics, &topics); err != nil {
		return nil
	}
	return topics
}

type ScheduleService struct {
	db        *gorm.DB
	snowflake *snowflake.Node
}

func NewScheduleService(db *gorm.DB) (*ScheduleService, error) {
	node, err := snowflake.NewNode(2) // Node number 2 for schedules
	if err != nil {
		return nil, fmt.Errorf("failed to create snowflake node: %v", err)
	}

	return &ScheduleService{
		db:        db,
		snowflake: node,
	}, nil
}

// AutoMigrate creates or updates the schedules table.
func (s *ScheduleService) AutoMigrate() error {
	return s.db.AutoMigrate(&Schedule{})
}

func (s *ScheduleService) Create(ctx context.Context, sched *Schedule) (*Schedule, error) {
	sched.ID = s.snowflake.Generate().Int64()
	result := s.db.WithContext(ctx).Create(sched)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to create schedule: %v", result.Error)
	}
	return sched, nil
}

func (s *ScheduleService) GetByID(ctx context.Context, id int64) (*Schedule, error) {
	var sched Schedule
	result := s.db.WithContext(ctx).First(&sched, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrScheduleNotFound
		}
		return nil, fmt.Errorf("failed to get schedule: %v", result.Error)
	}
	return &sched, nil
}

// ListEnabled returns every schedule the trigger should be running.
func (s *ScheduleService) ListEnabled(ctx context.Context) ([]Schedule, error) {
	var schedules []Schedule
	result := s.db.WithContext(ctx).
		Where("enabled = ?", true).
		Order("created_at ASC").
		Find(&schedules)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list schedules: %v", result.Error)
	}
	return schedules, nil
}

// MarkRun records a firing and advances the manual topic rotation.
func (s *ScheduleService) MarkRun(ctx context.Context, id int64, ranAt time.Time) error {
	result := s.db.WithContext(ctx).Model(&Schedule{}).Where("id = ?", id).Updates(map[string]interface{}{
		"last_run_at": ranAt,
		"next_index":  gorm.Expr("next_index + 1"),
	})
	if result.Error != nil {
		return fmt.Errorf("failed to mark schedule run: %v", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

func (s *ScheduleService) Delete(ctx context.Context, id int64) error {
	result := s.db.WithContext(ctx).Delete(&Schedule{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete schedule: %v", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrScheduleNotFound
	}
	return nil
}
