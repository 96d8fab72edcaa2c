package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	httpHdlr "blogsmith/handler/http"
	"blogsmith/src/core/pipeline"
	"blogsmith/src/core/stream"
	"blogsmith/src/infrastructure/queue"
	"blogsmith/src/log"
	"blogsmith/src/storage/minioctrl"
	"blogsmith/src/storage/postgres/jobctrl"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the pipeline API server",
	Long: `The serve command starts the HTTP server exposing job management, the
human review gates and the SSE event stream.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	settingDefaultConfig()
}

func runServe(cmd *cobra.Command, args []string) error {
	wmLogger := watermill.NewStdLogger(false, false)

	// Initialize PostgreSQL connection
	host := viper.GetString("postgres.host")
	user := viper.GetString("postgres.user")
	password := viper.GetString("postgres.password")
	dbname := viper.GetString("postgres.db")
	port := viper.GetString("postgres.port")

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		host, user, password, dbname, port)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying *sql.DB: %v", err)
	}
	defer sqlDB.Close()

	store, err := jobctrl.NewJobService(db)
	if err != nil {
		return fmt.Errorf("failed to initialize job store: %v", err)
	}
	if err := store.AutoMigrate(); err != nil {
		return fmt.Errorf("failed to migrate job tables: %v", err)
	}

	// Initialize AMQP publisher for enqueueing phase tasks
	amqpPublisher, err := amqp.NewPublisher(
		amqp.NewDurableQueueConfig(viper.GetString("amqp.url")),
		wmLogger,
	)
	if err != nil {
		return err
	}
	defer amqpPublisher.Close()

	// Initialize AMQP subscriber for the event stream bridge
	subscriberConfig := amqp.NewDurableQueueConfig(viper.GetString("amqp.url"))
	subscriberConfig.Consume.NoRequeueOnNack = true
	amqpSubscriber, err := amqp.NewSubscriber(subscriberConfig, wmLogger)
	if err != nil {
		return err
	}
	defer amqpSubscriber.Close()

	taskQueue := queue.NewService(amqpPublisher, wmLogger)
	hub := stream.NewHub()
	gates := pipeline.NewGateController(store, taskQueue, hub)

	thumbs, err := minioctrl.NewMinioService(
		viper.GetString("minio.endpoint"),
		viper.GetString("minio.access_key"),
		viper.GetString("minio.secret_key"),
		viper.GetBool("minio.use_ssl"),
	)
	if err != nil {
		log.Error(err, "Object storage unavailable, thumbnail endpoint disabled")
		thumbs = nil
	}

	// Bridge worker events from AMQP into the in-process stream hub
	router, err := message.NewRouter(message.RouterConfig{}, wmLogger)
	if err != nil {
		return err
	}
	router.AddMiddleware(middleware.Recoverer, middleware.CorrelationID)

	bridge := queue.NewEventBridge(hub)
	router.AddNoPublisherHandler(
		"event_bridge",
		queue.EventsTopic,
		amqpSubscriber,
		bridge.HandleMessage,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := router.Run(ctx); err != nil {
			log.Error(err, "Event bridge router stopped")
		}
	}()

	// Setup gin router
	r := gin.Default()
	handler := httpHdlr.NewHandler(store, gates, taskQueue, hub, thumbs)
	handler.RegisterRoutes(r)

	srv := &http.Server{
		Addr:    ":" + viper.GetString("server.port"),
		Handler: r,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(err, "Failed to start server")
		}
	}()
	log.Info("Server started", "port", viper.GetString("server.port"))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	timeout, err := time.ParseDuration(viper.GetString("server.shutdown_timeout"))
	if err != nil {
		log.Error(err, "Invalid shutdown timeout, using default 5s")
		timeout = 5 * time.Second
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
	defer shutdownCancel()

	cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "Server forced to shutdown")
	}

	log.Info("Server exited")
	return nil
}
