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
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"blogsmith/src/core/pipeline"
	"blogsmith/src/fsutil"
	"blogsmith/src/infrastructure/contentgen"
	"blogsmith/src/infrastructure/github"
	"blogsmith/src/infrastructure/integrations/imagegen"
	"blogsmith/src/infrastructure/integrations/ollama"
	"blogsmith/src/infrastructure/queue"
	"blogsmith/src/log"
	"blogsmith/src/storage/minioctrl"
	"blogsmith/src/storage/postgres/jobctrl"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the background pipeline worker",
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
	settingDefaultConfig()
}

func runWorker(cmd *cobra.Command, args []string) error {
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

	// Initialize AMQP publisher
	amqpPublisher, err := amqp.NewPublisher(
		amqp.NewDurableQueueConfig(viper.GetString("amqp.url")),
		wmLogger,
	)
	if err != nil {
		return err
	}
	defer amqpPublisher.Close()

	// Initialize AMQP subscriber
	subscriberConfig := amqp.NewDurableQueueConfig(viper.GetString("amqp.url"))
	subscriberConfig.Consume.NoRequeueOnNack = true
	amqpSubscriber, err := amqp.NewSubscriber(subscriberConfig, wmLogger)
	if err != nil {
		return err
	}
	defer amqpSubscriber.Close()

	// Initialize router
	router, err := message.NewRouter(message.RouterConfig{}, wmLogger)
	if err != nil {
		return err
	}
	router.AddMiddleware(
		middleware.Recoverer,
		middleware.CorrelationID,
		middleware.Retry{
			MaxRetries:      3,
			InitialInterval: time.Second,
			Logger:          wmLogger,
		}.Middleware,
	)

	// Initialize MinioService for thumbnail storage
	minioService, err := minioctrl.NewMinioService(
		viper.GetString("minio.endpoint"),
		viper.GetString("minio.access_key"),
		viper.GetString("minio.secret_key"),
		viper.GetBool("minio.use_ssl"),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize minio service: %v", err)
	}

	// Initialize the LLM-backed content flow
	ollamaClient := ollama.NewClient(viper.GetString("ollama.url"), &http.Client{})
	provider := ollama.NewProvider(ollamaClient, viper.GetString("ollama.model"))
	flow := contentgen.NewFlow(provider)

	// Initialize file creation and validation against the content directory
	fs := fsutil.NewLocalFileStore()
	fileWriter := contentgen.NewFileWriter(viper.GetString("content.dir"), fs)
	validator := contentgen.NewFileValidator(fs)

	// Initialize thumbnail generation
	imageClient := imagegen.NewClient(viper.GetString("imagegen.url"), &http.Client{})
	thumbnailer := contentgen.NewThumbnailGenerator(imageClient, minioService)

	// Initialize GitHub pull request client
	prClient := github.NewClient(github.Config{
		BaseURL:    viper.GetString("github.api_url"),
		Token:      viper.GetString("github.token"),
		Owner:      viper.GetString("github.owner"),
		Repo:       viper.GetString("github.repo"),
		BaseBranch: viper.GetString("github.base_branch"),
	}, &http.Client{Timeout: 30 * time.Second})

	stepTimeout, err := time.ParseDuration(viper.GetString("pipeline.step_timeout"))
	if err != nil {
		log.Error(err, "Invalid step timeout, using default")
		stepTimeout = 0
	}

	executor := pipeline.NewExecutor(pipeline.ExecutorConfig{
		Store:         store,
		Tools:         flow,
		Thumbnailer:   thumbnailer,
		Files:         fileWriter,
		Validator:     validator,
		PullRequester: prClient,
		Notifier:      queue.NewEventPublisher(amqpPublisher, wmLogger),
		StepTimeout:   stepTimeout,
	})

	worker := queue.NewWorker(executor, wmLogger)
	router.AddNoPublisherHandler(
		"pipeline_worker",
		queue.TasksTopic,
		amqpSubscriber,
		worker.ProcessTask,
	)

	// Run the router
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := router.Run(ctx); err != nil {
			log.Error(err, "Worker router stopped")
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	<-c

	log.Info("Shutting down...")
	cancel()
	<-router.Running()
	log.Info("Router stopped")

	return nil
}
