package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/pkg/amqp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"blogsmith/src/core/topics"
	"blogsmith/src/infrastructure/contentgen"
	"blogsmith/src/infrastructure/integrations/ollama"
	"blogsmith/src/infrastructure/queue"
	"blogsmith/src/infrastructure/scheduler"
	"blogsmith/src/log"
	"blogsmith/src/storage/postgres/jobctrl"
	"blogsmith/src/storage/postgres/schedulectrl"
)

var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Start the cron schedule trigger",
	Long: `The scheduler command runs stored cron schedules and enqueues an
auto-approved generation job each time one fires.`,
	RunE: runScheduler,
}

func init() {
	rootCmd.AddCommand(schedulerCmd)
	settingDefaultConfig()
}

func runScheduler(cmd *cobra.Command, args []string) error {
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
	schedules, err := schedulectrl.NewScheduleService(db)
	if err != nil {
		return fmt.Errorf("failed to initialize schedule store: %v", err)
	}
	if err := schedules.AutoMigrate(); err != nil {
		return fmt.Errorf("failed to migrate schedule table: %v", err)
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

	// LLM topic suggestion for schedules with the ai topic source
	ollamaClient := ollama.NewClient(viper.GetString("ollama.url"), &http.Client{})
	provider := ollama.NewProvider(ollamaClient, viper.GetString("ollama.model"))
	flow := contentgen.NewFlow(provider)

	picker := topics.NewPicker(flow)
	taskQueue := queue.NewService(amqpPublisher, wmLogger)
	trigger := scheduler.NewTrigger(schedules, store, picker, taskQueue)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		<-c
		log.Info("Shutting down scheduler...")
		cancel()
	}()

	if err := trigger.Run(ctx); err != nil && err != context.Canceled {
		return err
	}
	log.Info("Scheduler stopped")
	return nil
}
