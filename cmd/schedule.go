package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"blogsmith/src/core/pipeline"
	"blogsmith/src/core/topics"
	"blogsmith/src/storage/postgres/schedulectrl"
)

var (
	scheduleName        string
	scheduleCron        string
	scheduleTimezone    string
	scheduleSource      string
	scheduleTopics      string
	scheduleFeedURL     string
	scheduleCategory    string
	scheduleTemplate    string
	scheduleAutoApprove bool
	scheduleDisabled    bool
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Manage recurring generation schedules",
}

var scheduleAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a recurring generation schedule",
	RunE:  runScheduleAdd,
}

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enabled schedules",
	RunE:  runScheduleList,
}

var scheduleRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a schedule",
	Args:  cobra.ExactArgs(1),
	RunE:  runScheduleRemove,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
	scheduleCmd.AddCommand(scheduleAddCmd, scheduleListCmd, scheduleRemoveCmd)
	settingDefaultConfig()

	scheduleAddCmd.Flags().StringVarP(&scheduleName, "name", "n", "", "Schedule name (required)")
	scheduleAddCmd.Flags().StringVar(&scheduleCron, "cron", "", "Cron expression (required)")
	scheduleAddCmd.Flags().StringVar(&scheduleTimezone, "timezone", "", "IANA timezone, e.g. Asia/Taipei")
	scheduleAddCmd.Flags().StringVar(&scheduleSource, "source", topics.SourceManual, "Topic source: manual, rss or ai")
	scheduleAddCmd.Flags().StringVar(&scheduleTopics, "topics", "", "Comma-separated topic rotation list")
	scheduleAddCmd.Flags().StringVar(&scheduleFeedURL, "feed", "", "RSS feed URL for the rss source")
	scheduleAddCmd.Flags().StringVarP(&scheduleCategory, "category", "c", "tech", "Post category (tech or life)")
	scheduleAddCmd.Flags().StringVar(&scheduleTemplate, "template", "", "Post template name")
	scheduleAddCmd.Flags().BoolVar(&scheduleAutoApprove, "auto-approve", true, "Bypass the human review gate")
	scheduleAddCmd.Flags().BoolVar(&scheduleDisabled, "disabled", false, "Create the schedule disabled")

	scheduleAddCmd.MarkFlagRequired("name")
	scheduleAddCmd.MarkFlagRequired("cron")
}

func openScheduleService() (*schedulectrl.ScheduleService, func(), error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		viper.GetString("postgres.host"),
		viper.GetString("postgres.user"),
		viper.GetString("postgres.password"),
		viper.GetString("postgres.db"),
		viper.GetString("postgres.port"))
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	cleanup := func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}

	svc, err := schedulectrl.NewScheduleService(db)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to initialize schedule store: %v", err)
	}
	if err := svc.AutoMigrate(); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to migrate schedule table: %v", err)
	}
	return svc, cleanup, nil
}

func runScheduleAdd(cmd *cobra.Command, args []string) error {
	category := pipeline.Category(scheduleCategory)
	if !category.Valid() {
		return fmt.Errorf("unknown category %q", scheduleCategory)
	}

	switch scheduleSource {
	case topics.SourceManual:
		if scheduleTopics == "" {
			return fmt.Errorf("manual source requires --topics")
		}
	case topics.SourceRSS:
		if scheduleFeedURL == "" {
			return fmt.Errorf("rss source requires --feed")
		}
	case topics.SourceAI:
	default:
		return fmt.Errorf("unknown topic source %q", scheduleSource)
	}

	var topicsJSON json.RawMessage
	if scheduleTopics != "" {
		var list []string
		for _, topic := range strings.Split(scheduleTopics, ",") {
			if topic = strings.TrimSpace(topic); topic != "" {
				list = append(list, topic)
			}
		}
		data, err := json.Marshal(list)
		if err != nil {
			return err
		}
		topicsJSON = data
	}

	svc, cleanup, err := openScheduleService()
	if err != nil {
		return err
	}
	defer cleanup()

	sched, err := svc.Create(context.Background(), &schedulectrl.Schedule{
		Name:        scheduleName,
		CronExpr:    scheduleCron,
		Timezone:    scheduleTimezone,
		TopicSource: scheduleSource,
		Topics:      topicsJSON,
		FeedURL:     scheduleFeedURL,
		Category:    category,
		Template:    scheduleTemplate,
		AutoApprove: scheduleAutoApprove,
		Enabled:     !scheduleDisabled,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Created schedule %d (%s)\n", sched.ID, sched.Name)
	return nil
}

func runScheduleList(cmd *cobra.Command, args []string) error {
	svc, cleanup, err := openScheduleService()
	if err != nil {
		return err
	}
	defer cleanup()

	schedules, err := svc.ListEnabled(context.Background())
	if err != nil {
		return err
	}
	if len(schedules) == 0 {
		fmt.Println("No enabled schedules")
		return nil
	}

	for _, sched := range schedules {
		lastRun := "never"
		if sched.LastRunAt != nil {
			lastRun = sched.LastRunAt.Format("2006-01-02 15:04")
		}
		fmt.Printf("%d\t%s\t%q\t%s/%s\tlast run: %s\n",
			sched.ID, sched.Name, sched.CronExpr, sched.TopicSource, sched.Category, lastRun)
	}
	return nil
}

func runScheduleRemove(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("schedule id must be an integer: %v", err)
	}

	svc, cleanup, err := openScheduleService()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := svc.Delete(context.Background(), id); err != nil {
		return err
	}
	fmt.Printf("Removed schedule %d\n", id)
	return nil
}
