package cmd

import (
	"context"
	"fmt"
	"net/http"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"blogsmith/src/core/pipeline"
	"blogsmith/src/fsutil"
	"blogsmith/src/infrastructure/contentgen"
	"blogsmith/src/infrastructure/integrations/ollama"
)

var (
	dryrunTopic    string
	dryrunCategory string
	dryrunTemplate string
	dryrunOut      string
	dryrunModel    string
)

// dryrunCmd represents the dryrun command
var dryrunCmd = &cobra.Command{
	Use:   "dryrun",
	Short: "Run the full pipeline locally for one topic",
	Long: `The dryrun command runs research, drafting, review, file creation and
validation for a single topic against an in-memory store. The review gates are
auto-approved and no pull request is created; the generated post is written to
the output directory.`,
	RunE: runDryrun,
}

func init() {
	rootCmd.AddCommand(dryrunCmd)
	settingDefaultConfig()

	dryrunCmd.Flags().StringVarP(&dryrunTopic, "topic", "t", "", "Post topic (required)")
	dryrunCmd.Flags().StringVarP(&dryrunCategory, "category", "c", "tech", "Post category (tech or life)")
	dryrunCmd.Flags().StringVar(&dryrunTemplate, "template", "", "Post template name")
	dryrunCmd.Flags().StringVarP(&dryrunOut, "out", "o", "./content", "Output content directory")
	dryrunCmd.Flags().StringVarP(&dryrunModel, "model", "m", "", "Model to use (defaults to ollama.model)")

	dryrunCmd.MarkFlagRequired("topic")
}

// progressBarNotifier renders pipeline events as a terminal progress bar.
type progressBarNotifier struct {
	bar *progressbar.ProgressBar
}

func (n *progressBarNotifier) Notify(_ context.Context, ev pipeline.Event) {
	if ev.Step != "" {
		n.bar.Describe(fmt.Sprintf("[%s] %s", ev.Step, ev.Message))
	}
	n.bar.Set(ev.Progress)
}

// syncEnqueuer executes enqueued phases inline instead of publishing them.
type syncEnqueuer struct {
	executor *pipeline.Executor
}

func (s *syncEnqueuer) EnqueuePhase(ctx context.Context, jobID int64, phase pipeline.Phase) error {
	return s.executor.Run(ctx, jobID, phase)
}

func runDryrun(cmd *cobra.Command, args []string) error {
	category := pipeline.Category(dryrunCategory)
	if !category.Valid() {
		return fmt.Errorf("unknown category %q", dryrunCategory)
	}

	model := dryrunModel
	if model == "" {
		model = viper.GetString("ollama.model")
	}

	ctx := context.Background()

	ollamaClient := ollama.NewClient(viper.GetString("ollama.url"), &http.Client{})
	provider := ollama.NewProvider(ollamaClient, model)
	flow := contentgen.NewFlow(provider)

	fs := fsutil.NewLocalFileStore()
	fileWriter := contentgen.NewFileWriter(dryrunOut, fs)
	validator := contentgen.NewFileValidator(fs)

	bar := progressbar.NewOptions(100,
		progressbar.OptionSetDescription("starting"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	store := pipeline.NewMemoryStore()
	executor := pipeline.NewExecutor(pipeline.ExecutorConfig{
		Store:     store,
		Tools:     flow,
		Files:     fileWriter,
		Validator: validator,
		Notifier:  &progressBarNotifier{bar: bar},
	})

	job, err := store.CreateJob(ctx, pipeline.CreateJobRequest{
		Topic:       dryrunTopic,
		Category:    category,
		Template:    dryrunTemplate,
		AutoApprove: true,
	})
	if err != nil {
		return err
	}

	if err := executor.Run(ctx, job.ID, pipeline.PhaseStart); err != nil {
		return fmt.Errorf("pipeline failed: %w", err)
	}

	// Skip the deploy gate: the generated file stays local
	gates := pipeline.NewGateController(store, &syncEnqueuer{executor: executor}, pipeline.NopNotifier{})
	if _, err := gates.DecideDeploy(ctx, job.ID, pipeline.ActionSkip); err != nil {
		return err
	}
	bar.Finish()

	job, err = store.GetJob(ctx, job.ID)
	if err != nil {
		return err
	}

	fmt.Println("Generated post:")
	fmt.Println("-------------------")
	fmt.Printf("Topic:    %s\n", job.Topic)
	fmt.Printf("File:     %s\n", job.Filepath)
	fmt.Printf("Status:   %s\n", job.Status)
	if len(job.ValidationResult) > 0 {
		fmt.Printf("Validation: %s\n", string(job.ValidationResult))
	}
	fmt.Println("-------------------")
	return nil
}
