package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"blogsmith/src/log"
)

var rootCmd = &cobra.Command{
	Use:   "blogsmith",
	Short: "AI blog content generation pipeline",
	Long: `Blogsmith researches, drafts, reviews and publishes blog posts through a
human-gated generation pipeline. Run one of the subcommands to start the API
server, the background worker or the schedule trigger.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return log.Setup(viper.GetBool("debug"))
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
