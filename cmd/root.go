package cmd

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chosahoo/cafe24-cs-bot/internal/config"
)

var (
	cfgFile string
	verbose bool

	appCfg *config.Config
	logger = zap.NewNop()
)

// skipConfig marks commands that run before a config file exists.
const skipConfig = "skip-config"

var rootCmd = &cobra.Command{
	Use:   "csbot",
	Short: "AI auto-reply bridge for Cafe24 customer service boards",
	Long: `csbot watches Cafe24 Q&A boards for new customer questions, drafts
answers from the shop's manuals with an LLM, and either posts them
automatically or queues them for operator approval.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env is fine; the environment may already be set.
		_ = godotenv.Load()

		if cmd.Annotations[skipConfig] == "true" {
			return nil
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		l, err := newLogger(cfg.Log, verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		appCfg, logger = cfg, l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultPath, "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
