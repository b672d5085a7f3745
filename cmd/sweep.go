package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chosahoo/cafe24-cs-bot/internal/progress"
)

var (
	sweepBoards  []string
	sweepWorkers int
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one pass over the configured boards and process unanswered posts",
	Long: `Classifies the recent posts of each board and feeds every unanswered
question through the reply pipeline, honouring the answer_mode and
auto_reply_enabled settings. Posts already tracked are skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := appCfg
		if len(sweepBoards) > 0 {
			cfg.Boards = sweepBoards
		}
		if len(cfg.Boards) == 0 {
			return fmt.Errorf("no boards to sweep: set boards in %s or pass --board", cfgFile)
		}

		ctx := cmd.Context()
		a, err := buildApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		p := a.newPoller(sweepWorkers, logger)
		reports, sweepErr := p.SweepAll(ctx, func(boardID string) progress.Reporter {
			return progress.NewReporter("board " + boardID)
		})

		for i, r := range reports {
			if r == nil {
				fmt.Fprintf(os.Stderr, "board %s: failed\n", cfg.Boards[i])
				continue
			}
			fmt.Printf("board %s: %d unanswered, %d posted, %d suggested, %d tracked, %d already tracked, %d failed\n",
				r.BoardID, r.Unanswered, r.Posted, r.Suggested, r.Tracked, r.Duplicates, r.Failed)
			for _, w := range r.Warnings {
				fmt.Fprintf(os.Stderr, "  warning: %s\n", w)
			}
		}
		return sweepErr
	},
}

func init() {
	sweepCmd.Flags().StringSliceVar(&sweepBoards, "board", nil, "Board id to sweep (repeatable; defaults to the configured boards)")
	sweepCmd.Flags().IntVar(&sweepWorkers, "workers", 1, "Boards swept concurrently")
	rootCmd.AddCommand(sweepCmd)
}
