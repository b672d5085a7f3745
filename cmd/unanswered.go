package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var unansweredJSON bool

var unansweredCmd = &cobra.Command{
	Use:   "unanswered <board-id>",
	Short: "List the unanswered customer questions on a board",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := buildApp(ctx, appCfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.service.ClassifyUnanswered(ctx, args[0])
		if err != nil {
			return err
		}

		if unansweredJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}

		for _, w := range res.Warnings {
			fmt.Fprintf(os.Stderr, "warning: %s\n", w)
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "POST\tCREATED\tAUTHOR\tTITLE")
		for _, p := range res.Posts {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.CreatedAt.In(shopLocation).Format("2006-01-02 15:04"), p.Author, p.Title)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Printf("\n%d unanswered post(s)\n", len(res.Posts))
		return nil
	},
}

func init() {
	unansweredCmd.Flags().BoolVar(&unansweredJSON, "json", false, "Print the result as JSON")
	rootCmd.AddCommand(unansweredCmd)
}
