package cmd

import (
	"github.com/spf13/cobra"

	"github.com/chosahoo/cafe24-cs-bot/internal/config"
)

var initCmd = &cobra.Command{
	Use:         "init",
	Short:       "Initialize csbot configuration with an interactive wizard",
	Long:        `Runs an interactive wizard that connects csbot to a Cafe24 shop and writes the config file.`,
	Annotations: map[string]string{skipConfig: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard(cfgFile)
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
