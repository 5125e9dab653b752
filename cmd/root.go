package cmd

import (
	"github.com/spf13/cobra"

	"gitlab.com/alternet/naming-service/docs"
)

var rootCmd = &cobra.Command{
	Use:     "alternet",
	Short:   "Alternet naming service",
	Long:    `Resolve, register and lease names in the Alternet DHT, and run the node that serves them.`,
	Version: docs.SwaggerInfo.Version,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: false,
		HiddenDefaultCmd:  true,
	},
	SilenceErrors: true,
	SilenceUsage:  true,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func Execute() {
	// CheckErr prints formatted error message, if there is any, and exits
	cobra.CheckErr(rootCmd.Execute())
}
