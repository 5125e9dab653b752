package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"gitlab.com/alternet/naming-service/docs"
)

func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Display the naming service version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "Alternet Naming Service Version: %s\n", docs.SwaggerInfo.Version)
		},
	}
}
