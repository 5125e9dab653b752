package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"gitlab.com/alternet/naming-service/cmd/backend"
)

func NewRegisterCmd(net backend.NetworkManager, utilsService backend.Utility) *cobra.Command {
	return &cobra.Command{
		Use:   "register <name>",
		Short: "Claim a name for this node",
		Long: `Claim a top-level name, or publish this node's addresses under a subdomain
leased to it. The node keeps republishing the name until it is deregistered.`,
		Args:              cobra.ExactArgs(1),
		PersistentPreRunE: isNodeRunning(net),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, endpoint, err := nameEndpoint(args[0])
			if err != nil {
				return err
			}

			if _, err := utilsService.ResponseBody("POST", endpoint, "", nil); err != nil {
				return fmt.Errorf("unable to register %s: %w", name, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s\n", name)
			return nil
		},
	}
}

func NewDeregisterCmd(net backend.NetworkManager, utilsService backend.Utility) *cobra.Command {
	return &cobra.Command{
		Use:   "deregister <name>",
		Short: "Stop republishing a name",
		Long: `Forget a claimed name. Its records stay in the DHT until they expire, and
their expiry is not extended any more.`,
		Args:              cobra.ExactArgs(1),
		PersistentPreRunE: isNodeRunning(net),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, endpoint, err := nameEndpoint(args[0])
			if err != nil {
				return err
			}

			if _, err := utilsService.ResponseBody("DELETE", endpoint, "", nil); err != nil {
				return fmt.Errorf("unable to deregister %s: %w", name, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Stopped republishing %s\n", name)
			return nil
		},
	}
}
