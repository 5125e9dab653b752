package cmd

import (
	"context"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"gitlab.com/alternet/naming-service/internal"
	"gitlab.com/alternet/naming-service/internal/config"
	"gitlab.com/alternet/naming-service/node"
)

// runNode is swapped in tests.
var runNode = node.Run

func NewRunCmd(fs afero.Fs) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the naming service",
		Long: `Start the node: join the DHT, serve /an addresses through the naming transport,
republish claimed names and expose the REST API used by the other commands.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if flags.Changed("rest-port") {
				port, _ := flags.GetInt("rest-port")
				config.SetConfig("rest.port", port)
			}
			if flags.Changed("listen") {
				listen, _ := flags.GetStringSlice("listen")
				config.SetConfig("p2p.listen_address", listen)
			}
			if flags.Changed("domain") {
				domains, _ := flags.GetStringSlice("domain")
				config.SetConfig("naming.domains", domains)
			}
			if flags.Changed("server") {
				server, _ := flags.GetBool("server")
				config.SetConfig("p2p.server", server)
			}
			if flags.Changed("network") {
				network, _ := flags.GetString("network")
				config.SetConfig("p2p.network", network)
			}

			parent := cmd.Context()
			if parent == nil {
				parent = context.Background()
			}
			ctx, cancel := internal.ShutdownContext(parent)
			defer cancel()

			return runNode(ctx, config.GetConfig(), fs)
		},
	}

	cmd.Flags().Int("rest-port", 0, "port of the REST API (overrides rest.port)")
	cmd.Flags().StringSlice("listen", nil, "listen multiaddrs, may contain /an/<domain> (overrides p2p.listen_address)")
	cmd.Flags().StringSlice("domain", nil, "domains to claim on startup (overrides naming.domains)")
	cmd.Flags().Bool("server", false, "run the DHT in server mode (overrides p2p.server)")
	cmd.Flags().String("network", "", `"libp2p", or "memory" for a node without peers (overrides p2p.network)`)
	return cmd
}
