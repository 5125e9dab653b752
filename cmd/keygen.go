package cmd

import (
	"fmt"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"gitlab.com/alternet/naming-service/internal/config"
	"gitlab.com/alternet/naming-service/node"
)

func NewKeygenCmd(fs afero.Fs) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate the node identity",
		Long: `Generate an Ed25519 identity and store it where the node loads it from.
The peer id printed is the one to list in naming.trusted_roots of other nodes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString("output")
			force, _ := cmd.Flags().GetBool("force")
			if out == "" {
				cfg := config.GetConfig()
				out = node.DataPath(cfg, cfg.P2P.KeyFile)
			}

			priv, err := node.GenerateKey()
			if err != nil {
				return err
			}
			if err := node.WriteKey(fs, out, priv, force); err != nil {
				return fmt.Errorf("unable to store key: %w", err)
			}
			id, err := peer.IDFromPrivateKey(priv)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Peer ID: %s\nKey written to %s\n", id, out)
			return nil
		},
	}

	cmd.Flags().StringP("output", "o", "", "key file (defaults to p2p.key_file in the data dir)")
	cmd.Flags().BoolP("force", "f", false, "replace an existing key")
	return cmd
}
