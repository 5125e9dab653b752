package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/buger/jsonparser"
	"github.com/dustin/go-humanize"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/spf13/cobra"

	"gitlab.com/alternet/naming-service/api"
	"gitlab.com/alternet/naming-service/cmd/backend"
	"gitlab.com/alternet/naming-service/naming/record"
)

func NewGrantCmd(net backend.NetworkManager, utilsService backend.Utility) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grant <subdomain> <peer-id>",
		Short: "Lease a subdomain to another peer",
		Long: `Sign a lease of a subdomain of a name this node holds to another peer, which may
then register it. The lease is republished until it ends.`,
		Args:              cobra.ExactArgs(2),
		PersistentPreRunE: isNodeRunning(net),
		RunE: func(cmd *cobra.Command, args []string) error {
			ttl, _ := cmd.Flags().GetDuration("ttl")
			until, _ := cmd.Flags().GetString("until")

			data, err := setGrantData(args[0], args[1], ttl, until)
			if err != nil {
				return err
			}

			body, err := utilsService.ResponseBody("POST", "/api/v1/leases", "", data)
			if err != nil {
				return fmt.Errorf("unable to grant %s: %w", args[0], err)
			}

			return printGrant(cmd, body)
		},
	}

	cmd.Flags().Duration("ttl", 30*24*time.Hour, "how long the lease lasts")
	cmd.Flags().String("until", "", "end of the lease as an RFC 3339 timestamp (overrides --ttl)")
	return cmd
}

// setGrantData validates the arguments and marshals them into a grant request.
func setGrantData(subdomain, leasee string, ttl time.Duration, until string) ([]byte, error) {
	name, err := record.ParseName(subdomain)
	if err != nil {
		return nil, err
	}
	if name.IsRoot() {
		return nil, fmt.Errorf("%s is a top-level name, only subdomains can be leased", name)
	}
	if _, err := peer.Decode(leasee); err != nil {
		return nil, fmt.Errorf("invalid peer id %q: %w", leasee, err)
	}

	req := api.GrantRequest{Subdomain: name.String(), Leasee: leasee}
	if until != "" {
		end, err := time.Parse(time.RFC3339, until)
		if err != nil {
			return nil, fmt.Errorf("invalid --until: %w", err)
		}
		req.Until = &end
	} else {
		if ttl <= 0 {
			return nil, fmt.Errorf("--ttl must be positive")
		}
		req.TTL = ttl.String()
	}

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("unable to marshal JSON data: %w", err)
	}
	return data, nil
}

func printGrant(cmd *cobra.Command, body []byte) error {
	subdomain, err := jsonparser.GetString(body, "subdomain")
	if err != nil {
		return fmt.Errorf("failed to get subdomain from json response: %w", err)
	}
	leasee, err := jsonparser.GetString(body, "leasee")
	if err != nil {
		return fmt.Errorf("failed to get leasee from json response: %w", err)
	}
	rawUntil, err := jsonparser.GetString(body, "until")
	if err != nil {
		return fmt.Errorf("failed to get lease end from json response: %w", err)
	}
	until, err := time.Parse(time.RFC3339Nano, rawUntil)
	if err != nil {
		return fmt.Errorf("invalid lease end %q: %w", rawUntil, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Leased %s to %s until %s (%s)\n",
		subdomain, leasee, until.Format(time.RFC3339), humanize.Time(until))
	return nil
}
