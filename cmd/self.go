package cmd

import (
	"fmt"
	"time"

	"github.com/buger/jsonparser"
	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"gitlab.com/alternet/naming-service/cmd/backend"
)

func NewSelfCmd(net backend.NetworkManager, utilsService backend.Utility) *cobra.Command {
	return &cobra.Command{
		Use:               "self",
		Short:             "Display this node's identity, claims and grants",
		Args:              cobra.NoArgs,
		PersistentPreRunE: isNodeRunning(net),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := utilsService.ResponseBody("GET", "/api/v1/self", "", nil)
			if err != nil {
				return fmt.Errorf("unable to get /self response body: %w", err)
			}

			id, err := jsonparser.GetString(body, "peer_id")
			if err != nil {
				return fmt.Errorf("unable to get peer id string: %w", err)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, "Peer ID:", id)

			var claims []string
			_, err = jsonparser.ArrayEach(body, func(value []byte, dataType jsonparser.ValueType, offset int, err error) {
				claims = append(claims, string(value))
			}, "claims")
			if err != nil {
				return fmt.Errorf("cannot iterate over claims: %w", err)
			}

			fmt.Fprintf(w, "\nClaims (%d)\n", len(claims))
			for _, c := range claims {
				fmt.Fprintln(w, c)
			}

			rows, err := grantRows(body, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "\nGrants (%d)\n", len(rows))
			if len(rows) == 0 {
				return nil
			}

			table := tablewriter.NewWriter(w)
			table.SetHeader([]string{"Subdomain", "Leasee", "Until", "Ends"})
			table.SetAutoWrapText(false)
			table.AppendBulk(rows)
			table.Render()
			return nil
		},
	}
}

func grantRows(body []byte, now time.Time) ([][]string, error) {
	var (
		rows    [][]string
		iterErr error
	)
	_, err := jsonparser.ArrayEach(body, func(value []byte, dataType jsonparser.ValueType, offset int, err error) {
		if iterErr != nil {
			return
		}
		subdomain, _ := jsonparser.GetString(value, "subdomain")
		leasee, _ := jsonparser.GetString(value, "leasee")
		rawUntil, _ := jsonparser.GetString(value, "until")
		until, err := time.Parse(time.RFC3339Nano, rawUntil)
		if err != nil {
			iterErr = fmt.Errorf("invalid lease end %q for %s: %w", rawUntil, subdomain, err)
			return
		}
		rows = append(rows, []string{subdomain, leasee, until.Format(time.RFC3339), humanize.RelTime(until, now, "ago", "from now")})
	}, "grants")
	if err != nil {
		return nil, fmt.Errorf("cannot iterate over grants: %w", err)
	}
	return rows, iterErr
}
