package cmd

import (
	"fmt"

	"github.com/buger/jsonparser"
	"github.com/spf13/cobra"

	"gitlab.com/alternet/naming-service/cmd/backend"
)

func NewResolveCmd(net backend.NetworkManager, utilsService backend.Utility) *cobra.Command {
	return &cobra.Command{
		Use:               "resolve <name>",
		Short:             "Resolve a name to its addresses",
		Long:              `Look the name up in the DHT and print the addresses of its validated record, one per line.`,
		Args:              cobra.ExactArgs(1),
		PersistentPreRunE: isNodeRunning(net),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, endpoint, err := nameEndpoint(args[0])
			if err != nil {
				return err
			}

			body, err := utilsService.ResponseBody("GET", endpoint, "", nil)
			if err != nil {
				return fmt.Errorf("unable to resolve %s: %w", args[0], err)
			}

			addrs, err := resolvedAddrs(body)
			if err != nil {
				return err
			}
			for _, addr := range addrs {
				fmt.Fprintln(cmd.OutOrStdout(), addr)
			}
			return nil
		},
	}
}

func resolvedAddrs(body []byte) ([]string, error) {
	var addrs []string
	_, err := jsonparser.ArrayEach(body, func(value []byte, dataType jsonparser.ValueType, offset int, err error) {
		addrs = append(addrs, string(value))
	}, "addrs")
	if err != nil {
		return nil, fmt.Errorf("cannot iterate over resolved addresses: %w", err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("no addresses in response")
	}
	return addrs, nil
}
