package cmd

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"gitlab.com/alternet/naming-service/cmd/backend"
	"gitlab.com/alternet/naming-service/internal/config"
	"gitlab.com/alternet/naming-service/naming/record"
)

func listenRestPort(net backend.NetworkManager) (bool, error) {
	port := config.GetConfig().Rest.Port

	conns, err := net.GetConnections("all")
	if err != nil {
		return false, err
	}

	for _, conn := range conns {
		if conn.Status == "LISTEN" && uint32(port) == conn.Laddr.Port {
			return true, nil
		}
	}

	return false, nil
}

// isNodeRunning is intended to be used as a PreRun hook and ensure that the
// node is running before command execution
func isNodeRunning(net backend.NetworkManager) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		open, err := listenRestPort(net)
		if err != nil {
			return fmt.Errorf("unable to check the node API port: %w", err)
		}

		if !open {
			return fmt.Errorf("looks like the naming service is not running... \n\nSee: alternet run --help")
		}

		return nil
	}
}

// nameEndpoint validates name and returns the API path for it.
func nameEndpoint(arg string) (record.Name, string, error) {
	name, err := record.ParseName(arg)
	if err != nil {
		return record.Name{}, "", err
	}
	return name, "/api/v1/names/" + url.PathEscape(name.String()), nil
}
