package cmd

import (
	"github.com/spf13/afero"

	"gitlab.com/alternet/naming-service/cmd/backend"
)

var (
	networkService = &backend.Network{}
	utilsService   = &backend.Utils{}
	fileSystem     = afero.NewOsFs()
)

func init() {
	rootCmd.AddCommand(NewRunCmd(fileSystem))
	rootCmd.AddCommand(NewResolveCmd(networkService, utilsService))
	rootCmd.AddCommand(NewRegisterCmd(networkService, utilsService))
	rootCmd.AddCommand(NewDeregisterCmd(networkService, utilsService))
	rootCmd.AddCommand(NewGrantCmd(networkService, utilsService))
	rootCmd.AddCommand(NewSelfCmd(networkService, utilsService))
	rootCmd.AddCommand(NewKeygenCmd(fileSystem))
	rootCmd.AddCommand(NewVersionCmd())
}
