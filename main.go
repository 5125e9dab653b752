package main

//	@title			Alternet Naming Service
//	@version		0.1.0
//	@description	Resolves, registers and leases names in the Alternet DHT.

//	@license.name	Apache 2.0
//	@license.url	http://www.apache.org/licenses/LICENSE-2.0.html

// @host		localhost:9977
// @BasePath	/api/v1

import (
	"gitlab.com/alternet/naming-service/cmd"
)

func main() {
	// Execute command-line interface; should be the last call in main()
	cmd.Execute()
}
