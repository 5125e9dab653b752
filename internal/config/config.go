package config

type Config struct {
	General   `mapstructure:"general"`
	Rest      `mapstructure:"rest"`
	P2P       `mapstructure:"p2p"`
	Naming    `mapstructure:"naming"`
	Telemetry `mapstructure:"telemetry"`
}

type General struct {
	DataDir string `mapstructure:"data_dir"`
	Debug   bool   `mapstructure:"debug"`
}

type Rest struct {
	Port int `mapstructure:"port"`
	// AllowedOrigins are the browser origins allowed to call the API.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type P2P struct {
	// Network is "libp2p", or "memory" for a node without peers.
	Network        string   `mapstructure:"network"`
	ListenAddress  []string `mapstructure:"listen_address"`
	BootstrapPeers []string `mapstructure:"bootstrap_peers"`
	KeyFile        string   `mapstructure:"key_file"`
	Server         bool     `mapstructure:"server"`
	DHTPrefix      string   `mapstructure:"dht_prefix"`
	QueryTimeout   int      `mapstructure:"query_timeout"` // in seconds
}

type Naming struct {
	// Domains are claimed on startup, in addition to those found in listen addresses.
	Domains           []string          `mapstructure:"domains"`
	RepublishInterval int               `mapstructure:"republish_interval"` // in minutes
	RepublishCron     string            `mapstructure:"republish_cron"`     // fires in addition to the interval
	TrustedRoots      map[string]string `mapstructure:"trusted_roots"`      // root name -> peer id
	EnableDeregister  bool              `mapstructure:"enable_deregister"`
	ControlQueueSize  int               `mapstructure:"control_queue_size"`
	ClaimsDB          string            `mapstructure:"claims_db"` // sqlite file, relative to general.data_dir
}

type Telemetry struct {
	// OtelEndpoint is the OTLP collector host:port; empty disables tracing.
	OtelEndpoint string `mapstructure:"otel_endpoint"`
	Insecure     bool   `mapstructure:"insecure"`
}
