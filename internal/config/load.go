package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"regexp"

	"github.com/spf13/viper"
)

var cfg Config
var home = os.Getenv("HOME")

func getViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName("alternet_config")
	v.SetConfigType("json")
	v.AddConfigPath(".")               // config file reading order starts with current working directory
	v.AddConfigPath("$HOME/.alternet") // then home directory
	v.AddConfigPath("/etc/alternet/")  // finally /etc/alternet
	return v
}

func setDefaultConfig() *viper.Viper {
	v := getViper()
	v.SetDefault("general.data_dir", home+"/.alternet")
	v.SetDefault("general.debug", false)
	v.SetDefault("rest.port", 9977)
	v.SetDefault("rest.allowed_origins", []string{})
	v.SetDefault("p2p.listen_address", []string{
		"/ip4/0.0.0.0/tcp/4077",
	})
	v.SetDefault("p2p.bootstrap_peers", []string{})
	v.SetDefault("p2p.key_file", "identity.key")
	v.SetDefault("p2p.network", "libp2p")
	v.SetDefault("p2p.server", false)
	v.SetDefault("p2p.dht_prefix", "/alternet")
	v.SetDefault("p2p.query_timeout", 60)
	v.SetDefault("naming.domains", []string{})
	v.SetDefault("naming.republish_interval", 12*60)
	v.SetDefault("naming.republish_cron", "")
	v.SetDefault("naming.trusted_roots", map[string]string{})
	v.SetDefault("naming.enable_deregister", false)
	v.SetDefault("naming.control_queue_size", 64)
	v.SetDefault("naming.claims_db", "claims.db")
	v.SetDefault("telemetry.otel_endpoint", "")
	v.SetDefault("telemetry.insecure", false)
	return v
}

func LoadConfig() {
	paths := []string{
		".",
		home + "/.alternet",
		"/etc/alternet",
	}
	configFile := "alternet_config.json"
	v := setDefaultConfig()

	config, err := findConfig(paths, configFile)
	if err != nil {
		setDefaultConfig().Unmarshal(&cfg)
		return
	}

	modifiedConfig := removeComments(config)
	if err = v.ReadConfig(bytes.NewBuffer(modifiedConfig)); err != nil { // Viper only reads buffer, keeping comments in original config
		setDefaultConfig().Unmarshal(&cfg)
		return
	}

	if err = v.Unmarshal(&cfg); err != nil {
		setDefaultConfig().Unmarshal(&cfg)
	}
}

// SetConfig overrides a single key on top of the defaults, e.g. from a CLI flag.
func SetConfig(key string, value interface{}) {
	v := setDefaultConfig()
	if config, err := findConfig([]string{".", home + "/.alternet", "/etc/alternet"}, "alternet_config.json"); err == nil {
		_ = v.ReadConfig(bytes.NewBuffer(removeComments(config)))
	}
	v.Set(key, value)
	err := v.Unmarshal(&cfg)
	if err != nil {
		setDefaultConfig().Unmarshal(&cfg)
	}
}

func GetConfig() *Config {
	if reflect.DeepEqual(cfg, Config{}) {
		LoadConfig()
	}
	return &cfg
}

func findConfig(paths []string, filename string) ([]byte, error) {
	for _, path := range paths {
		fullPath := filepath.Join(path, filename)
		_, err := os.Stat(fullPath)
		if err == nil {
			config, err := os.ReadFile(fullPath)
			if err == nil {
				return config, nil
			} else {
				return nil, err
			}
		}
	}

	return nil, fmt.Errorf("file not found in any of the paths")
}

// removeComments drops whole-line // comments. Comments after a value are
// not supported since "//" also appears in URLs.
func removeComments(configBytes []byte) []byte {
	re := regexp.MustCompile(`(?m)^[ \t]*//.*\n`)
	return re.ReplaceAll(configBytes, nil)
}
