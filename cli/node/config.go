package node

import (
	"os"
	"path/filepath"

	"golang.org/x/xerrors"
	"gopkg.in/yaml.v2"
)

// ConfigFile is the name of the configuration file in the config folder.
const ConfigFile = "optreg.yaml"

// Config is the configuration of the node read from the config folder. Every
// field is optional.
//
//	log_level: debug
//	listen: 127.0.0.1:8080
//	gas_limit: 100000
//	tracing: true
type Config struct {
	// LogLevel overrides the level of the global logger.
	LogLevel string `yaml:"log_level"`

	// Listen is the address of the HTTP gateway. The gateway is disabled
	// when empty.
	Listen string `yaml:"listen"`

	// GasLimit is the gas limit of the transactions that do not specify one.
	// Zero keeps the default.
	GasLimit uint64 `yaml:"gas_limit"`

	// Tracing enables the Jaeger tracers, configured from the environment.
	Tracing bool `yaml:"tracing"`
}

// LoadConfig reads the configuration file of the folder. A missing file gives
// the empty configuration.
func LoadConfig(dir string) (Config, error) {
	var cfg Config

	data, err := os.ReadFile(filepath.Join(dir, ConfigFile))
	if os.IsNotExist(err) {
		return cfg, nil
	}

	if err != nil {
		return cfg, xerrors.Errorf("failed to read config: %v", err)
	}

	err = yaml.UnmarshalStrict(data, &cfg)
	if err != nil {
		return cfg, xerrors.Errorf("failed to parse config: %v", err)
	}

	return cfg, nil
}
