// Package elevconfig resolves runtime settings shared by the binaries:
// the controller endpoint, the fleet capacity and the log level.
package elevconfig

import (
	"fmt"
	"os"

	"github.com/go-yaml/yaml"
	"github.com/joho/godotenv"
)

const (
	DEFAULT_CONTROLLER_ADDRESS = "127.0.0.1:3000"
	DEFAULT_MAX_CARS           = 10
)

// Controller holds the dispatcher's tunables, read from controller.yaml
// when present.
type Controller struct {
	ListenAddress string `yaml:"ListenAddress"`
	MaxCars       int    `yaml:"MaxCars"`
}

// LoadEnv reads an optional .env file into the process environment. A
// missing file is not an error; the defaults stand.
func LoadEnv() {
	_ = godotenv.Load()
}

// ControllerAddress returns the dispatcher endpoint every client dials,
// overridable through CONTROLLER_ADDRESS.
func ControllerAddress() string {
	if addr := os.Getenv("CONTROLLER_ADDRESS"); addr != "" {
		return addr
	}
	return DEFAULT_CONTROLLER_ADDRESS
}

// LoadController reads the controller configuration file, falling back to
// defaults when the file is absent.
func LoadController(path string) (Controller, error) {
	cfg := Controller{
		ListenAddress: ControllerAddress(),
		MaxCars:       DEFAULT_MAX_CARS,
	}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read controller config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse controller config: %w", err)
	}
	if cfg.MaxCars < DEFAULT_MAX_CARS {
		cfg.MaxCars = DEFAULT_MAX_CARS
	}
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ControllerAddress()
	}
	return cfg, nil
}
