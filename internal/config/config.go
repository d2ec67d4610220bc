package config

import (
	"log"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port    int  `yaml:"port"`
		Verbose bool `yaml:"verbose"`
	} `yaml:"server"`

	// StandaloneMode swaps the hardware bindings and backend clients for
	// mocks so the terminal runs with no reader and no network.
	StandaloneMode bool `yaml:"standalone_mode"`

	Store struct {
		ID        string `yaml:"id"`
		Name      string `yaml:"name"`
		APISecret string `yaml:"api_secret"`
	} `yaml:"store"`

	Backend struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"backend"`

	// Device paths for the line-oriented hardware agents. An empty path
	// means the capability is absent on this terminal and its affordance
	// is hidden.
	Devices struct {
		NFCReader string `yaml:"nfc_reader"`
		ToneIn    string `yaml:"tone_in"`
		ToneOut   string `yaml:"tone_out"`
		Haptic    string `yaml:"haptic"`
	} `yaml:"devices"`

	Redis struct {
		Addr string `yaml:"addr"` // empty: in-memory session cache
	} `yaml:"redis"`

	Wallet struct {
		Address string `yaml:"address"`
	} `yaml:"wallet"`

	Sound struct {
		ResetWindowSeconds int `yaml:"reset_window_seconds"`
	} `yaml:"sound"`
}

func Load(path string) *Config {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("Failed to read config file: %v", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		log.Fatalf("Failed to parse config file: %v", err)
	}

	if config.Sound.ResetWindowSeconds <= 0 {
		config.Sound.ResetWindowSeconds = 3
	}

	return &config
}
