package common

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

// SeedCurrency is one configured currency in the seed file.
type SeedCurrency struct {
	Symbol  string `yaml:"symbol"`
	Name    string `yaml:"name"`
	Type    string `yaml:"type"` // crypto or fiat
	IconUrl string `yaml:"icon_url"`
}

// SeedPaymentMethod is one receiving account in the seed file.
type SeedPaymentMethod struct {
	Method     string `yaml:"method"`
	DetailType string `yaml:"detail_type"`
	Details    string `yaml:"details"`
	QrCodeUrl  string `yaml:"qr_code_url"`
}

// SeedPair is one tradable pair in the seed file. PaymentMethod refers to a
// payment method by its Method label.
type SeedPair struct {
	From          string  `yaml:"from"`
	To            string  `yaml:"to"`
	Fee           float64 `yaml:"fee"`
	FeeType       string  `yaml:"fee_type"`
	PaymentMethod string  `yaml:"payment_method"`
}

// SeedConfig is the full catalog seeded by cmd/setup.
type SeedConfig struct {
	Currencies     []SeedCurrency      `yaml:"currencies"`
	PaymentMethods []SeedPaymentMethod `yaml:"payment_methods"`
	Pairs          []SeedPair          `yaml:"pairs"`
}

func LoadSeedConfig(seedFile string) (*SeedConfig, error) {
	var seedPath string
	if filepath.IsAbs(seedFile) {
		seedPath = seedFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		seedPath = filepath.Join(wd, seedFile)
	}

	data, err := os.ReadFile(seedPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", seedFile, err)
	}

	var config SeedConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", seedFile, err)
	}

	for i, c := range config.Currencies {
		if c.Symbol == "" {
			return nil, fmt.Errorf("currency at index %d missing symbol", i)
		}
		if c.Type != "crypto" && c.Type != "fiat" {
			return nil, fmt.Errorf("currency %s has invalid type %q", c.Symbol, c.Type)
		}
	}
	for i, m := range config.PaymentMethods {
		if m.Method == "" || m.Details == "" {
			return nil, fmt.Errorf("payment method at index %d missing method or details", i)
		}
	}
	for i, p := range config.Pairs {
		if p.From == "" || p.To == "" {
			return nil, fmt.Errorf("pair at index %d missing from or to", i)
		}
	}

	return &config, nil
}
