package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/Iwinswap/iwinswap-yield-aggregator-go/protocols/registry"
	"github.com/Iwinswap/iwinswap-yield-aggregator-go/settlement"
	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// TokenConfig is a token registered at startup. Fund is credited to the
// console depositor's wallet in whole tokens.
type TokenConfig struct {
	Address  string `yaml:"address"`
	Symbol   string `yaml:"symbol"`
	Decimals uint8  `yaml:"decimals"`
	Fund     string `yaml:"fund"`
}

// ProtocolConfig is a protocol registered at startup.
type ProtocolConfig struct {
	Name   string `yaml:"name"`
	Ref    string `yaml:"ref"`
	Kind   string `yaml:"kind"`
	APYBps uint64 `yaml:"apy_bps"`
}

type ConsoleConfig struct {
	Admin     string `yaml:"admin"`
	Custody   string `yaml:"custody"`
	Depositor string `yaml:"depositor"`

	// StoreDSN is a sqlite path; empty keeps state in memory only.
	StoreDSN string `yaml:"store_dsn"`
	// MetricsAddr serves /metrics when set.
	MetricsAddr string `yaml:"metrics_addr"`
	// GatewayURL dials a remote protocol gateway; empty uses simulated
	// protocols.
	GatewayURL      string                  `yaml:"gateway_url"`
	CheckInvariants bool                    `yaml:"check_invariants"`
	Policy          settlement.PolicyConfig `yaml:"policy"`

	Tokens    []TokenConfig    `yaml:"tokens"`
	Protocols []ProtocolConfig `yaml:"protocols"`
}

// LoadConfig reads a configuration file from the given path and unmarshals it
// into a ConsoleConfig struct.
func LoadConfig(path string) (*ConsoleConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg ConsoleConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *ConsoleConfig) validate() error {
	addresses := []struct{ field, value string }{
		{"admin", c.Admin},
		{"custody", c.Custody},
		{"depositor", c.Depositor},
	}
	for _, a := range addresses {
		if !common.IsHexAddress(a.value) {
			return fmt.Errorf("config: %s must be a hex address, got %q", a.field, a.value)
		}
	}
	if _, err := settlement.ParsePolicy(c.Policy); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	for i, t := range c.Tokens {
		if !common.IsHexAddress(t.Address) {
			return fmt.Errorf("config: tokens[%d].address must be a hex address", i)
		}
		if strings.TrimSpace(t.Symbol) == "" {
			return fmt.Errorf("config: tokens[%d].symbol is required", i)
		}
	}
	if len(c.Protocols) == 0 {
		return errors.New("config: at least one protocol is required")
	}
	for i, p := range c.Protocols {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("config: protocols[%d].name is required", i)
		}
		if !common.IsHexAddress(p.Ref) {
			return fmt.Errorf("config: protocols[%d].ref must be a hex address", i)
		}
		if _, err := registry.ParseKind(p.Kind); err != nil {
			return fmt.Errorf("config: protocols[%d]: %w", i, err)
		}
	}
	return nil
}

func (c *ConsoleConfig) AdminAddress() common.Address     { return common.HexToAddress(c.Admin) }
func (c *ConsoleConfig) CustodyAddress() common.Address   { return common.HexToAddress(c.Custody) }
func (c *ConsoleConfig) DepositorAddress() common.Address { return common.HexToAddress(c.Depositor) }

// ParsedKind returns the strategy kind. LoadConfig has already validated it.
func (p ProtocolConfig) ParsedKind() registry.Kind {
	k, _ := registry.ParseKind(p.Kind)
	return k
}
