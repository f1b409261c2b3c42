// Package config holds the run configuration shared by every cluster command.  It is assembled once from
// flags and environment and never modified afterwards.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

const (
	DefaultBasePort     = 26650
	DefaultChainID      = "test-chain-y3m1e6-AB"
	DefaultEnclaveImage = "integration-tests-chain-tx-enclave"
	DefaultChainImage   = "integration-tests-chain"
	DefaultPeerHost     = "0.0.0.0"
	DefaultPassphrase   = "123456"
)

type Config struct {
	RootPath string
	BasePort int
	ChainID  string

	// SGXDevice is passed to the enclave container when set, switching it to hardware mode.
	SGXDevice    string
	EnclaveImage string
	// ChainImage runs the wallet and compiler tools when UseDocker is set.
	ChainImage string
	UseDocker  bool

	DevUtilCmd    string
	ClientCmd     string
	ChainCmd      string
	ClientRPCCmd  string
	TendermintCmd string

	PeerHost         string
	WalletPassphrase string
}

func Default() Config {
	return Config{
		RootPath:         ".",
		BasePort:         DefaultBasePort,
		ChainID:          DefaultChainID,
		EnclaveImage:     DefaultEnclaveImage,
		ChainImage:       DefaultChainImage,
		DevUtilCmd:       "dev-utils",
		ClientCmd:        "client-cli",
		ChainCmd:         "chain-abci",
		ClientRPCCmd:     "client-rpc",
		TendermintCmd:    "tendermint",
		PeerHost:         DefaultPeerHost,
		WalletPassphrase: DefaultPassphrase,
	}
}

// Resolve returns a validated copy with RootPath made absolute.
func (c Config) Resolve() (Config, error) {
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	root, err := filepath.Abs(c.RootPath)
	if err != nil {
		return Config{}, fmt.Errorf("unable to resolve root path %s: %w", c.RootPath, err)
	}
	c.RootPath = root
	return c, nil
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.RootPath) == "" {
		errs = append(errs, errors.New("root path must be set"))
	}
	if c.BasePort <= 0 || c.BasePort > 65535 {
		errs = append(errs, fmt.Errorf("base port %d out of range", c.BasePort))
	}
	if c.ChainID == "" {
		errs = append(errs, errors.New("chain id must be set"))
	}
	for name, value := range map[string]string{
		"dev-utils command":  c.DevUtilCmd,
		"client command":     c.ClientCmd,
		"chain command":      c.ChainCmd,
		"client-rpc command": c.ClientRPCCmd,
		"tendermint command": c.TendermintCmd,
		"enclave image":      c.EnclaveImage,
		"peer host":          c.PeerHost,
	} {
		if value == "" {
			errs = append(errs, fmt.Errorf("%s must be set", name))
		}
	}
	if c.UseDocker && c.ChainImage == "" {
		errs = append(errs, errors.New("chain image must be set when running tools in docker"))
	}
	return errors.Join(errs...)
}

// SGXMode is HW when an sgx device is configured, SW otherwise.
func (c Config) SGXMode() string {
	if c.SGXDevice != "" {
		return "HW"
	}
	return "SW"
}
