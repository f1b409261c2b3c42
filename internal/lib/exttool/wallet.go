package exttool

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"

	"github.com/leejw51crypto/crypto-chain-bot/internal/lib/misc"
)

type AddressType string

const (
	Staking  AddressType = "Staking"
	Transfer AddressType = "Transfer"
)

const DefaultWalletName = "Default"

var addressPatterns = map[AddressType]*regexp.Regexp{
	Staking:  regexp.MustCompile(`0x[0-9a-zA-Z]+`),
	Transfer: regexp.MustCompile(`dcro[0-9a-zA-Z]+`),
}

// ExtractAddress finds the first address of the given type in free-form wallet output.
func ExtractAddress(output []byte, addrType AddressType) (string, error) {
	pattern, found := addressPatterns[addrType]
	if !found {
		return "", fmt.Errorf("unknown address type:%s", addrType)
	}
	addr := pattern.Find(output)
	if addr == nil {
		return "", fmt.Errorf("%w: no %s address in wallet output %q", ErrExternalToolFailure, addrType, output)
	}
	return string(addr), nil
}

// Wallet derives addresses for a mnemonic using the client-cli wallet.  Each lookup restores the mnemonic
// into a throwaway storage directory, so nothing leaks between nodes.
type Wallet struct {
	runner     Runner
	logger     *slog.Logger
	cmd        string
	passphrase string
	name       string
	tempDir    string
}

func NewWallet(runner Runner, logger *slog.Logger, cmd, passphrase string) *Wallet {
	return &Wallet{
		runner:     runner,
		logger:     logger,
		cmd:        cmd,
		passphrase: passphrase,
		name:       DefaultWalletName,
	}
}

// WithTempDir sets the parent directory for the wallet storage directories (default os.TempDir).
func (w *Wallet) WithTempDir(dir string) *Wallet {
	w.tempDir = dir
	return w
}

// Addresses restores mnemonic then creates count new addresses of addrType, returned in creation order.
func (w *Wallet) Addresses(ctx context.Context, mnemonic string, addrType AddressType, count int) ([]string, error) {
	storage, err := os.MkdirTemp(w.tempDir, "wallet-")
	if err != nil {
		return nil, fmt.Errorf("unable to create wallet storage: %w", err)
	}
	defer os.RemoveAll(storage)

	env := []string{"CRYPTO_CLIENT_STORAGE=" + storage}
	_, err = w.runner.Run(ctx, Invocation{
		Name:   w.cmd,
		Args:   []string{"wallet", "restore", "--name", w.name},
		Stdin:  []byte(fmt.Sprintf("%[1]s\n%[1]s\n%[2]s\n%[2]s\n", w.passphrase, mnemonic)),
		Env:    env,
		Mounts: []string{storage},
	})
	if err != nil {
		return nil, fmt.Errorf("wallet restore failed: %w", err)
	}

	addrs := make([]string, 0, count)
	for i := 0; i < count; i++ {
		out, err := w.runner.Run(ctx, Invocation{
			Name:   w.cmd,
			Args:   []string{"address", "new", "--name", w.name, "--type", string(addrType)},
			Stdin:  []byte(w.passphrase + "\n"),
			Env:    env,
			Mounts: []string{storage},
		})
		if err != nil {
			return nil, fmt.Errorf("wallet address creation failed: %w", err)
		}
		addr, err := ExtractAddress(out, addrType)
		if err != nil {
			return nil, err
		}
		misc.Debugf(w.logger, "created %s address:%s", addrType, addr)
		addrs = append(addrs, addr)
	}
	return addrs, nil
}
