package cluster

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/tyler-smith/go-bip39"

	"github.com/leejw51crypto/crypto-chain-bot/internal/lib/genesis"
	"github.com/leejw51crypto/crypto-chain-bot/internal/lib/identity"
	"github.com/leejw51crypto/crypto-chain-bot/internal/lib/ports"
)

// mnemonicEntropyBytes gives 15 word mnemonics.
const mnemonicEntropyBytes = 20

const DefaultGenesisTime = "2019-11-20T08:56:48.618137Z"

type GenOptions struct {
	Count       int
	RewardsPool genesis.Coin
	GenesisTime string
	BasePort    int
	BaseFee     string
	PerByteFee  string
	// Rand supplies mnemonic entropy and seeds, crypto/rand when nil.
	Rand io.Reader
}

// Generate creates a fresh cluster spec: count nodes with random mnemonics and seeds, sharing the supply
// not held by the rewards pool equally between bonded and unbonded coin.
func Generate(opts GenOptions) (*Spec, error) {
	if opts.Count < 1 {
		return nil, errors.New("node count must be at least 1")
	}
	if opts.RewardsPool > genesis.MaxCoin {
		return nil, fmt.Errorf("rewards pool %s exceeds max supply %s", opts.RewardsPool, genesis.MaxCoin)
	}
	for _, base := range []int{opts.BasePort, opts.BasePort + ports.Stride*(opts.Count-1)} {
		if _, err := ports.Plan(base, true); err != nil {
			return nil, err
		}
	}
	rnd := opts.Rand
	if rnd == nil {
		rnd = rand.Reader
	}
	genesisTime := opts.GenesisTime
	if genesisTime == "" {
		genesisTime = DefaultGenesisTime
	}

	share := (genesis.MaxCoin - opts.RewardsPool) / genesis.Coin(opts.Count) / 2
	spec := &Spec{
		GenesisTime: genesisTime,
		RewardsPool: opts.RewardsPool,
		Nodes:       make([]NodeSpec, 0, opts.Count),
	}
	for i := 0; i < opts.Count; i++ {
		mnemonic, err := newMnemonic(rnd)
		if err != nil {
			return nil, err
		}
		validatorSeed, err := identity.ReadSeed(rnd)
		if err != nil {
			return nil, err
		}
		nodeSeed, err := identity.ReadSeed(rnd)
		if err != nil {
			return nil, err
		}
		spec.Nodes = append(spec.Nodes, NodeSpec{
			Name:          fmt.Sprintf("node%d", i),
			Mnemonic:      mnemonic,
			ValidatorSeed: validatorSeed,
			NodeSeed:      nodeSeed,
			BondedCoin:    share,
			UnbondedCoin:  share,
			BasePort:      opts.BasePort + ports.Stride*i,
		})
	}

	for _, fee := range []struct{ path, value string }{
		{"/initial_fee_policy/base_fee", opts.BaseFee},
		{"/initial_fee_policy/per_byte_fee", opts.PerByteFee},
	} {
		value := fee.value
		if value == "" {
			value = "0.0"
		}
		op, err := genesis.Replace(fee.path, value)
		if err != nil {
			return nil, err
		}
		spec.ConfigPatch = append(spec.ConfigPatch, op)
	}
	return spec, nil
}

func newMnemonic(rnd io.Reader) (string, error) {
	entropy := make([]byte, mnemonicEntropyBytes)
	if _, err := io.ReadFull(rnd, entropy); err != nil {
		return "", fmt.Errorf("unable to read mnemonic entropy: %w", err)
	}
	return bip39.NewMnemonic(entropy)
}
