package cluster

import (
	"bytes"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tyler-smith/go-bip39"

	"github.com/leejw51crypto/crypto-chain-bot/internal/lib/genesis"
	"github.com/leejw51crypto/crypto-chain-bot/internal/lib/identity"
	"github.com/leejw51crypto/crypto-chain-bot/internal/lib/ports"
)

func TestGenerate(t *testing.T) {
	spec, err := Generate(GenOptions{
		Count:       3,
		RewardsPool: 4_000_000_000_000_000_000,
		BasePort:    26650,
		BaseFee:     "1.5",
		Rand:        rand.New(rand.NewSource(1)),
	})
	require.NoError(t, err)
	require.NoError(t, spec.Validate())

	assert.Equal(t, DefaultGenesisTime, spec.GenesisTime)
	require.Len(t, spec.Nodes, 3)
	for i, node := range spec.Nodes {
		assert.Equal(t, []string{"node0", "node1", "node2"}[i], node.Name)
		assert.Equal(t, 26650+10*i, node.BasePort)
		assert.Equal(t, genesis.Coin(1_000_000_000_000_000_000), node.BondedCoin)
		assert.Equal(t, node.BondedCoin, node.UnbondedCoin)
		assert.Len(t, node.ValidatorSeed, identity.SeedSize)
		assert.Len(t, node.NodeSeed, identity.SeedSize)
		assert.NotEqual(t, node.ValidatorSeed, node.NodeSeed)
		assert.True(t, bip39.IsMnemonicValid(node.Mnemonic))
		assert.Len(t, strings.Fields(node.Mnemonic), 15)
		assert.Empty(t, node.Staking)
	}

	require.Len(t, spec.ConfigPatch, 2)
	assert.Equal(t, "/initial_fee_policy/base_fee", spec.ConfigPatch[0].Path)
	assert.JSONEq(t, `"1.5"`, string(spec.ConfigPatch[0].Value))
	assert.Equal(t, "/initial_fee_policy/per_byte_fee", spec.ConfigPatch[1].Path)
	assert.JSONEq(t, `"0.0"`, string(spec.ConfigPatch[1].Value))
}

func TestGenerateIsReproducibleFromSource(t *testing.T) {
	first, err := Generate(GenOptions{Count: 2, BasePort: 26650, Rand: rand.New(rand.NewSource(42))})
	require.NoError(t, err)
	second, err := Generate(GenOptions{Count: 2, BasePort: 26650, Rand: rand.New(rand.NewSource(42))})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestGenerateDistributionAddsUp(t *testing.T) {
	spec, err := Generate(GenOptions{Count: 4, BasePort: 26650})
	require.NoError(t, err)
	var total genesis.Coin
	for _, node := range spec.Nodes {
		total += node.BondedCoin + node.UnbondedCoin
	}
	assert.Equal(t, genesis.MaxCoin, total+spec.RewardsPool)
}

func TestGenerateRejects(t *testing.T) {
	_, err := Generate(GenOptions{Count: 0, BasePort: 26650})
	assert.Error(t, err)
	_, err = Generate(GenOptions{Count: 1, BasePort: 26650, RewardsPool: genesis.MaxCoin + 1})
	assert.Error(t, err)
	_, err = Generate(GenOptions{Count: 1, BasePort: 26655})
	assert.Error(t, err)
	_, err = Generate(GenOptions{Count: 1, BasePort: 26650, Rand: bytes.NewReader([]byte{1})})
	assert.Error(t, err)
}

func TestGenerateChecksEveryBasePort(t *testing.T) {
	_, err := Generate(GenOptions{Count: 3, BasePort: -10})
	assert.ErrorIs(t, err, ports.ErrInvalidBasePort)
	_, err = Generate(GenOptions{Count: 2, BasePort: 65520})
	assert.ErrorIs(t, err, ports.ErrInvalidBasePort)
}
