package cluster

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/leejw51crypto/crypto-chain-bot/internal/lib/genesis"
	"github.com/leejw51crypto/crypto-chain-bot/internal/lib/identity"
)

// NodeSpec describes one cluster node.  Staking is filled in from the wallet on first bootstrap and kept
// so later runs can skip the lookup.
type NodeSpec struct {
	Name          string        `json:"name"`
	Mnemonic      string        `json:"mnemonic"`
	ValidatorSeed identity.Seed `json:"validator_seed"`
	NodeSeed      identity.Seed `json:"node_seed"`
	BondedCoin    genesis.Coin  `json:"bonded_coin"`
	UnbondedCoin  genesis.Coin  `json:"unbonded_coin"`
	BasePort      int           `json:"base_port"`
	Staking       []string      `json:"staking,omitempty"`
}

// Spec is the cluster specification printed by gen and consumed by prepare.
type Spec struct {
	GenesisTime string            `json:"genesis_time"`
	RewardsPool genesis.Coin      `json:"rewards_pool"`
	Nodes       []NodeSpec        `json:"nodes"`
	ConfigPatch []genesis.PatchOp `json:"config_patch"`
}

func (s *Spec) Validate() error {
	if len(s.Nodes) == 0 {
		return fmt.Errorf("%w: no nodes", ErrInvalidSpec)
	}
	names := map[string]bool{}
	for i, node := range s.Nodes {
		if node.Name == "" {
			return fmt.Errorf("%w: node %d has no name", ErrInvalidSpec, i)
		}
		if names[node.Name] {
			return fmt.Errorf("%w: duplicate node name %s", ErrInvalidSpec, node.Name)
		}
		names[node.Name] = true
		if node.Mnemonic == "" && len(node.Staking) < 2 {
			return fmt.Errorf("%w: node %s needs a mnemonic or two staking addresses", ErrInvalidSpec, node.Name)
		}
	}
	return nil
}

// Load decodes and validates a cluster spec.
func Load(r io.Reader) (*Spec, error) {
	var spec Spec
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&spec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSpec, err)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

func LoadFile(path string) (*Spec, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return Load(file)
}

// Encode writes spec as indented json.
func Encode(w io.Writer, spec *Spec) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "    ")
	return encoder.Encode(spec)
}

func (s *Spec) genesisNodes() []genesis.Node {
	nodes := make([]genesis.Node, 0, len(s.Nodes))
	for _, node := range s.Nodes {
		nodes = append(nodes, genesis.Node{
			Name:          node.Name,
			ValidatorSeed: node.ValidatorSeed,
			BondedCoin:    node.BondedCoin,
			UnbondedCoin:  node.UnbondedCoin,
			Staking:       node.Staking,
		})
	}
	return nodes
}
