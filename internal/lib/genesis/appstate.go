package genesis

import (
	"encoding/json"
	"fmt"

	"github.com/leejw51crypto/crypto-chain-bot/internal/lib/identity"
)

const (
	DefaultUnbondingPeriod = 60
	ConsensusPubKeyType    = "Ed25519"
)

// AppState is the app state configuration handed to the app state compiler.
type AppState struct {
	RewardsPool              Coin                   `json:"rewards_pool"`
	Distribution             map[string]Coin        `json:"distribution"`
	UnbondingPeriod          uint64                 `json:"unbonding_period"`
	RequiredCouncilNodeStake Coin                   `json:"required_council_node_stake"`
	JailingConfig            JailingConfig          `json:"jailing_config"`
	SlashingConfig           SlashingConfig         `json:"slashing_config"`
	InitialFeePolicy         FeePolicy              `json:"initial_fee_policy"`
	CouncilNodes             map[string]CouncilNode `json:"council_nodes"`
	GenesisTime              string                 `json:"genesis_time"`
}

type JailingConfig struct {
	JailDuration         uint64 `json:"jail_duration"`
	BlockSigningWindow   uint64 `json:"block_signing_window"`
	MissedBlockThreshold uint64 `json:"missed_block_threshold"`
}

type SlashingConfig struct {
	LivenessSlashPercent  string `json:"liveness_slash_percent"`
	ByzantineSlashPercent string `json:"byzantine_slash_percent"`
	SlashWaitPeriod       uint64 `json:"slash_wait_period"`
}

type FeePolicy struct {
	BaseFee    string `json:"base_fee"`
	PerByteFee string `json:"per_byte_fee"`
}

// CouncilNode is a registered validator in application state.  On the wire it's the tuple
// [name, security contact, consensus pubkey].
type CouncilNode struct {
	Name            string
	SecurityContact string
	ConsensusPubKey ConsensusPubKey
}

type ConsensusPubKey struct {
	Type   string `json:"consensus_pubkey_type"`
	Base64 string `json:"consensus_pubkey_b64"`
}

func (c CouncilNode) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{c.Name, c.SecurityContact, c.ConsensusPubKey})
}

func (c *CouncilNode) UnmarshalJSON(data []byte) error {
	var tuple []json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return err
	}
	if len(tuple) != 3 {
		return fmt.Errorf("council node must have 3 entries, got %d", len(tuple))
	}
	if err := json.Unmarshal(tuple[0], &c.Name); err != nil {
		return err
	}
	if err := json.Unmarshal(tuple[1], &c.SecurityContact); err != nil {
		return err
	}
	return json.Unmarshal(tuple[2], &c.ConsensusPubKey)
}

// Node is the per-node input of genesis generation.  Staking must hold the [bonded, unbonded] staking
// addresses obtained from the wallet.
type Node struct {
	Name          string
	ValidatorSeed []byte
	BondedCoin    Coin
	UnbondedCoin  Coin
	Staking       []string
}

func (n Node) checkStaking() error {
	if len(n.Staking) < 2 {
		return fmt.Errorf("node %s has %d staking addresses, need 2", n.Name, len(n.Staking))
	}
	return nil
}

// NewAppState builds the base app state for nodes: bonded and unbonded coin distributed to each node's
// staking addresses and every node registered as a council node under its bonded address.
func NewAppState(nodes []Node, rewardsPool Coin, genesisTime string) (AppState, error) {
	state := AppState{
		RewardsPool:              rewardsPool,
		Distribution:             make(map[string]Coin, len(nodes)*2),
		UnbondingPeriod:          DefaultUnbondingPeriod,
		RequiredCouncilNodeStake: 1,
		JailingConfig: JailingConfig{
			JailDuration:         86400,
			BlockSigningWindow:   100,
			MissedBlockThreshold: 50,
		},
		SlashingConfig: SlashingConfig{
			LivenessSlashPercent:  "0.1",
			ByzantineSlashPercent: "0.2",
			SlashWaitPeriod:       10800,
		},
		InitialFeePolicy: FeePolicy{
			BaseFee:    "1.1",
			PerByteFee: "1.25",
		},
		CouncilNodes: make(map[string]CouncilNode, len(nodes)),
		GenesisTime:  genesisTime,
	}
	for _, node := range nodes {
		if err := node.checkStaking(); err != nil {
			return AppState{}, err
		}
		id, err := identity.Derive(node.ValidatorSeed)
		if err != nil {
			return AppState{}, fmt.Errorf("validator seed of %s: %w", node.Name, err)
		}
		bonded, unbonded := node.Staking[0], node.Staking[1]
		state.Distribution[bonded] = node.BondedCoin
		state.Distribution[unbonded] = node.UnbondedCoin
		state.CouncilNodes[bonded] = CouncilNode{
			Name:            node.Name,
			SecurityContact: node.Name + "@example.com",
			ConsensusPubKey: ConsensusPubKey{Type: ConsensusPubKeyType, Base64: id.PubKeyBase64()},
		}
	}
	return state, nil
}

// DistributionTotal sums every distributed amount.  Overflow is reported rather than wrapped.
func (a AppState) DistributionTotal() (Coin, bool) {
	var total Coin
	for _, amount := range a.Distribution {
		if total+amount < total {
			return 0, false
		}
		total += amount
	}
	return total, true
}
