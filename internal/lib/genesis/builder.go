package genesis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/leejw51crypto/crypto-chain-bot/internal/lib/identity"
	"github.com/leejw51crypto/crypto-chain-bot/internal/lib/misc"
)

// AppStateCompiler turns an app state config into the genesis fields computed by the application
// (app_state and app_hash).
type AppStateCompiler interface {
	Compile(ctx context.Context, appStateConfig []byte) (map[string]json.RawMessage, error)
}

type Params struct {
	Nodes       []Node
	RewardsPool Coin
	GenesisTime string
	ChainID     string
	Patch       []PatchOp
}

type Builder struct {
	logger   *slog.Logger
	compiler AppStateCompiler
}

func NewBuilder(logger *slog.Logger, compiler AppStateCompiler) *Builder {
	return &Builder{logger: logger, compiler: compiler}
}

// Validators derives the genesis validator set from nodes, keeping their order.
func Validators(nodes []Node) ([]Validator, error) {
	validators := make([]Validator, 0, len(nodes))
	for _, node := range nodes {
		id, err := identity.Derive(node.ValidatorSeed)
		if err != nil {
			return nil, fmt.Errorf("validator seed of %s: %w", node.Name, err)
		}
		validators = append(validators, Validator{
			Address: id.Address,
			PubKey:  id.PubKey(),
			Power:   VotingPower(node.BondedCoin),
			Name:    node.Name,
		})
	}
	return validators, nil
}

// Build assembles the cluster genesis.  The app state is patched and then compiled by the external
// compiler, whose output (app_hash included) is merged into the document.  A compiler failure fails the
// build - there is no partial genesis.
func (b *Builder) Build(ctx context.Context, params Params) (*Document, error) {
	if len(params.Nodes) == 0 {
		return nil, errors.New("genesis needs at least one node")
	}
	validators, err := Validators(params.Nodes)
	if err != nil {
		return nil, err
	}
	baseState, err := NewAppState(params.Nodes, params.RewardsPool, params.GenesisTime)
	if err != nil {
		return nil, err
	}
	state, err := ApplyPatch(baseState, params.Patch)
	if err != nil {
		return nil, err
	}
	if total, ok := state.DistributionTotal(); !ok || total > MaxCoin || MaxCoin-total != state.RewardsPool {
		misc.Warnf(b.logger, "distribution (%s) plus rewards pool (%s) does not add up to max supply %s", total, state.RewardsPool, MaxCoin)
	}

	rawState, err := json.Marshal(state)
	if err != nil {
		return nil, err
	}
	fields, err := b.compiler.Compile(ctx, rawState)
	if err != nil {
		return nil, err
	}

	doc := &Document{
		GenesisTime:     params.GenesisTime,
		ChainID:         params.ChainID,
		ConsensusParams: DefaultConsensusParams(),
		Validators:      validators,
	}
	if err = doc.Merge(fields); err != nil {
		return nil, err
	}
	if len(doc.Extra) > 0 {
		extra := make([]string, 0, len(doc.Extra))
		for key := range doc.Extra {
			extra = append(extra, key)
		}
		slices.Sort(extra)
		misc.Debugf(b.logger, "keeping extra genesis fields from compiler: %v", extra)
	}
	if doc.AppHash == "" {
		return nil, errors.New("app state compiler did not produce an app_hash")
	}
	misc.Infof(b.logger, "genesis built, chain id:%s, validators:%d, app hash:%s", doc.ChainID, len(doc.Validators), doc.AppHash)
	return doc, nil
}
