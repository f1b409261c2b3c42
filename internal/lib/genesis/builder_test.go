package genesis

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leejw51crypto/crypto-chain-bot/internal/lib/identity"
	"github.com/leejw51crypto/crypto-chain-bot/internal/lib/misc"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type compilerFunc func(ctx context.Context, appStateConfig []byte) (map[string]json.RawMessage, error)

func (f compilerFunc) Compile(ctx context.Context, appStateConfig []byte) (map[string]json.RawMessage, error) {
	return f(ctx, appStateConfig)
}

// echoCompiler returns the config it was given as app_state, with a fixed app hash.
func echoCompiler(seen *[]byte) compilerFunc {
	return func(ctx context.Context, appStateConfig []byte) (map[string]json.RawMessage, error) {
		if seen != nil {
			*seen = appStateConfig
		}
		return map[string]json.RawMessage{
			"app_hash":  json.RawMessage(`"4A6F6C6C79"`),
			"app_state": json.RawMessage(appStateConfig),
		}, nil
	}
}

func TestBuild(t *testing.T) {
	var seen []byte
	nodes := testNodes(2)
	doc, err := NewBuilder(discardLogger, echoCompiler(&seen)).Build(context.Background(), Params{
		Nodes:       nodes,
		GenesisTime: "2019-11-20T08:56:48.618137Z",
		ChainID:     "test-chain-y3m1e6-AB",
		Patch:       []PatchOp{mustReplace(t, "/initial_fee_policy/base_fee", "0.0")},
	})
	require.NoError(t, err)

	assert.Equal(t, "4A6F6C6C79", doc.AppHash)
	assert.Equal(t, "test-chain-y3m1e6-AB", doc.ChainID)
	assert.Equal(t, "2019-11-20T08:56:48.618137Z", doc.GenesisTime)
	assert.Equal(t, DefaultConsensusParams(), doc.ConsensusParams)

	var compiled AppState
	require.NoError(t, json.Unmarshal(seen, &compiled))
	assert.Equal(t, "0.0", compiled.InitialFeePolicy.BaseFee, "compiler receives the patched config")
	assert.JSONEq(t, string(seen), string(doc.AppState))

	require.Len(t, doc.Validators, 2)
	for i, v := range doc.Validators {
		id, err := identity.Derive(nodes[i].ValidatorSeed)
		require.NoError(t, err)
		assert.Equal(t, id.Address, v.Address)
		assert.Equal(t, id.PubKey(), v.PubKey)
		assert.Equal(t, VotingPower(nodes[i].BondedCoin), v.Power)
		assert.Equal(t, nodes[i].Name, v.Name)
	}

	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	var generic map[string]any
	require.NoError(t, json.Unmarshal(raw, &generic))
	assert.Equal(t, "25000000000", generic["validators"].([]any)[0].(map[string]any)["power"])
}

func TestValidatorOrderFollowsInput(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	for count := 1; count <= 10; count++ {
		nodes := testNodes(count)
		perm := rnd.Perm(count)
		shuffled := make([]Node, count)
		for i, p := range perm {
			shuffled[i] = nodes[p]
		}
		doc, err := NewBuilder(discardLogger, echoCompiler(nil)).Build(context.Background(), Params{Nodes: shuffled})
		require.NoError(t, err)
		require.Len(t, doc.Validators, count)
		for i, v := range doc.Validators {
			assert.Equal(t, shuffled[i].Name, v.Name)
		}
	}
}

func TestBuildCompilerFailure(t *testing.T) {
	compileErr := errors.New("dev-utils exited with code 1")
	builder := NewBuilder(discardLogger, compilerFunc(func(ctx context.Context, _ []byte) (map[string]json.RawMessage, error) {
		return nil, compileErr
	}))
	doc, err := builder.Build(context.Background(), Params{Nodes: testNodes(1)})
	assert.ErrorIs(t, err, compileErr)
	assert.Nil(t, doc)
}

func TestBuildPatchFailureSkipsCompiler(t *testing.T) {
	called := false
	builder := NewBuilder(discardLogger, compilerFunc(func(ctx context.Context, _ []byte) (map[string]json.RawMessage, error) {
		called = true
		return nil, nil
	}))
	_, err := builder.Build(context.Background(), Params{
		Nodes: testNodes(1),
		Patch: []PatchOp{mustReplace(t, "/initialFeePolicy/baseFee", "0.0")},
	})
	assert.ErrorIs(t, err, ErrPatchPathNotFound)
	assert.False(t, called)
}

func TestBuildRequiresAppHash(t *testing.T) {
	builder := NewBuilder(discardLogger, compilerFunc(func(ctx context.Context, cfg []byte) (map[string]json.RawMessage, error) {
		return map[string]json.RawMessage{"app_state": cfg}, nil
	}))
	_, err := builder.Build(context.Background(), Params{Nodes: testNodes(1)})
	assert.Error(t, err)
}

func TestBuildInvalidSeed(t *testing.T) {
	nodes := testNodes(1)
	nodes[0].ValidatorSeed = []byte{1, 2, 3}
	_, err := NewBuilder(discardLogger, echoCompiler(nil)).Build(context.Background(), Params{Nodes: nodes})
	assert.ErrorIs(t, err, identity.ErrInvalidSeedLength)
}

func TestMergeKeepsExtraFields(t *testing.T) {
	doc := &Document{ChainID: "a", Validators: []Validator{}}
	err := doc.Merge(map[string]json.RawMessage{
		"app_hash": json.RawMessage(`"AA"`),
		"chain_id": json.RawMessage(`"b"`),
		"mystery":  json.RawMessage(`{"x":1}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "AA", doc.AppHash)
	assert.Equal(t, "b", doc.ChainID)
	require.Contains(t, doc.Extra, "mystery")
	assert.JSONEq(t, `{"x":1}`, string(doc.Extra["mystery"]))

	path := filepath.Join(t.TempDir(), "genesis.json")
	require.NoError(t, misc.WriteJSONFile(path, doc))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var written map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &written))
	assert.JSONEq(t, `{"x":1}`, string(written["mystery"]))
	assert.JSONEq(t, `"AA"`, string(written["app_hash"]))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "AA", loaded.AppHash)
	require.Len(t, loaded.Extra, 1)
	assert.JSONEq(t, `{"x":1}`, string(loaded.Extra["mystery"]))
}

func TestDocumentWithoutExtraFields(t *testing.T) {
	doc := Document{ChainID: "a", AppHash: "AA", Validators: []Validator{}}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "Extra")

	var decoded Document
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Nil(t, decoded.Extra)
	assert.Equal(t, doc, decoded)
}
