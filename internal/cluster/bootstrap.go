package cluster

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/leejw51crypto/crypto-chain-bot/internal/lib/exttool"
	"github.com/leejw51crypto/crypto-chain-bot/internal/lib/genesis"
	"github.com/leejw51crypto/crypto-chain-bot/internal/lib/identity"
	"github.com/leejw51crypto/crypto-chain-bot/internal/lib/manifest"
	"github.com/leejw51crypto/crypto-chain-bot/internal/lib/misc"
	"github.com/leejw51crypto/crypto-chain-bot/internal/lib/ports"
	"github.com/leejw51crypto/crypto-chain-bot/internal/lib/tmconfig"
)

type State int

const (
	Uninitialized State = iota
	AddressesPopulated
	GenesisGenerated
	FilesWritten
	ManifestWritten
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case AddressesPopulated:
		return "addresses_populated"
	case GenesisGenerated:
		return "genesis_generated"
	case FilesWritten:
		return "files_written"
	case ManifestWritten:
		return "manifest_written"
	case Done:
		return "done"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// stakingAddressCount is bonded + unbonded.
const stakingAddressCount = 2

const ManifestFile = "tasks.ini"

// AddressSource derives wallet addresses from a mnemonic.
type AddressSource interface {
	Addresses(ctx context.Context, mnemonic string, addrType exttool.AddressType, count int) ([]string, error)
}

type Options struct {
	// Force clears a previously prepared cluster (its manifest and the spec's node directories).
	Force      bool
	ChainID    string
	PeerHost   string
	AlignPorts bool
	Manifest   manifest.Options
	Metrics    *Metrics
}

// NodeResult is what was written for a single node.
type NodeResult struct {
	Name             string
	Dir              string
	Ports            ports.PortSet
	ValidatorAddress string
	NodeID           string
}

type Result struct {
	RootDir      string
	Genesis      *genesis.Document
	Peers        string
	Nodes        []NodeResult
	Manifest     *manifest.Manifest
	ManifestPath string
}

// Bootstrapper turns a cluster spec into a ready to launch cluster directory.  It runs once, every step
// strictly after the previous one, and stops at the first failure leaving whatever was already written.
type Bootstrapper struct {
	logger  *slog.Logger
	wallet  AddressSource
	builder *genesis.Builder
	opts    Options
	metrics *Metrics
	state   State
}

func New(logger *slog.Logger, wallet AddressSource, compiler genesis.AppStateCompiler, opts Options) *Bootstrapper {
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Bootstrapper{
		logger:  logger,
		wallet:  wallet,
		builder: genesis.NewBuilder(logger, compiler),
		opts:    opts,
		metrics: metrics,
	}
}

func (b *Bootstrapper) State() State {
	return b.state
}

func (b *Bootstrapper) Metrics() *Metrics {
	return b.metrics
}

func (b *Bootstrapper) setState(state State) {
	misc.Infof(b.logger, "bootstrap %s -> %s", b.state, state)
	b.state = state
	b.metrics.setState(state)
}

// Run bootstraps the cluster described by spec.  Staking addresses fetched from the wallet are stored back
// into spec.
func (b *Bootstrapper) Run(ctx context.Context, spec *Spec) (result *Result, err error) {
	if b.state != Uninitialized {
		return nil, fmt.Errorf("%w (state %s)", ErrAlreadyRun, b.state)
	}
	defer func() {
		if err != nil {
			misc.Errorf(b.logger, "bootstrap failed in state %s: %v", b.state, err)
			b.setState(Failed)
		}
	}()

	if err = spec.Validate(); err != nil {
		return nil, err
	}
	root := b.opts.Manifest.RootDir
	if !filepath.IsAbs(root) {
		return nil, fmt.Errorf("cluster root must be absolute, got:%q", root)
	}
	b.metrics.nodes.Set(float64(len(spec.Nodes)))
	if err = b.checkRoot(root, spec); err != nil {
		return nil, err
	}

	if err = b.populateAddresses(ctx, spec); err != nil {
		return nil, err
	}
	b.setState(AddressesPopulated)

	result = &Result{RootDir: root, ManifestPath: filepath.Join(root, ManifestFile)}
	peers, err := b.planNodes(spec, result)
	if err != nil {
		return nil, err
	}
	result.Peers = ports.PeerList(peers, b.opts.PeerHost)

	result.Genesis, err = b.builder.Build(ctx, genesis.Params{
		Nodes:       spec.genesisNodes(),
		RewardsPool: spec.RewardsPool,
		GenesisTime: spec.GenesisTime,
		ChainID:     b.opts.ChainID,
		Patch:       spec.ConfigPatch,
	})
	if err != nil {
		return nil, err
	}
	b.setState(GenesisGenerated)

	for i, node := range spec.Nodes {
		if err = b.writeNodeFiles(node, result.Nodes[i], result.Genesis, result.Peers); err != nil {
			return nil, fmt.Errorf("writing files of %s: %w", node.Name, err)
		}
	}
	b.setState(FilesWritten)

	entries := make([]manifest.NodeEntry, 0, len(result.Nodes))
	for _, node := range result.Nodes {
		entries = append(entries, manifest.NodeEntry{Name: node.Name, Ports: node.Ports})
	}
	result.Manifest, err = manifest.Build(entries, result.Genesis.AppHash, b.opts.Manifest)
	if err != nil {
		return nil, err
	}
	if err = manifest.WriteFile(result.ManifestPath, result.Manifest); err != nil {
		return nil, err
	}
	b.setState(ManifestWritten)

	misc.Infof(b.logger, "prepared %d node cluster in %s", len(result.Nodes), root)
	b.setState(Done)
	return result, nil
}

// checkRoot refuses to overwrite a prepared cluster unless forced.  Node directories without a manifest
// are left alone and reused.
func (b *Bootstrapper) checkRoot(root string, spec *Spec) error {
	manifestPath := filepath.Join(root, ManifestFile)
	_, err := os.Stat(manifestPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil
	case err != nil:
		return err
	case !b.opts.Force:
		return fmt.Errorf("%w: %s exists", ErrFileSystemConflict, manifestPath)
	}
	misc.Warnf(b.logger, "removing existing cluster in %s", root)
	for _, node := range spec.Nodes {
		if err = os.RemoveAll(filepath.Join(root, node.Name)); err != nil {
			return err
		}
	}
	return os.Remove(manifestPath)
}

func (b *Bootstrapper) populateAddresses(ctx context.Context, spec *Spec) error {
	for i := range spec.Nodes {
		node := &spec.Nodes[i]
		if len(node.Staking) >= stakingAddressCount {
			misc.Debugf(b.logger, "using cached staking addresses of %s", node.Name)
			continue
		}
		addrs, err := b.wallet.Addresses(ctx, node.Mnemonic, exttool.Staking, stakingAddressCount)
		if err != nil {
			return fmt.Errorf("staking addresses of %s: %w", node.Name, err)
		}
		misc.Infof(b.logger, "node %s staking addresses: %v", node.Name, addrs)
		node.Staking = addrs
	}
	return nil
}

// planNodes resolves ports and identities of every node, failing on any port collision.
func (b *Bootstrapper) planNodes(spec *Spec, result *Result) ([]ports.Peer, error) {
	peers := make([]ports.Peer, 0, len(spec.Nodes))
	sets := make([]ports.PortSet, 0, len(spec.Nodes))
	for _, node := range spec.Nodes {
		set, err := ports.Plan(node.BasePort, b.opts.AlignPorts)
		if err != nil {
			return nil, fmt.Errorf("ports of %s: %w", node.Name, err)
		}
		nodeID, err := identity.Derive(node.NodeSeed)
		if err != nil {
			return nil, fmt.Errorf("node seed of %s: %w", node.Name, err)
		}
		validatorID, err := identity.Derive(node.ValidatorSeed)
		if err != nil {
			return nil, fmt.Errorf("validator seed of %s: %w", node.Name, err)
		}
		sets = append(sets, set)
		peers = append(peers, ports.Peer{Identity: nodeID, Ports: set})
		result.Nodes = append(result.Nodes, NodeResult{
			Name:             node.Name,
			Dir:              filepath.Join(result.RootDir, node.Name),
			Ports:            set,
			ValidatorAddress: validatorID.Address,
			NodeID:           nodeID.Address,
		})
	}
	if err := ports.CheckDisjoint(sets); err != nil {
		return nil, err
	}
	return peers, nil
}

func (b *Bootstrapper) writeNodeFiles(node NodeSpec, planned NodeResult, doc *genesis.Document, peers string) error {
	configDir := filepath.Join(planned.Dir, "tendermint", "config")
	dataDir := filepath.Join(planned.Dir, "tendermint", "data")
	for _, dir := range []string{configDir, dataDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	nodeID, err := identity.Derive(node.NodeSeed)
	if err != nil {
		return err
	}
	validatorID, err := identity.Derive(node.ValidatorSeed)
	if err != nil {
		return err
	}

	jsonFiles := []struct {
		path  string
		value any
	}{
		{filepath.Join(configDir, "genesis.json"), doc},
		{filepath.Join(configDir, "node_key.json"), nodeID.NodeKey()},
		{filepath.Join(configDir, "priv_validator_key.json"), validatorID.ValidatorKey()},
		{filepath.Join(dataDir, "priv_validator_state.json"), tmconfig.InitialValidatorState()},
	}
	for _, file := range jsonFiles {
		if err = misc.WriteJSONFile(file.path, file.value); err != nil {
			return err
		}
	}
	if err = tmconfig.WriteFile(filepath.Join(configDir, "config.toml"), tmconfig.New(node.Name, planned.Ports, peers)); err != nil {
		return err
	}
	misc.Debugf(b.logger, "wrote tendermint files of %s to %s", node.Name, planned.Dir)
	return nil
}
