// Package manifest builds the supervisord configuration (tasks.ini) that launches every process of every
// cluster node.
package manifest

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/leejw51crypto/crypto-chain-bot/internal/lib/misc"
	"github.com/leejw51crypto/crypto-chain-bot/internal/lib/ports"
)

// Program names, in start order.
const (
	TxEnclave  = "tx-enclave"
	ChainABCI  = "chain-abci"
	Tendermint = "tendermint"
	ClientRPC  = "client-rpc"
)

// enclaveContainerPort is the port the enclave listens on inside its container.
const enclaveContainerPort = 25933

const programEnvironment = "RUST_BACKTRACE=1,RUST_LOG=info"

type Options struct {
	// RootDir is the absolute cluster root, node directories live directly below it.
	RootDir       string
	ChainID       string
	EnclaveImage  string
	SGXDevice     string
	ChainCmd      string
	TendermintCmd string
	ClientRPCCmd  string
}

// SGXMode is "hw" when an sgx device is passed to the enclave container and "sw" otherwise.
func (o Options) SGXMode() string {
	if o.SGXDevice != "" {
		return "hw"
	}
	return "sw"
}

type NodeEntry struct {
	Name  string
	Ports ports.PortSet
}

type Program struct {
	Name           string
	Group          string
	Command        string
	Environment    string
	Priority       int
	ListenPort     int
	DependsOnPort  int // 0 when the program has no upstream
	StdoutLogfile  string
	AutoStart      bool
	AutoRestart    bool
	RedirectStderr bool
	StartSecs      int
	StartRetries   int
}

// SectionName is the supervisord section of the program, ie: program:tendermint-node0
func (p Program) SectionName() string {
	return "program:" + p.QualifiedName()
}

func (p Program) QualifiedName() string {
	return p.Name + "-" + p.Group
}

type Group struct {
	Name     string
	Programs []Program
}

type Manifest struct {
	Groups []Group
}

// Programs returns every program of every group, in manifest order.
func (m *Manifest) Programs() []Program {
	var programs []Program
	for _, group := range m.Groups {
		programs = append(programs, group.Programs...)
	}
	return programs
}

// Build resolves the four programs of every node.  appHash is the genesis app hash chain-abci is started
// with.
func Build(nodes []NodeEntry, appHash string, opts Options) (*Manifest, error) {
	if !filepath.IsAbs(opts.RootDir) {
		return nil, fmt.Errorf("manifest root must be absolute, got:%q", opts.RootDir)
	}
	if appHash == "" {
		return nil, errors.New("manifest needs the genesis app hash")
	}
	seen := map[string]bool{}
	portSets := make([]ports.PortSet, 0, len(nodes))
	for _, node := range nodes {
		if node.Name == "" || seen[node.Name] {
			return nil, fmt.Errorf("node names must be unique and non-empty, got:%q", node.Name)
		}
		seen[node.Name] = true
		portSets = append(portSets, node.Ports)
	}
	if err := ports.CheckDisjoint(portSets); err != nil {
		return nil, err
	}

	manifest := &Manifest{Groups: make([]Group, 0, len(nodes))}
	for _, node := range nodes {
		manifest.Groups = append(manifest.Groups, Group{Name: node.Name, Programs: programs(node, appHash, opts)})
	}
	return manifest, nil
}

func programs(node NodeEntry, appHash string, opts Options) []Program {
	nodeDir := filepath.Join(opts.RootDir, node.Name)
	p := node.Ports

	enclave := []string{"docker", "run", "--rm",
		"-p", fmt.Sprintf("%d:%d", p.Enclave, enclaveContainerPort),
		"--env", "RUST_BACKTRACE=1", "--env", "RUST_LOG=info",
		"-v", filepath.Join(nodeDir, "enclave") + ":/enclave-storage"}
	if opts.SGXDevice != "" {
		enclave = append(enclave, "--device", opts.SGXDevice)
	}
	enclave = append(enclave, opts.EnclaveImage+"-"+opts.SGXMode())

	commands := []struct {
		name      string
		args      []string
		listen    int
		dependsOn int
	}{
		{TxEnclave, enclave, p.Enclave, 0},
		{ChainABCI, []string{opts.ChainCmd,
			"-g", appHash,
			"-c", opts.ChainID,
			"--enclave_server", fmt.Sprintf("tcp://127.0.0.1:%d", p.Enclave),
			"--data", filepath.Join(nodeDir, "chain"),
			"-p", strconv.Itoa(p.ABCI)}, p.ABCI, p.Enclave},
		{Tendermint, []string{opts.TendermintCmd, "node", "--home=" + filepath.Join(nodeDir, "tendermint")}, p.NodeRPC, p.ABCI},
		{ClientRPC, []string{opts.ClientRPCCmd,
			fmt.Sprintf("--port=%d", p.ClientRPC),
			"--chain-id=" + opts.ChainID,
			"--storage-dir=" + filepath.Join(nodeDir, "wallet"),
			fmt.Sprintf("--websocket-url=ws://127.0.0.1:%d/websocket", p.NodeRPC)}, p.ClientRPC, p.NodeRPC},
	}

	result := make([]Program, 0, len(commands))
	for priority, cmd := range commands {
		result = append(result, Program{
			Name:           cmd.name,
			Group:          node.Name,
			Command:        strings.Join(cmd.args, " "),
			Environment:    programEnvironment,
			Priority:       priority,
			ListenPort:     cmd.listen,
			DependsOnPort:  cmd.dependsOn,
			StdoutLogfile:  fmt.Sprintf("%%(here)s/%s-%%(group_name)s.log", cmd.name),
			AutoStart:      true,
			AutoRestart:    true,
			RedirectStderr: true,
			StartSecs:      1,
			StartRetries:   10,
		})
	}
	return result
}

// File converts the manifest into its ini form.
func (m *Manifest) File() (*ini.File, error) {
	// supervisord reads values verbatim, so ini must not quote values holding ';' or '#'
	file := ini.Empty(ini.LoadOptions{IgnoreInlineComment: true})
	header := []struct{ section, key, value string }{
		{"supervisord", "pidfile", "%(here)s/supervisord.pid"},
		{"rpcinterface:supervisor", "supervisor.rpcinterface_factory", "supervisor.rpcinterface:make_main_rpcinterface"},
		{"unix_http_server", "file", "%(here)s/supervisor.sock"},
		{"supervisorctl", "serverurl", "unix://%(here)s/supervisor.sock"},
	}
	for _, h := range header {
		if err := addSection(file, h.section, [][2]string{{h.key, h.value}}); err != nil {
			return nil, err
		}
	}

	for _, group := range m.Groups {
		names := make([]string, 0, len(group.Programs))
		for _, prog := range group.Programs {
			names = append(names, prog.QualifiedName())
		}
		if err := addSection(file, "group:"+group.Name, [][2]string{{"programs", strings.Join(names, ",")}}); err != nil {
			return nil, err
		}
		for _, prog := range group.Programs {
			err := addSection(file, prog.SectionName(), [][2]string{
				{"command", prog.Command},
				{"stdout_logfile", prog.StdoutLogfile},
				{"environment", prog.Environment},
				{"autostart", strconv.FormatBool(prog.AutoStart)},
				{"autorestart", strconv.FormatBool(prog.AutoRestart)},
				{"redirect_stderr", strconv.FormatBool(prog.RedirectStderr)},
				{"priority", strconv.Itoa(prog.Priority)},
				{"startsecs", strconv.Itoa(prog.StartSecs)},
				{"startretries", strconv.Itoa(prog.StartRetries)},
			})
			if err != nil {
				return nil, err
			}
		}
	}
	return file, nil
}

func addSection(file *ini.File, name string, keys [][2]string) error {
	section, err := file.NewSection(name)
	if err != nil {
		return fmt.Errorf("section %s: %w", name, err)
	}
	for _, kv := range keys {
		if _, err = section.NewKey(kv[0], kv[1]); err != nil {
			return fmt.Errorf("key %s in section %s: %w", kv[0], name, err)
		}
	}
	return nil
}

// Write serializes the manifest as supervisord ini.
func Write(w io.Writer, m *Manifest) error {
	file, err := m.File()
	if err != nil {
		return err
	}
	_, err = file.WriteTo(w)
	return err
}

func WriteFile(path string, m *Manifest) error {
	return misc.WriteFileAtomic(path, 0o644, func(w io.Writer) error {
		return Write(w, m)
	})
}
