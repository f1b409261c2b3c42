package manifest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/ini.v1"

	"github.com/leejw51crypto/crypto-chain-bot/internal/lib/ports"
)

func testOptions() Options {
	return Options{
		RootDir:       "/data/cluster",
		ChainID:       "test-chain-y3m1e6-AB",
		EnclaveImage:  "integration-tests-chain-tx-enclave",
		ChainCmd:      "chain-abci",
		TendermintCmd: "tendermint",
		ClientRPCCmd:  "client-rpc",
	}
}

func testNodes(t *testing.T, count int) []NodeEntry {
	nodes := make([]NodeEntry, 0, count)
	for i := 0; i < count; i++ {
		set, err := ports.Plan(26650+ports.Stride*i, true)
		require.NoError(t, err)
		nodes = append(nodes, NodeEntry{Name: fmt.Sprintf("node%d", i), Ports: set})
	}
	return nodes
}

func TestBuildThreeNodes(t *testing.T) {
	m, err := Build(testNodes(t, 3), "ABCDEF", testOptions())
	require.NoError(t, err)
	require.Len(t, m.Groups, 3)

	programs := m.Programs()
	require.Len(t, programs, 12)
	listen := map[int]string{}
	for _, prog := range programs {
		if other, dup := listen[prog.ListenPort]; dup {
			t.Fatalf("%s and %s both listen on %d", other, prog.QualifiedName(), prog.ListenPort)
		}
		listen[prog.ListenPort] = prog.QualifiedName()
	}

	for _, group := range m.Groups {
		require.Len(t, group.Programs, 4)
		names := []string{}
		for i, prog := range group.Programs {
			assert.Equal(t, i, prog.Priority)
			assert.Equal(t, group.Name, prog.Group)
			names = append(names, prog.Name)
			if i > 0 {
				assert.Equal(t, group.Programs[i-1].ListenPort, prog.DependsOnPort, "%s depends on the previous program", prog.Name)
			} else {
				assert.Zero(t, prog.DependsOnPort)
			}
		}
		assert.Equal(t, []string{TxEnclave, ChainABCI, Tendermint, ClientRPC}, names)
	}
}

func TestProgramCommands(t *testing.T) {
	m, err := Build(testNodes(t, 1), "ABCDEF", testOptions())
	require.NoError(t, err)
	progs := m.Groups[0].Programs

	assert.Equal(t, "docker run --rm -p 26650:25933 --env RUST_BACKTRACE=1 --env RUST_LOG=info "+
		"-v /data/cluster/node0/enclave:/enclave-storage integration-tests-chain-tx-enclave-sw", progs[0].Command)
	assert.Equal(t, "chain-abci -g ABCDEF -c test-chain-y3m1e6-AB --enclave_server tcp://127.0.0.1:26650 "+
		"--data /data/cluster/node0/chain -p 26658", progs[1].Command)
	assert.Equal(t, "tendermint node --home=/data/cluster/node0/tendermint", progs[2].Command)
	assert.Equal(t, "client-rpc --port=26651 --chain-id=test-chain-y3m1e6-AB --storage-dir=/data/cluster/node0/wallet "+
		"--websocket-url=ws://127.0.0.1:26657/websocket", progs[3].Command)
	assert.Equal(t, "%(here)s/tendermint-%(group_name)s.log", progs[2].StdoutLogfile)
}

func TestEnclaveHardwareMode(t *testing.T) {
	opts := testOptions()
	opts.SGXDevice = "/dev/sgx"
	m, err := Build(testNodes(t, 1), "ABCDEF", opts)
	require.NoError(t, err)
	assert.Contains(t, m.Groups[0].Programs[0].Command, "--device /dev/sgx integration-tests-chain-tx-enclave-hw")
}

func TestBuildRejects(t *testing.T) {
	nodes := testNodes(t, 2)

	opts := testOptions()
	opts.RootDir = "relative/dir"
	_, err := Build(nodes, "AB", opts)
	assert.Error(t, err)

	_, err = Build(nodes, "", testOptions())
	assert.Error(t, err)

	dup := []NodeEntry{nodes[0], {Name: "node0", Ports: nodes[1].Ports}}
	_, err = Build(dup, "AB", testOptions())
	assert.Error(t, err)

	overlap := []NodeEntry{nodes[0], {Name: "node1", Ports: nodes[0].Ports}}
	_, err = Build(overlap, "AB", testOptions())
	assert.ErrorIs(t, err, ports.ErrPortCollision)
}

func TestWriteIsDeterministic(t *testing.T) {
	var first, second bytes.Buffer
	m1, err := Build(testNodes(t, 3), "ABCDEF", testOptions())
	require.NoError(t, err)
	m2, err := Build(testNodes(t, 3), "ABCDEF", testOptions())
	require.NoError(t, err)
	require.NoError(t, Write(&first, m1))
	require.NoError(t, Write(&second, m2))
	assert.Equal(t, first.Bytes(), second.Bytes())
}

func TestWriteFileParses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.ini")
	m, err := Build(testNodes(t, 2), "ABCDEF", testOptions())
	require.NoError(t, err)
	require.NoError(t, WriteFile(path, m))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	file, err := ini.Load(data)
	require.NoError(t, err)

	assert.Equal(t, []string{
		ini.DefaultSection,
		"supervisord", "rpcinterface:supervisor", "unix_http_server", "supervisorctl",
		"group:node0", "program:tx-enclave-node0", "program:chain-abci-node0", "program:tendermint-node0", "program:client-rpc-node0",
		"group:node1", "program:tx-enclave-node1", "program:chain-abci-node1", "program:tendermint-node1", "program:client-rpc-node1",
	}, file.SectionStrings())

	assert.Equal(t, "%(here)s/supervisord.pid", file.Section("supervisord").Key("pidfile").Value())
	assert.Equal(t, "supervisor.rpcinterface:make_main_rpcinterface",
		file.Section("rpcinterface:supervisor").Key("supervisor.rpcinterface_factory").Value())
	assert.Equal(t, "unix://%(here)s/supervisor.sock", file.Section("supervisorctl").Key("serverurl").Value())
	assert.Equal(t, "tx-enclave-node1,chain-abci-node1,tendermint-node1,client-rpc-node1",
		file.Section("group:node1").Key("programs").Value())

	prog := file.Section("program:chain-abci-node1")
	assert.Equal(t, m.Groups[1].Programs[1].Command, prog.Key("command").Value())
	assert.Equal(t, "RUST_BACKTRACE=1,RUST_LOG=info", prog.Key("environment").Value())
	assert.Equal(t, "true", prog.Key("autorestart").Value())
	assert.Equal(t, "1", prog.Key("priority").Value())
	assert.Equal(t, "10", prog.Key("startretries").Value())
}

func TestWriteKeepsCommentCharactersVerbatim(t *testing.T) {
	opts := testOptions()
	opts.RootDir = "/tmp/x;y#z"
	opts.SGXDevice = "/dev/sgx"
	m, err := Build(testNodes(t, 1), "AB#;CD", opts)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, m))
	assert.NotContains(t, buf.String(), "`")

	file, err := ini.LoadSources(ini.LoadOptions{IgnoreInlineComment: true}, buf.Bytes())
	require.NoError(t, err)
	for _, prog := range m.Programs() {
		command := file.Section(prog.SectionName()).Key("command").Value()
		assert.Equal(t, prog.Command, command)
	}
	assert.Contains(t, m.Groups[0].Programs[0].Command, "/tmp/x;y#z/node0")
}
