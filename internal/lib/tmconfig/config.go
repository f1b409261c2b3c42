// Package tmconfig produces the per-node tendermint config.toml and the initial validator signing state.
package tmconfig

import (
	"fmt"
	"io"

	"github.com/BurntSushi/toml"

	"github.com/leejw51crypto/crypto-chain-bot/internal/lib/misc"
	"github.com/leejw51crypto/crypto-chain-bot/internal/lib/ports"
)

type Config struct {
	ProxyApp               string `toml:"proxy_app"`
	Moniker                string `toml:"moniker"`
	FastSync               bool   `toml:"fast_sync"`
	DBBackend              string `toml:"db_backend"`
	DBDir                  string `toml:"db_dir"`
	LogLevel               string `toml:"log_level"`
	LogFormat              string `toml:"log_format"`
	GenesisFile            string `toml:"genesis_file"`
	PrivValidatorKeyFile   string `toml:"priv_validator_key_file"`
	PrivValidatorStateFile string `toml:"priv_validator_state_file"`
	PrivValidatorLaddr     string `toml:"priv_validator_laddr"`
	NodeKeyFile            string `toml:"node_key_file"`
	ABCI                   string `toml:"abci"`
	ProfLaddr              string `toml:"prof_laddr"`
	FilterPeers            bool   `toml:"filter_peers"`

	RPC             RPCConfig             `toml:"rpc"`
	P2P             P2PConfig             `toml:"p2p"`
	Mempool         MempoolConfig         `toml:"mempool"`
	FastSyncConfig  FastSyncConfig        `toml:"fastsync"`
	Consensus       ConsensusConfig       `toml:"consensus"`
	TxIndex         TxIndexConfig         `toml:"tx_index"`
	Instrumentation InstrumentationConfig `toml:"instrumentation"`
}

type RPCConfig struct {
	Laddr                     string   `toml:"laddr"`
	CORSAllowedOrigins        []string `toml:"cors_allowed_origins"`
	CORSAllowedMethods        []string `toml:"cors_allowed_methods"`
	CORSAllowedHeaders        []string `toml:"cors_allowed_headers"`
	GRPCLaddr                 string   `toml:"grpc_laddr"`
	GRPCMaxOpenConnections    int      `toml:"grpc_max_open_connections"`
	Unsafe                    bool     `toml:"unsafe"`
	MaxOpenConnections        int      `toml:"max_open_connections"`
	MaxSubscriptionClients    int      `toml:"max_subscription_clients"`
	MaxSubscriptionsPerClient int      `toml:"max_subscriptions_per_client"`
	TimeoutBroadcastTxCommit  string   `toml:"timeout_broadcast_tx_commit"`
	MaxBodyBytes              int      `toml:"max_body_bytes"`
	MaxHeaderBytes            int      `toml:"max_header_bytes"`
	TLSCertFile               string   `toml:"tls_cert_file"`
	TLSKeyFile                string   `toml:"tls_key_file"`
}

type P2PConfig struct {
	Laddr                   string `toml:"laddr"`
	ExternalAddress         string `toml:"external_address"`
	Seeds                   string `toml:"seeds"`
	PersistentPeers         string `toml:"persistent_peers"`
	UPNP                    bool   `toml:"upnp"`
	AddrBookFile            string `toml:"addr_book_file"`
	AddrBookStrict          bool   `toml:"addr_book_strict"`
	MaxNumInboundPeers      int    `toml:"max_num_inbound_peers"`
	MaxNumOutboundPeers     int    `toml:"max_num_outbound_peers"`
	FlushThrottleTimeout    string `toml:"flush_throttle_timeout"`
	MaxPacketMsgPayloadSize int    `toml:"max_packet_msg_payload_size"`
	SendRate                int    `toml:"send_rate"`
	RecvRate                int    `toml:"recv_rate"`
	PEX                     bool   `toml:"pex"`
	SeedMode                bool   `toml:"seed_mode"`
	PrivatePeerIDs          string `toml:"private_peer_ids"`
	AllowDuplicateIP        bool   `toml:"allow_duplicate_ip"`
	HandshakeTimeout        string `toml:"handshake_timeout"`
	DialTimeout             string `toml:"dial_timeout"`
}

type MempoolConfig struct {
	Recheck     bool   `toml:"recheck"`
	Broadcast   bool   `toml:"broadcast"`
	WalDir      string `toml:"wal_dir"`
	Size        int    `toml:"size"`
	MaxTxsBytes int    `toml:"max_txs_bytes"`
	CacheSize   int    `toml:"cache_size"`
	MaxTxBytes  int    `toml:"max_tx_bytes"`
}

type FastSyncConfig struct {
	Version string `toml:"version"`
}

type ConsensusConfig struct {
	WalFile                     string `toml:"wal_file"`
	TimeoutPropose              string `toml:"timeout_propose"`
	TimeoutProposeDelta         string `toml:"timeout_propose_delta"`
	TimeoutPrevote              string `toml:"timeout_prevote"`
	TimeoutPrevoteDelta         string `toml:"timeout_prevote_delta"`
	TimeoutPrecommit            string `toml:"timeout_precommit"`
	TimeoutPrecommitDelta       string `toml:"timeout_precommit_delta"`
	TimeoutCommit               string `toml:"timeout_commit"`
	SkipTimeoutCommit           bool   `toml:"skip_timeout_commit"`
	CreateEmptyBlocks           bool   `toml:"create_empty_blocks"`
	CreateEmptyBlocksInterval   string `toml:"create_empty_blocks_interval"`
	PeerGossipSleepDuration     string `toml:"peer_gossip_sleep_duration"`
	PeerQueryMaj23SleepDuration string `toml:"peer_query_maj23_sleep_duration"`
}

type TxIndexConfig struct {
	Indexer      string `toml:"indexer"`
	IndexTags    string `toml:"index_tags"`
	IndexAllTags bool   `toml:"index_all_tags"`
}

type InstrumentationConfig struct {
	Prometheus           bool   `toml:"prometheus"`
	PrometheusListenAddr string `toml:"prometheus_listen_addr"`
	MaxOpenConnections   int    `toml:"max_open_connections"`
	Namespace            string `toml:"namespace"`
}

// New returns the node config for a cluster member.  p2p listens on all interfaces so peers can reach it,
// rpc and the abci connection stay on loopback.
func New(moniker string, portSet ports.PortSet, persistentPeers string) Config {
	return Config{
		ProxyApp:               fmt.Sprintf("tcp://127.0.0.1:%d", portSet.ABCI),
		Moniker:                moniker,
		FastSync:               true,
		DBBackend:              "goleveldb",
		DBDir:                  "data",
		LogLevel:               "*:debug",
		LogFormat:              "plain",
		GenesisFile:            "config/genesis.json",
		PrivValidatorKeyFile:   "config/priv_validator_key.json",
		PrivValidatorStateFile: "data/priv_validator_state.json",
		NodeKeyFile:            "config/node_key.json",
		ABCI:                   "socket",
		RPC: RPCConfig{
			Laddr:                     fmt.Sprintf("tcp://127.0.0.1:%d", portSet.NodeRPC),
			CORSAllowedOrigins:        []string{},
			CORSAllowedMethods:        []string{"HEAD", "GET", "POST"},
			CORSAllowedHeaders:        []string{"Origin", "Accept", "Content-Type", "X-Requested-With", "X-Server-Time"},
			GRPCMaxOpenConnections:    900,
			MaxOpenConnections:        900,
			MaxSubscriptionClients:    100,
			MaxSubscriptionsPerClient: 5,
			TimeoutBroadcastTxCommit:  "10s",
			MaxBodyBytes:              1000000,
			MaxHeaderBytes:            1048576,
		},
		P2P: P2PConfig{
			Laddr:                   fmt.Sprintf("tcp://0.0.0.0:%d", portSet.P2P),
			PersistentPeers:         persistentPeers,
			AddrBookFile:            "config/addrbook.json",
			MaxNumInboundPeers:      40,
			MaxNumOutboundPeers:     10,
			FlushThrottleTimeout:    "100ms",
			MaxPacketMsgPayloadSize: 1024,
			SendRate:                5120000,
			RecvRate:                5120000,
			PEX:                     true,
			AllowDuplicateIP:        true,
			HandshakeTimeout:        "20s",
			DialTimeout:             "3s",
		},
		Mempool: MempoolConfig{
			Recheck:     true,
			Broadcast:   true,
			Size:        5000,
			MaxTxsBytes: 1073741824,
			CacheSize:   10000,
			MaxTxBytes:  1048576,
		},
		FastSyncConfig: FastSyncConfig{Version: "v0"},
		Consensus: ConsensusConfig{
			WalFile:                     "data/cs.wal/wal",
			TimeoutPropose:              "3s",
			TimeoutProposeDelta:         "500ms",
			TimeoutPrevote:              "1s",
			TimeoutPrevoteDelta:         "500ms",
			TimeoutPrecommit:            "1s",
			TimeoutPrecommitDelta:       "500ms",
			TimeoutCommit:               "1s",
			CreateEmptyBlocks:           true,
			CreateEmptyBlocksInterval:   "5s",
			PeerGossipSleepDuration:     "100ms",
			PeerQueryMaj23SleepDuration: "2s",
		},
		TxIndex: TxIndexConfig{
			Indexer:      "kv",
			IndexAllTags: true,
		},
		Instrumentation: InstrumentationConfig{
			PrometheusListenAddr: ":26660",
			MaxOpenConnections:   3,
			Namespace:            "tendermint",
		},
	}
}

// Encode writes cfg as toml.
func Encode(w io.Writer, cfg Config) error {
	return toml.NewEncoder(w).Encode(cfg)
}

func WriteFile(path string, cfg Config) error {
	return misc.WriteFileAtomic(path, 0o644, func(w io.Writer) error {
		return Encode(w, cfg)
	})
}

// ValidatorState is the signing state tendermint keeps in data/priv_validator_state.json.  A fresh node
// starts from height 0.
type ValidatorState struct {
	Height string `json:"height"`
	Round  string `json:"round"`
	Step   int    `json:"step"`
}

func InitialValidatorState() ValidatorState {
	return ValidatorState{Height: "0", Round: "0", Step: 0}
}
