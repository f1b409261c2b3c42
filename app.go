package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strconv"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/leejw51crypto/crypto-chain-bot/internal/cluster"
	"github.com/leejw51crypto/crypto-chain-bot/internal/config"
	"github.com/leejw51crypto/crypto-chain-bot/internal/lib/exttool"
	"github.com/leejw51crypto/crypto-chain-bot/internal/lib/misc"
)

var logLevel = new(slog.LevelVar) // Info by default

// setting is a run configuration value that can come from a flag, the environment or an env file.
type setting struct {
	flag  string
	env   string
	usage string
	value string
}

var stringSettings = []setting{
	{"root", "ROOT_PATH", "Directory the cluster is prepared in", "."},
	{"chain-id", "CHAIN_ID", "Chain id written to genesis and passed to chain-abci/client-rpc", config.DefaultChainID},
	{"sgx-device", "SGX_DEVICE", "SGX device passed to the enclave container, enables hardware mode", ""},
	{"enclave-image", "CHAIN_TX_ENCLAVE_DOCKER_IMAGE", "tx-enclave docker image (without the -sw/-hw suffix)", config.DefaultEnclaveImage},
	{"chain-image", "CHAIN_DOCKER_IMAGE", "Docker image holding the chain tools, used with --docker", config.DefaultChainImage},
	{"devutil-cmd", "DEVUTIL_CMD", "dev-utils binary", "dev-utils"},
	{"client-cmd", "CLIENT_CMD", "client-cli binary", "client-cli"},
	{"chain-cmd", "CHAIN_CMD", "chain-abci binary", "chain-abci"},
	{"client-rpc-cmd", "CLIENT_RPC_CMD", "client-rpc binary", "client-rpc"},
	{"tendermint-cmd", "TENDERMINT_CMD", "tendermint binary", "tendermint"},
	{"peer-host", "PEER_HOST", "Host used in the persistent peer addresses", config.DefaultPeerHost},
	{"wallet-passphrase", "WALLET_PASSPHRASE", "Passphrase of the throwaway wallets used to derive staking addresses", config.DefaultPassphrase},
}

func initApp() *ChainbotApp {
	log.SetFlags(0)
	logger := misc.NewLogger(os.Stdout, logLevel, term.IsTerminal(int(os.Stdout.Fd())))
	slog.SetDefault(logger)
	if os.Getenv("DEBUG") == "1" {
		logLevel.Set(slog.LevelDebug)
	}

	misc.LoadEnvSettings(logger)

	appConfig := &ChainbotApp{logger: logger, in: os.Stdin, out: os.Stdout}

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    "envfile",
			Usage:   "env file to load",
			Sources: cli.EnvVars("CHAINBOT_ENVFILE"),
			Aliases: []string{"e"},
		},
		&cli.IntFlag{
			Name:    "base-port",
			Usage:   "First port of the first node, every node uses 10 ports from its base port",
			Value:   config.DefaultBasePort,
			Sources: cli.EnvVars("BASE_PORT"),
		},
		&cli.BoolFlag{
			Name:    "docker",
			Usage:   "Run client-cli and dev-utils inside the chain docker image",
			Sources: cli.EnvVars("USE_DOCKER"),
		},
	}
	for _, s := range stringSettings {
		flags = append(flags, &cli.StringFlag{
			Name:    s.flag,
			Usage:   s.usage,
			Value:   s.value,
			Sources: cli.EnvVars(s.env),
		})
	}

	appConfig.cliCmd = &cli.Command{
		Name:    "chainbot",
		Usage:   "Prepare multi-node tendermint test clusters",
		Version: misc.GetVersionInfo(),
		Before: func(ctx context.Context, cmd *cli.Command) error {
			return appConfig.initConfig(ctx, cmd)
		},
		Flags: flags,
		Commands: []*cli.Command{
			GetGenCmdOpts(),
			GetPrepareCmdOpts(),
			GetPeersCmdOpts(),
		},
	}
	return appConfig
}

type ChainbotApp struct {
	cliCmd  *cli.Command
	logger  *slog.Logger
	in      io.Reader
	out     io.Writer
	cfg     config.Config
	metrics *cluster.Metrics
	// runner executes external tools, set up in initConfig unless already provided.
	runner exttool.Runner
}

// initConfig folds flags, environment and the optional env file into the immutable run configuration and
// sets up the external tool runner.
func (ac *ChainbotApp) initConfig(ctx context.Context, cmd *cli.Command) error {
	if envfile := cmd.String("envfile"); envfile != "" {
		if err := misc.LoadNamedEnvFile(ac.logger, envfile); err != nil {
			return err
		}
	}

	cfg := config.Default()
	cfg.RootPath = stringSetting(cmd, "root", "ROOT_PATH")
	cfg.ChainID = stringSetting(cmd, "chain-id", "CHAIN_ID")
	cfg.SGXDevice = stringSetting(cmd, "sgx-device", "SGX_DEVICE")
	cfg.EnclaveImage = stringSetting(cmd, "enclave-image", "CHAIN_TX_ENCLAVE_DOCKER_IMAGE")
	cfg.ChainImage = stringSetting(cmd, "chain-image", "CHAIN_DOCKER_IMAGE")
	cfg.DevUtilCmd = stringSetting(cmd, "devutil-cmd", "DEVUTIL_CMD")
	cfg.ClientCmd = stringSetting(cmd, "client-cmd", "CLIENT_CMD")
	cfg.ChainCmd = stringSetting(cmd, "chain-cmd", "CHAIN_CMD")
	cfg.ClientRPCCmd = stringSetting(cmd, "client-rpc-cmd", "CLIENT_RPC_CMD")
	cfg.TendermintCmd = stringSetting(cmd, "tendermint-cmd", "TENDERMINT_CMD")
	cfg.PeerHost = stringSetting(cmd, "peer-host", "PEER_HOST")
	cfg.WalletPassphrase = stringSetting(cmd, "wallet-passphrase", "WALLET_PASSPHRASE")
	cfg.BasePort = int(cmd.Int("base-port"))
	cfg.UseDocker = cmd.Bool("docker")
	// values from an explicit env file only become visible after flag parsing
	if !cmd.IsSet("base-port") {
		if err := setIntFromEnv(&cfg.BasePort, "BASE_PORT"); err != nil {
			return err
		}
	}
	if !cmd.IsSet("docker") {
		if val := os.Getenv("USE_DOCKER"); val != "" {
			useDocker, err := strconv.ParseBool(val)
			if err != nil {
				return fmt.Errorf("invalid USE_DOCKER value %q: %w", val, err)
			}
			cfg.UseDocker = useDocker
		}
	}

	resolved, err := cfg.Resolve()
	if err != nil {
		return err
	}
	ac.cfg = resolved
	misc.Debugf(ac.logger, "configuration: root:%s, base port:%d, chain id:%s, sgx mode:%s, docker:%v",
		ac.cfg.RootPath, ac.cfg.BasePort, ac.cfg.ChainID, ac.cfg.SGXMode(), ac.cfg.UseDocker)

	ac.metrics = cluster.NewMetrics()
	runner := ac.runner
	if runner == nil {
		runner = exttool.NewExecRunner(ac.logger)
	}
	if ac.cfg.UseDocker {
		runner = &exttool.DockerRunner{
			Next:  runner,
			Image: ac.cfg.ChainImage,
			User:  fmt.Sprintf("%d:%d", os.Getuid(), os.Getgid()),
		}
	}
	ac.runner = ac.metrics.InstrumentRunner(runner)
	return nil
}

func (ac *ChainbotApp) wallet(logger *slog.Logger) *exttool.Wallet {
	return exttool.NewWallet(ac.runner, logger, ac.cfg.ClientCmd, ac.cfg.WalletPassphrase)
}

func (ac *ChainbotApp) compiler(logger *slog.Logger) *exttool.Compiler {
	return exttool.NewCompiler(ac.runner, logger, ac.cfg.DevUtilCmd)
}

func stringSetting(cmd *cli.Command, flag, envName string) string {
	if !cmd.IsSet(flag) {
		if val := os.Getenv(envName); val != "" {
			return val
		}
	}
	return cmd.String(flag)
}

func setIntFromEnv(val *int, envName string) error {
	if strVal := os.Getenv(envName); strVal != "" {
		intVal, err := strconv.Atoi(strVal)
		if err != nil {
			return fmt.Errorf("invalid %s value %q: %w", envName, strVal, err)
		}
		*val = intVal
	}
	return nil
}
