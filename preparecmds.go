package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/manifoldco/promptui"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/leejw51crypto/crypto-chain-bot/internal/cluster"
	"github.com/leejw51crypto/crypto-chain-bot/internal/lib/manifest"
	"github.com/leejw51crypto/crypto-chain-bot/internal/lib/misc"
)

func GetPrepareCmdOpts() *cli.Command {
	return &cli.Command{
		Name:      "prepare",
		Aliases:   []string{"p"},
		Usage:     "Prepare the cluster directory from a specification",
		ArgsUsage: "[spec file, stdin when omitted or -]",
		Action:    PrepareCluster,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "force",
				Usage:   "Replace an already prepared cluster",
				Aliases: []string{"f"},
			},
			alignPortsFlag(),
			&cli.BoolFlag{
				Name:  "save-spec",
				Usage: "Store the staking addresses fetched from the wallet back into the spec file",
			},
			&cli.StringFlag{
				Name:    "metrics-file",
				Usage:   "Write bootstrap metrics in prometheus textfile format to this file",
				Sources: cli.EnvVars("CHAINBOT_METRICS_FILE"),
			},
		},
	}
}

func PrepareCluster(ctx context.Context, command *cli.Command) error {
	specPath := command.Args().First()
	spec, err := readSpec(specPath)
	if err != nil {
		return cli.Exit(err, 1)
	}

	force := command.Bool("force")
	if !force && clusterExists(App.cfg.RootPath) && specPath != "" && specPath != "-" && term.IsTerminal(int(os.Stdin.Fd())) {
		// anything but a yes (including ctrl-c) leaves the existing cluster alone
		if _, err = yesNo(fmt.Sprintf("%s already holds a prepared cluster, replace it", App.cfg.RootPath)); err == nil {
			force = true
		}
	}

	// tag every log line of this run
	logger := App.logger.With("run", uuid.NewString())
	bootstrapper := cluster.New(logger, App.wallet(logger), App.compiler(logger), cluster.Options{
		Force:      force,
		ChainID:    App.cfg.ChainID,
		PeerHost:   App.cfg.PeerHost,
		AlignPorts: command.Bool("align-ports"),
		Manifest: manifest.Options{
			RootDir:       App.cfg.RootPath,
			ChainID:       App.cfg.ChainID,
			EnclaveImage:  App.cfg.EnclaveImage,
			SGXDevice:     App.cfg.SGXDevice,
			ChainCmd:      App.cfg.ChainCmd,
			TendermintCmd: App.cfg.TendermintCmd,
			ClientRPCCmd:  App.cfg.ClientRPCCmd,
		},
		Metrics: App.metrics,
	})
	result, err := bootstrapper.Run(ctx, spec)
	if metricsFile := command.String("metrics-file"); metricsFile != "" {
		if mErr := App.metrics.WriteTextfile(metricsFile); mErr != nil {
			misc.Warnf(logger, "unable to write metrics to %s: %v", metricsFile, mErr)
		}
	}
	if err != nil {
		return cli.Exit(err, 1)
	}

	if command.Bool("save-spec") {
		if specPath == "" || specPath == "-" {
			misc.Warnf(logger, "spec was read from stdin, not saving staking addresses")
		} else if err = saveSpec(specPath, spec); err != nil {
			return err
		}
	}
	fmt.Fprintln(App.out, "Prepared successfully", result.RootDir)
	return nil
}

func readSpec(path string) (*cluster.Spec, error) {
	if path == "" || path == "-" {
		return cluster.Load(App.in)
	}
	return cluster.LoadFile(path)
}

func saveSpec(path string, spec *cluster.Spec) error {
	return misc.WriteFileAtomic(path, 0o600, func(w io.Writer) error {
		return cluster.Encode(w, spec)
	})
}

func alignPortsFlag() *cli.BoolFlag {
	return &cli.BoolFlag{
		Name:  "align-ports",
		Usage: "Require node base ports to be multiples of 10",
		Value: true,
	}
}

func clusterExists(root string) bool {
	_, err := os.Stat(filepath.Join(root, cluster.ManifestFile))
	return !errors.Is(err, fs.ErrNotExist)
}

func yesNo(prompt string) (string, error) {
	return (&promptui.Prompt{
		Label:     prompt,
		IsConfirm: true,
	}).Run()
}
