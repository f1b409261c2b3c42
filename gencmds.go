package main

import (
	"context"
	"io"

	"github.com/urfave/cli/v3"

	"github.com/leejw51crypto/crypto-chain-bot/internal/cluster"
	"github.com/leejw51crypto/crypto-chain-bot/internal/lib/genesis"
	"github.com/leejw51crypto/crypto-chain-bot/internal/lib/misc"
)

func GetGenCmdOpts() *cli.Command {
	return &cli.Command{
		Name:    "gen",
		Aliases: []string{"g"},
		Usage:   "Generate a cluster specification with fresh mnemonics and seeds",
		Action:  GenSpec,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "count",
				Usage: "Number of nodes",
				Value: 1,
			},
			&cli.UintFlag{
				Name:  "rewards-pool",
				Usage: "Base units kept in the rewards pool, the rest of the supply is split between the nodes",
				Value: 0,
			},
			&cli.StringFlag{
				Name:  "genesis-time",
				Usage: "Genesis time (RFC3339)",
				Value: cluster.DefaultGenesisTime,
			},
			&cli.StringFlag{
				Name:  "base-fee",
				Usage: "Initial base fee",
				Value: "0.0",
			},
			&cli.StringFlag{
				Name:  "per-byte-fee",
				Usage: "Initial per byte fee",
				Value: "0.0",
			},
			&cli.StringFlag{
				Name:    "output",
				Usage:   "Write the specification to this file instead of stdout",
				Aliases: []string{"o"},
			},
		},
	}
}

func GenSpec(ctx context.Context, command *cli.Command) error {
	spec, err := cluster.Generate(cluster.GenOptions{
		Count:       int(command.Int("count")),
		RewardsPool: genesis.Coin(command.Uint("rewards-pool")),
		GenesisTime: command.String("genesis-time"),
		BasePort:    App.cfg.BasePort,
		BaseFee:     command.String("base-fee"),
		PerByteFee:  command.String("per-byte-fee"),
	})
	if err != nil {
		return cli.Exit(err, 1)
	}
	if output := command.String("output"); output != "" {
		err = misc.WriteFileAtomic(output, 0o600, func(w io.Writer) error {
			return cluster.Encode(w, spec)
		})
		if err != nil {
			return err
		}
		misc.Infof(App.logger, "wrote %d node specification to %s", len(spec.Nodes), output)
		return nil
	}
	return cluster.Encode(App.out, spec)
}
