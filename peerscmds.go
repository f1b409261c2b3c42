package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/leejw51crypto/crypto-chain-bot/internal/cluster"
	"github.com/leejw51crypto/crypto-chain-bot/internal/lib/identity"
	"github.com/leejw51crypto/crypto-chain-bot/internal/lib/ports"
)

func GetPeersCmdOpts() *cli.Command {
	return &cli.Command{
		Name:      "peers",
		Usage:     "Print the persistent peer list and port plan of a specification",
		ArgsUsage: "[spec file, stdin when omitted or -]",
		Action:    ShowPeers,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "list",
				Usage: "Only print the comma separated peer list",
			},
			alignPortsFlag(),
		},
	}
}

func ShowPeers(ctx context.Context, command *cli.Command) error {
	spec, err := readSpec(command.Args().First())
	if err != nil {
		return cli.Exit(err, 1)
	}
	peers, err := planPeers(spec, command.Bool("align-ports"))
	if err != nil {
		return cli.Exit(err, 1)
	}

	list := ports.PeerList(peers, App.cfg.PeerHost)
	if command.Bool("list") {
		fmt.Fprintln(App.out, list)
		return nil
	}
	for i, peer := range peers {
		p := peer.Ports
		fmt.Fprintf(App.out, "%s: enclave:%d client-rpc:%d p2p:%d rpc:%d abci:%d\n",
			spec.Nodes[i].Name, p.Enclave, p.ClientRPC, p.P2P, p.NodeRPC, p.ABCI)
		fmt.Fprintln(App.out, "  peer:", ports.PeerAddress(peer.Identity, p, App.cfg.PeerHost))
	}
	if err = ports.CheckDisjoint(collectPorts(peers)); err != nil {
		return cli.Exit(err, 1)
	}
	fmt.Fprintln(App.out, "persistent_peers:", list)
	return nil
}

// planPeers derives the peer identity and ports of every node, with the same port rules prepare applies.
func planPeers(spec *cluster.Spec, alignPorts bool) ([]ports.Peer, error) {
	peers := make([]ports.Peer, 0, len(spec.Nodes))
	for _, node := range spec.Nodes {
		set, err := ports.Plan(node.BasePort, alignPorts)
		if err != nil {
			return nil, fmt.Errorf("ports of %s: %w", node.Name, err)
		}
		id, err := identity.Derive(node.NodeSeed)
		if err != nil {
			return nil, fmt.Errorf("node seed of %s: %w", node.Name, err)
		}
		peers = append(peers, ports.Peer{Identity: id, Ports: set})
	}
	return peers, nil
}

func collectPorts(peers []ports.Peer) []ports.PortSet {
	sets := make([]ports.PortSet, 0, len(peers))
	for _, peer := range peers {
		sets = append(sets, peer.Ports)
	}
	return sets
}
