package ports

import (
	"errors"
	"fmt"
	"strings"

	"github.com/leejw51crypto/crypto-chain-bot/internal/lib/identity"
)

// Offsets from a node's base port. Every node owns [base, base+Stride).
const (
	EnclaveOffset   = 0
	ClientRPCOffset = 1
	P2POffset       = 6
	NodeRPCOffset   = 7
	ABCIOffset      = 8

	Stride  = 10
	MaxPort = 65535
)

var (
	ErrInvalidBasePort = errors.New("invalid base port")
	ErrPortCollision   = errors.New("port collision between nodes")
)

// PortSet holds the resolved listening ports of a single node's services.
type PortSet struct {
	Base      int
	Enclave   int
	ClientRPC int
	P2P       int
	NodeRPC   int
	ABCI      int
}

// All returns every resolved port in offset order.
func (p PortSet) All() []int {
	return []int{p.Enclave, p.ClientRPC, p.P2P, p.NodeRPC, p.ABCI}
}

// Plan resolves the port set for basePort.  When requireMultipleOf10 is set the base port must be aligned
// to the stride so adjacent nodes can never overlap.
func Plan(basePort int, requireMultipleOf10 bool) (PortSet, error) {
	if basePort <= 0 || basePort+Stride-1 > MaxPort {
		return PortSet{}, fmt.Errorf("%w: %d must be within 1-%d", ErrInvalidBasePort, basePort, MaxPort-Stride+1)
	}
	if requireMultipleOf10 && basePort%Stride != 0 {
		return PortSet{}, fmt.Errorf("%w: %d is not a multiple of %d", ErrInvalidBasePort, basePort, Stride)
	}
	return PortSet{
		Base:      basePort,
		Enclave:   basePort + EnclaveOffset,
		ClientRPC: basePort + ClientRPCOffset,
		P2P:       basePort + P2POffset,
		NodeRPC:   basePort + NodeRPCOffset,
		ABCI:      basePort + ABCIOffset,
	}, nil
}

// CheckDisjoint verifies no port is used by more than one node.
func CheckDisjoint(sets []PortSet) error {
	owner := map[int]int{}
	for i, set := range sets {
		for _, port := range set.All() {
			if prev, found := owner[port]; found && prev != i {
				return fmt.Errorf("%w: port %d used by node %d and node %d", ErrPortCollision, port, prev, i)
			}
			owner[port] = i
		}
	}
	return nil
}

// Peer is a node as seen by the gossip layer: its node key identity and ports.
type Peer struct {
	Identity identity.NodeIdentity
	Ports    PortSet
}

// PeerAddress formats the tendermint persistent peer string tcp://<node id>@<host>:<p2p port>.
func PeerAddress(id identity.NodeIdentity, ports PortSet, host string) string {
	return fmt.Sprintf("tcp://%s@%s:%d", strings.ToLower(id.Address), host, ports.P2P)
}

// PeerList joins the peer address of every node in order.  Each node's own address is included.
func PeerList(peers []Peer, host string) string {
	addrs := make([]string, 0, len(peers))
	for _, peer := range peers {
		addrs = append(addrs, PeerAddress(peer.Identity, peer.Ports, host))
	}
	return strings.Join(addrs, ",")
}
