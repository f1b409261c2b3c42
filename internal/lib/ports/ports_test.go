package ports

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leejw51crypto/crypto-chain-bot/internal/lib/identity"
)

func TestPlanOffsets(t *testing.T) {
	set, err := Plan(26650, true)
	require.NoError(t, err)
	assert.Equal(t, PortSet{
		Base:      26650,
		Enclave:   26650,
		ClientRPC: 26651,
		P2P:       26656,
		NodeRPC:   26657,
		ABCI:      26658,
	}, set)
}

func TestPlanInvalidBasePort(t *testing.T) {
	testCases := []struct {
		name     string
		base     int
		multiple bool
	}{
		{"zero", 0, false},
		{"negative", -10, false},
		{"too high", 65530, false},
		{"unaligned", 26655, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Plan(tc.base, tc.multiple)
			assert.ErrorIs(t, err, ErrInvalidBasePort)
		})
	}

	// alignment isn't enforced unless asked for
	_, err := Plan(26655, false)
	assert.NoError(t, err)
}

func TestPortsDisjointAcrossNodes(t *testing.T) {
	for _, numNodes := range []int{1, 2, 5, 10, 50} {
		var sets []PortSet
		seen := map[int]bool{}
		for i := 0; i < numNodes; i++ {
			set, err := Plan(20000+i*Stride, true)
			require.NoError(t, err)
			sets = append(sets, set)
			for _, port := range set.All() {
				assert.False(t, seen[port], "port %d reused with %d nodes", port, numNodes)
				seen[port] = true
			}
		}
		assert.Len(t, seen, numNodes*5)
		assert.NoError(t, CheckDisjoint(sets))
	}
}

func TestCheckDisjointDetectsCollision(t *testing.T) {
	a, err := Plan(26650, false)
	require.NoError(t, err)
	b, err := Plan(26655, false)
	require.NoError(t, err)
	assert.ErrorIs(t, CheckDisjoint([]PortSet{a, b}), ErrPortCollision)
}

func TestPeerList(t *testing.T) {
	peerPattern := regexp.MustCompile(`^tcp://[0-9a-f]{40}@0\.0\.0\.0:\d+$`)
	for numNodes := 1; numNodes <= 4; numNodes++ {
		var peers []Peer
		for i := 0; i < numNodes; i++ {
			id, err := identity.Derive(bytes.Repeat([]byte{byte(i + 1)}, identity.SeedSize))
			require.NoError(t, err)
			set, err := Plan(26650+i*Stride, true)
			require.NoError(t, err)
			peers = append(peers, Peer{Identity: id, Ports: set})
		}
		list := PeerList(peers, "0.0.0.0")
		entries := strings.Split(list, ",")
		require.Len(t, entries, numNodes)
		for i, entry := range entries {
			assert.Regexp(t, peerPattern, entry)
			assert.Equal(t, PeerAddress(peers[i].Identity, peers[i].Ports, "0.0.0.0"), entry)
			assert.Contains(t, entry, strings.ToLower(peers[i].Identity.Address))
			assert.True(t, strings.HasSuffix(entry, ":"+strconv.Itoa(peers[i].Ports.P2P)))
		}
	}
}
