package identity

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/ed25519"
)

// SeedSize is the only accepted seed length - it's the ed25519 private key seed size.
const SeedSize = ed25519.SeedSize

// AddressSize is the number of sha256 bytes kept for a validator address.
const AddressSize = 20

const (
	PubKeyType  = "tendermint/PubKeyEd25519"
	PrivKeyType = "tendermint/PrivKeyEd25519"
)

var ErrInvalidSeedLength = errors.New("invalid seed length")

// Seed is raw key material, hex encoded when stored in cluster specification files.
type Seed []byte

func (s Seed) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(s)), nil
}

func (s *Seed) UnmarshalText(text []byte) error {
	decoded, err := hex.DecodeString(string(text))
	if err != nil {
		return fmt.Errorf("seed is not valid hex: %w", err)
	}
	*s = decoded
	return nil
}

// ReadSeed reads a new seed from rnd, crypto/rand when nil.
func ReadSeed(rnd io.Reader) (Seed, error) {
	if rnd == nil {
		rnd = rand.Reader
	}
	seed := make(Seed, SeedSize)
	if _, err := io.ReadFull(rnd, seed); err != nil {
		return nil, fmt.Errorf("unable to read random seed: %w", err)
	}
	return seed, nil
}

// NodeIdentity is the keypair and derived address of a validator or p2p node key.
type NodeIdentity struct {
	PrivateKey ed25519.PrivateKey
	PublicKey  ed25519.PublicKey
	Address    string
}

// Derive deterministically builds the ed25519 keypair for seed along with its validator address.
// The same seed always yields the same identity.
func Derive(seed []byte) (NodeIdentity, error) {
	if len(seed) != SeedSize {
		return NodeIdentity{}, fmt.Errorf("%w: got %d bytes, need %d", ErrInvalidSeedLength, len(seed), SeedSize)
	}
	privKey := ed25519.NewKeyFromSeed(seed)
	pubKey := privKey.Public().(ed25519.PublicKey)
	return NodeIdentity{
		PrivateKey: privKey,
		PublicKey:  pubKey,
		Address:    ValidatorAddress(pubKey),
	}, nil
}

// ValidatorAddress is the upper-case hex of the first 20 bytes of sha256(pubKey).
func ValidatorAddress(pubKey []byte) string {
	sum := sha256.Sum256(pubKey)
	return strings.ToUpper(hex.EncodeToString(sum[:AddressSize]))
}

func (n NodeIdentity) PubKeyBase64() string {
	return base64.StdEncoding.EncodeToString(n.PublicKey)
}

// PrivKeyBase64 encodes the full 64 byte private key (seed || public key).
func (n NodeIdentity) PrivKeyBase64() string {
	return base64.StdEncoding.EncodeToString(n.PrivateKey)
}

func (n NodeIdentity) PubKey() KeyValue {
	return KeyValue{Type: PubKeyType, Value: n.PubKeyBase64()}
}

func (n NodeIdentity) PrivKey() KeyValue {
	return KeyValue{Type: PrivKeyType, Value: n.PrivKeyBase64()}
}

// KeyValue is the amino-json typed key envelope used by tendermint key files.
type KeyValue struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// NodeKeyFile is the content of node_key.json.
type NodeKeyFile struct {
	PrivKey KeyValue `json:"priv_key"`
}

// ValidatorKeyFile is the content of priv_validator_key.json.
type ValidatorKeyFile struct {
	Address string   `json:"address"`
	PubKey  KeyValue `json:"pub_key"`
	PrivKey KeyValue `json:"priv_key"`
}

func (n NodeIdentity) NodeKey() NodeKeyFile {
	return NodeKeyFile{PrivKey: n.PrivKey()}
}

func (n NodeIdentity) ValidatorKey() ValidatorKeyFile {
	return ValidatorKeyFile{
		Address: n.Address,
		PubKey:  n.PubKey(),
		PrivKey: n.PrivKey(),
	}
}
