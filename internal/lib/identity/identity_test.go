package identity

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upperAddress = regexp.MustCompile(`^[0-9A-F]{40}$`)

func TestDeriveIsDeterministic(t *testing.T) {
	for _, fill := range []byte{0x00, 0xab, 0xcd, 0xff} {
		seed := bytes.Repeat([]byte{fill}, SeedSize)
		first, err := Derive(seed)
		require.NoError(t, err)
		second, err := Derive(seed)
		require.NoError(t, err)

		assert.Equal(t, first.PrivateKey, second.PrivateKey)
		assert.Equal(t, first.PublicKey, second.PublicKey)
		assert.Equal(t, first.Address, second.Address)
		assert.Regexp(t, upperAddress, first.Address)
		assert.Equal(t, ValidatorAddress(first.PublicKey), first.Address)
	}
}

func TestDeriveDoesNotMutateSeed(t *testing.T) {
	seed := bytes.Repeat([]byte{0xab}, SeedSize)
	orig := bytes.Clone(seed)
	_, err := Derive(seed)
	require.NoError(t, err)
	assert.Equal(t, orig, seed)
}

func TestDeriveDistinctSeeds(t *testing.T) {
	a, err := Derive(bytes.Repeat([]byte{0xab}, SeedSize))
	require.NoError(t, err)
	b, err := Derive(bytes.Repeat([]byte{0xcd}, SeedSize))
	require.NoError(t, err)
	assert.NotEqual(t, a.Address, b.Address)
}

func TestDeriveInvalidSeedLength(t *testing.T) {
	testCases := []struct {
		name string
		seed []byte
	}{
		{"nil", nil},
		{"empty", []byte{}},
		{"short", make([]byte, 31)},
		{"long", make([]byte, 33)},
		{"full private key", make([]byte, 64)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Derive(tc.seed)
			assert.ErrorIs(t, err, ErrInvalidSeedLength)
		})
	}
}

func TestKeyEncodings(t *testing.T) {
	seed := bytes.Repeat([]byte{0xab}, SeedSize)
	id, err := Derive(seed)
	require.NoError(t, err)

	priv, err := base64.StdEncoding.DecodeString(id.PrivKeyBase64())
	require.NoError(t, err)
	require.Len(t, priv, 64)
	assert.Equal(t, seed, priv[:SeedSize], "private key must start with the seed")

	pub, err := base64.StdEncoding.DecodeString(id.PubKeyBase64())
	require.NoError(t, err)
	assert.Equal(t, []byte(id.PublicKey), pub)
	assert.Equal(t, pub, priv[SeedSize:])

	vk := id.ValidatorKey()
	assert.Equal(t, id.Address, vk.Address)
	assert.Equal(t, PubKeyType, vk.PubKey.Type)
	assert.Equal(t, PrivKeyType, vk.PrivKey.Type)
	assert.Equal(t, vk.PrivKey, id.NodeKey().PrivKey)
}

func TestSeedText(t *testing.T) {
	var decoded struct {
		Seed Seed `json:"seed"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"seed":"abab"}`), &decoded))
	assert.Equal(t, Seed{0xab, 0xab}, decoded.Seed)

	assert.Error(t, json.Unmarshal([]byte(`{"seed":"zz"}`), &decoded))

	seed, err := ReadSeed(nil)
	require.NoError(t, err)
	assert.Len(t, seed, SeedSize)
	text, err := seed.MarshalText()
	require.NoError(t, err)
	assert.Len(t, text, SeedSize*2)

	_, err = ReadSeed(bytes.NewReader([]byte{1, 2, 3}))
	assert.Error(t, err, "short random source")
}
