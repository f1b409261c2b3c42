package genesis

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/leejw51crypto/crypto-chain-bot/internal/lib/identity"
)

// Document is the tendermint genesis.json shared by every node of the cluster.
type Document struct {
	GenesisTime     string          `json:"genesis_time"`
	ChainID         string          `json:"chain_id"`
	ConsensusParams ConsensusParams `json:"consensus_params"`
	Validators      []Validator     `json:"validators"`
	AppHash         string          `json:"app_hash"`
	AppState        json.RawMessage `json:"app_state,omitempty"`

	// Extra holds top-level fields the application put in the genesis that have no field above.
	Extra map[string]json.RawMessage `json:"-"`
}

// documentFields has the fields of Document without its json methods.
type documentFields Document

var documentKeys = []string{"genesis_time", "chain_id", "consensus_params", "validators", "app_hash", "app_state"}

func (d Document) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(documentFields(d))
	if err != nil || len(d.Extra) == 0 {
		return known, err
	}
	var fields map[string]json.RawMessage
	if err = json.Unmarshal(known, &fields); err != nil {
		return nil, err
	}
	for key, value := range d.Extra {
		if _, exists := fields[key]; !exists {
			fields[key] = value
		}
	}
	return json.Marshal(fields)
}

func (d *Document) UnmarshalJSON(data []byte) error {
	var known documentFields
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	for _, key := range documentKeys {
		delete(fields, key)
	}
	known.Extra = nil
	if len(fields) > 0 {
		known.Extra = fields
	}
	*d = Document(known)
	return nil
}

type Validator struct {
	Address string            `json:"address"`
	PubKey  identity.KeyValue `json:"pub_key"`
	Power   uint64            `json:"power,string"`
	Name    string            `json:"name"`
}

type ConsensusParams struct {
	Block     BlockParams     `json:"block"`
	Evidence  EvidenceParams  `json:"evidence"`
	Validator ValidatorParams `json:"validator"`
}

type BlockParams struct {
	MaxBytes   string `json:"max_bytes"`
	MaxGas     string `json:"max_gas"`
	TimeIotaMs string `json:"time_iota_ms"`
}

type EvidenceParams struct {
	MaxAge string `json:"max_age"`
}

type ValidatorParams struct {
	PubKeyTypes []string `json:"pub_key_types"`
}

func DefaultConsensusParams() ConsensusParams {
	return ConsensusParams{
		Block: BlockParams{
			MaxBytes:   "22020096",
			MaxGas:     "-1",
			TimeIotaMs: "1000",
		},
		Evidence:  EvidenceParams{MaxAge: "100000"},
		Validator: ValidatorParams{PubKeyTypes: []string{"ed25519"}},
	}
}

// Merge overlays top-level genesis fields (as printed by the app state compiler) onto the document.
// Fields that aren't part of Document are kept in Extra.
func (d *Document) Merge(fields map[string]json.RawMessage) error {
	current, err := json.Marshal(d)
	if err != nil {
		return err
	}
	var merged map[string]json.RawMessage
	if err = json.Unmarshal(current, &merged); err != nil {
		return err
	}
	for key, value := range fields {
		merged[key] = value
	}
	combined, err := json.Marshal(merged)
	if err != nil {
		return err
	}
	var result Document
	if err = json.Unmarshal(combined, &result); err != nil {
		return fmt.Errorf("merged genesis is invalid: %w", err)
	}
	*d = result
	return nil
}

// Load reads a genesis document from path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err = json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unable to parse genesis %s: %w", path, err)
	}
	return &doc, nil
}
