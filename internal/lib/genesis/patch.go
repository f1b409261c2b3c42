package genesis

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"
)

var ErrPatchPathNotFound = errors.New("patch path not found")

// PatchOp is a single RFC 6902 json patch operation applied to the app state config.
type PatchOp struct {
	Op    string          `json:"op"`
	Path  string          `json:"path"`
	Value json.RawMessage `json:"value,omitempty"`
}

// Replace returns a replace operation setting path to value.
func Replace(path string, value any) (PatchOp, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return PatchOp{}, err
	}
	return PatchOp{Op: "replace", Path: path, Value: raw}, nil
}

// ApplyPatch applies ops in order to state and returns the patched copy; state itself is not modified.
// Operations addressing a missing path fail with ErrPatchPathNotFound.
func ApplyPatch(state AppState, ops []PatchOp) (AppState, error) {
	if len(ops) == 0 {
		return state, nil
	}
	rawOps, err := json.Marshal(ops)
	if err != nil {
		return AppState{}, err
	}
	patch, err := jsonpatch.DecodePatch(rawOps)
	if err != nil {
		return AppState{}, fmt.Errorf("invalid config patch: %w", err)
	}
	doc, err := json.Marshal(state)
	if err != nil {
		return AppState{}, err
	}
	patched, err := patch.Apply(doc)
	if err != nil {
		if errors.Is(err, jsonpatch.ErrMissing) {
			return AppState{}, fmt.Errorf("%w: %v", ErrPatchPathNotFound, err)
		}
		return AppState{}, fmt.Errorf("unable to apply config patch: %w", err)
	}

	var result AppState
	decoder := json.NewDecoder(bytes.NewReader(patched))
	decoder.DisallowUnknownFields()
	if err = decoder.Decode(&result); err != nil {
		return AppState{}, fmt.Errorf("patched app state is invalid: %w", err)
	}
	return result, nil
}
