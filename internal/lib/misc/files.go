package misc

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteFileAtomic writes to a temp file next to path and only replaces path once write (and close)
// succeeded, so a failed write never leaves a truncated file behind.
func WriteFileAtomic(path string, perm os.FileMode, write func(w io.Writer) error) error {
	temp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	err = write(temp)
	if err != nil {
		_ = temp.Close()
		_ = os.Remove(temp.Name())
		return fmt.Errorf("error writing %s: %w", path, err)
	}
	if err = temp.Chmod(perm); err != nil {
		_ = temp.Close()
		_ = os.Remove(temp.Name())
		return err
	}
	err = temp.Close()
	if err != nil {
		_ = os.Remove(temp.Name())
		return err
	}
	return os.Rename(temp.Name(), path)
}

// WriteJSONFile saves v as indented json.
func WriteJSONFile(path string, v any) error {
	return WriteFileAtomic(path, 0o644, func(w io.Writer) error {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "    ")
		return encoder.Encode(v)
	})
}
