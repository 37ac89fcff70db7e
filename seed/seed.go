// Package seed carries the starter catalogue shipped with the binary.
package seed

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
)

//go:embed starter.yaml
var Starter []byte

// Load returns the file at path, or the embedded starter data when path is empty.
func Load(path string) ([]byte, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Starter, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("seed: read %s: %w", path, err)
	}
	return raw, nil
}
