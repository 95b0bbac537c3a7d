package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/warpdl/warpq/pkg/netstate"
)

// PolicyPath returns the policy file path inside dir.
func PolicyPath(dir string) string {
	return filepath.Join(dir, PolicyFileName)
}

// LoadPolicy reads the user policy from dir. Keys missing from the file,
// or the whole file, fall back to base.
func LoadPolicy(dir string, base netstate.Policy) (netstate.Policy, error) {
	b, err := os.ReadFile(PolicyPath(dir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return base, nil
		}
		return base, fmt.Errorf("read policy: %w", err)
	}
	p := base
	if err := toml.Unmarshal(b, &p); err != nil {
		return base, fmt.Errorf("parse policy: %w", err)
	}
	return p, nil
}

// SavePolicy atomically replaces the policy file in dir.
func SavePolicy(dir string, p netstate.Policy) error {
	b, err := toml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal policy: %w", err)
	}
	return writeAtomic(PolicyPath(dir), b)
}
