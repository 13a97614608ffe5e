package settings

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// File reads settings from a YAML (or JSON) file on every Load. A missing
// file means defaults.
type File struct {
	Path string
}

// Load implements Source.
func (f File) Load(ctx context.Context) (*View, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return Defaults(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("settings: read %s: %w", f.Path, err)
	}
	var v View
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("settings: decode %s: %w", f.Path, err)
	}
	return v.WithDefaults(), nil
}
