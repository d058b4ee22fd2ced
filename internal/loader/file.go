package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"sogif-site/internal/kpi"
)

// File reads the constants document from disk. YAML and JSON are accepted; the
// format is chosen by extension.
type File struct {
	path   string
	logger zerolog.Logger
}

// NewFile constructs a file loader.
func NewFile(path string, logger zerolog.Logger) *File {
	return &File{path: path, logger: logger.With().Str("component", "file_loader").Logger()}
}

// Load reads and validates the document on every call.
func (f *File) Load(ctx context.Context) (*kpi.Bundle, error) {
	if f.path == "" {
		return nil, Unavailable("file", fmt.Errorf("constants file path not configured"))
	}
	if err := ctx.Err(); err != nil {
		return nil, Unavailable("file", err)
	}

	raw, err := os.ReadFile(f.path)
	if err != nil {
		return nil, Unavailable("file", err)
	}

	doc, err := ReadDocument(f.path, raw)
	if err != nil {
		return nil, Unavailable("file", err)
	}

	bundle, err := kpi.Decode(doc)
	if err != nil {
		return nil, Unavailable("file", fmt.Errorf("%s: %w", f.path, err))
	}

	f.logger.Debug().Str("path", f.path).Int("rows", bundle.Len()).Msg("constants document read")
	return bundle, nil
}

// ReadDocument normalises a YAML or JSON document to JSON bytes.
func ReadDocument(path string, raw []byte) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc any
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("%w: parse yaml: %v", kpi.ErrMalformed, err)
		}
		out, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("%w: convert yaml: %v", kpi.ErrMalformed, err)
		}
		return out, nil
	default:
		return raw, nil
	}
}

var _ Loader = (*File)(nil)
