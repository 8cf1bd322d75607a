// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"
)

// Export formats.
const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

const exportLimit = 100000

// Export writes every archived run with its bundle to w, newest first.
func (s *Store) Export(ctx context.Context, w io.Writer, format string) error {
	entries, err := s.exportEntries(ctx)
	if err != nil {
		return err
	}

	switch format {
	case FormatYAML, "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(entries); err != nil {
			return fmt.Errorf("marshaling YAML: %w", err)
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(entries); err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported export format %q (want yaml or json)", format)
	}
}

func (s *Store) exportEntries(ctx context.Context) ([]Entry, error) {
	runs, err := s.List(ctx, exportLimit)
	if err != nil {
		return nil, fmt.Errorf("querying for export: %w", err)
	}

	entries := make([]Entry, 0, len(runs))
	for _, r := range runs {
		e, err := s.Get(ctx, r.ID)
		if err != nil {
			return nil, fmt.Errorf("loading run %s for export: %w", r.ID, err)
		}
		entries = append(entries, *e)
	}
	return entries, nil
}
