// Package csv implements the "csv" extractor (spec.md §6): reads a local
// file path, first row is the header. encoding/csv is the right tool here
// (see DESIGN.md): a delimited-text reader is a language feature, not a
// domain dependency the corpus would ever vendor a third-party lib for.
package csv

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/nextlevelbuilder/eltorchestrator/internal/apperr"
	"github.com/nextlevelbuilder/eltorchestrator/internal/plugin"
)

// Config is the wire shape of the "csv" extractor config
// (`{"type":"csv","path":<str>}`, spec.md §6).
type Config struct {
	Type string `json:"type"`
	Path string `json:"path"`
}

// Extractor reads a CSV file into a Dataset, treating all values as
// strings — the Dataset contract places no type requirement on cell
// values, and CSV carries no type information of its own.
type Extractor struct{}

func New() plugin.Extractor { return &Extractor{} }

func (e *Extractor) Extract(ctx context.Context, raw json.RawMessage) (plugin.Dataset, error) {
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return plugin.Dataset{}, &apperr.ExtractError{Plugin: "csv", Err: fmt.Errorf("decode config: %w", err), Transient: false}
	}
	if cfg.Path == "" {
		return plugin.Dataset{}, &apperr.ExtractError{Plugin: "csv", Err: fmt.Errorf("path is required"), Transient: false}
	}

	f, err := os.Open(cfg.Path)
	if err != nil {
		// A missing file right now may exist moments later (upstream sync
		// job still writing it), so filesystem-not-found is transient here.
		return plugin.Dataset{}, &apperr.ExtractError{Plugin: "csv", Err: err, Transient: os.IsNotExist(err) || os.IsTimeout(err)}
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err == io.EOF {
		return plugin.Dataset{Columns: nil, Rows: nil}, nil
	}
	if err != nil {
		return plugin.Dataset{}, &apperr.ExtractError{Plugin: "csv", Err: fmt.Errorf("read header: %w", err), Transient: false}
	}

	var rows [][]any
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return plugin.Dataset{}, &apperr.ExtractError{Plugin: "csv", Err: fmt.Errorf("read row: %w", err), Transient: false}
		}
		row := make([]any, len(record))
		for i, v := range record {
			row[i] = v
		}
		rows = append(rows, row)
	}

	return plugin.Dataset{Columns: header, Rows: rows}, nil
}
