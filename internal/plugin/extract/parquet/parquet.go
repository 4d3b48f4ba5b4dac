// Package parquet implements the "parquet" extractor (spec.md §6):
// columnar extract from a local Parquet file, schema inferred from the
// file's own schema. Grounded on github.com/parquet-go/parquet-go, named
// in the reference corpus's manifests for exactly this job (DESIGN.md).
package parquet

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/parquet-go/parquet-go"

	"github.com/nextlevelbuilder/eltorchestrator/internal/apperr"
	"github.com/nextlevelbuilder/eltorchestrator/internal/plugin"
)

// Config is the wire shape of the "parquet" extractor config
// (`{"type":"parquet","path":<str>}`, spec.md §6).
type Config struct {
	Type string `json:"type"`
	Path string `json:"path"`
}

// batchSize bounds how many rows are decoded per ReadRows call.
const batchSize = 1024

// Extractor reads an entire Parquet file into a Dataset. Column names
// come from the file's own schema; cell values are converted to native
// Go types via parquet.Value's Kind.
type Extractor struct{}

func New() plugin.Extractor { return &Extractor{} }

func (e *Extractor) Extract(ctx context.Context, raw json.RawMessage) (plugin.Dataset, error) {
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return plugin.Dataset{}, &apperr.ExtractError{Plugin: "parquet", Err: fmt.Errorf("decode config: %w", err), Transient: false}
	}
	if cfg.Path == "" {
		return plugin.Dataset{}, &apperr.ExtractError{Plugin: "parquet", Err: fmt.Errorf("path is required"), Transient: false}
	}

	f, err := os.Open(cfg.Path)
	if err != nil {
		return plugin.Dataset{}, &apperr.ExtractError{Plugin: "parquet", Err: err, Transient: os.IsNotExist(err) || os.IsTimeout(err)}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return plugin.Dataset{}, &apperr.ExtractError{Plugin: "parquet", Err: err, Transient: false}
	}

	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		return plugin.Dataset{}, &apperr.ExtractError{Plugin: "parquet", Err: fmt.Errorf("open parquet file: %w", err), Transient: false}
	}

	reader := parquet.NewReader(pf)
	defer reader.Close()

	fields := reader.Schema().Fields()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name()
	}

	var allRows [][]any
	buf := make([]parquet.Row, batchSize)
	for {
		if err := ctx.Err(); err != nil {
			return plugin.Dataset{}, &apperr.ExtractError{Plugin: "parquet", Err: err, Transient: false}
		}

		n, err := reader.ReadRows(buf)
		for _, row := range buf[:n] {
			allRows = append(allRows, rowToValues(row, len(columns)))
		}
		if err != nil {
			break // io.EOF and any other terminal read error both end the scan
		}
	}

	return plugin.Dataset{Columns: columns, Rows: allRows}, nil
}

// rowToValues converts a parquet.Row (one Value per leaf column) into the
// Dataset's loosely-typed cell representation.
func rowToValues(row parquet.Row, numCols int) []any {
	values := make([]any, numCols)
	for _, v := range row {
		col := v.Column()
		if col < 0 || col >= numCols {
			continue
		}
		values[col] = convertValue(v)
	}
	return values
}

func convertValue(v parquet.Value) any {
	if v.IsNull() {
		return nil
	}
	switch v.Kind() {
	case parquet.Boolean:
		return v.Boolean()
	case parquet.Int32:
		return v.Int32()
	case parquet.Int64:
		return v.Int64()
	case parquet.Float:
		return v.Float()
	case parquet.Double:
		return v.Double()
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray())
	default:
		return v.String()
	}
}
