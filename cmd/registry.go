package cmd

import (
	"github.com/nextlevelbuilder/eltorchestrator/internal/plugin"
	apiextract "github.com/nextlevelbuilder/eltorchestrator/internal/plugin/extract/api"
	csvextract "github.com/nextlevelbuilder/eltorchestrator/internal/plugin/extract/csv"
	parquetextract "github.com/nextlevelbuilder/eltorchestrator/internal/plugin/extract/parquet"
	duckdbload "github.com/nextlevelbuilder/eltorchestrator/internal/plugin/load/duckdb"
)

// defaultRegistry wires every built-in extractor/loader. A custom build
// that needs a different plugin set constructs its own plugin.Registry
// instead of calling this.
func defaultRegistry() *plugin.Registry {
	reg := plugin.NewRegistry()

	reg.RegisterExtractor("api", apiextract.New)
	reg.RegisterExtractor("csv", csvextract.New)
	reg.RegisterExtractor("parquet", parquetextract.New)

	reg.RegisterLoader("duckdb", duckdbload.New)

	return reg
}
