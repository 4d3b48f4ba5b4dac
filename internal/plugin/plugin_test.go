package plugin

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/nextlevelbuilder/eltorchestrator/internal/apperr"
)

type fakeExtractor struct{ ds Dataset }

func (f fakeExtractor) Extract(ctx context.Context, config json.RawMessage) (Dataset, error) {
	return f.ds, nil
}

type fakeLoader struct{ loaded *Dataset }

func (f fakeLoader) Load(ctx context.Context, config json.RawMessage, ds Dataset) error {
	*f.loaded = ds
	return nil
}

func TestRegistry_Extract_DispatchesOnType(t *testing.T) {
	r := NewRegistry()
	want := Dataset{Columns: []string{"a"}, Rows: [][]any{{1}}}
	r.RegisterExtractor("fake", func() Extractor { return fakeExtractor{ds: want} })

	got, err := r.Extract(context.Background(), json.RawMessage(`{"type":"fake"}`))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if got.NumRows() != 1 || got.Columns[0] != "a" {
		t.Errorf("got %+v", got)
	}
}

func TestRegistry_Extract_UnknownTypeFails(t *testing.T) {
	r := NewRegistry()
	_, err := r.Extract(context.Background(), json.RawMessage(`{"type":"nope"}`))
	if err == nil {
		t.Fatal("want error for unregistered type")
	}
	if apperr.IsRetryable(err) {
		t.Error("unknown-plugin error must not be retryable")
	}
}

func TestRegistry_Extract_MissingTypeFails(t *testing.T) {
	r := NewRegistry()
	_, err := r.Extract(context.Background(), json.RawMessage(`{}`))
	if err == nil {
		t.Fatal("want error for missing type field")
	}
}

func TestRegistry_Load_DispatchesOnType(t *testing.T) {
	r := NewRegistry()
	var loaded Dataset
	r.RegisterLoader("fake", func() Loader { return fakeLoader{loaded: &loaded} })

	ds := Dataset{Columns: []string{"x"}, Rows: [][]any{{42}}}
	if err := r.Load(context.Background(), json.RawMessage(`{"type":"fake"}`), ds); err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.NumRows() != 1 {
		t.Errorf("loaded = %+v", loaded)
	}
}

func TestRegistry_Load_UnknownTypeFails(t *testing.T) {
	r := NewRegistry()
	err := r.Load(context.Background(), json.RawMessage(`{"type":"nope"}`), Dataset{})
	if err == nil {
		t.Fatal("want error for unregistered type")
	}
}
