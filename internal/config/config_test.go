package config

import (
	"errors"
	"testing"

	"github.com/joeblau/jsonsplit/internal/jsonerr"
)

func load(t *testing.T, args ...string) (ExtractorConfig, error) {
	t.Helper()
	r, err := ParseArgs(args)
	if err != nil {
		return ExtractorConfig{}, err
	}
	return Load(r, NewViper())
}

func TestDefaults(t *testing.T) {
	cfg, err := load(t)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.In != "-" || cfg.Out != "-" || cfg.Key != "accounts" || cfg.Mode != NDJSON {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.BufferSize != defaultBufferSize {
		t.Fatalf("buffer default = %d, want %d", cfg.BufferSize, defaultBufferSize)
	}
}

func TestParseKeyValueAndBareTokens(t *testing.T) {
	cfg, err := load(t, "in=/tmp/x.json", "out=/tmp/y.ndjson", "key=items", "verbose")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.In != "/tmp/x.json" || cfg.Out != "/tmp/y.ndjson" || cfg.Key != "items" || !cfg.Verbose {
		t.Fatalf("got %+v", cfg)
	}
}

func TestEmptyKeyMeansTopLevel(t *testing.T) {
	cfg, err := load(t, "key=")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Key != "" {
		t.Fatalf("expected empty key to mean top-level array, got %q", cfg.Key)
	}
}

func TestNdjsonNoNdjsonBareTokens(t *testing.T) {
	cfg, err := load(t, "no-ndjson")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != JSONArray {
		t.Fatalf("expected JSONArray mode")
	}

	cfg, err = load(t, "no-ndjson", "ndjson")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != NDJSON {
		t.Fatalf("expected last-applied bare token to win; got %v", cfg.Mode)
	}
}

func TestJSONBareTokenEnablesMachineOutput(t *testing.T) {
	cfg, err := load(t, "verbose", "json")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.MachineOutput {
		t.Fatal("expected MachineOutput to be true")
	}

	cfg, err = load(t)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MachineOutput {
		t.Fatal("expected MachineOutput to default false")
	}
}

func TestSplitRequiresPrefix(t *testing.T) {
	_, err := load(t, "split-lines=10")
	var bc *jsonerr.BadConfigError
	if !errors.As(err, &bc) {
		t.Fatalf("expected BadConfigError, got %v", err)
	}
}

func TestSplitWithStdoutRejected(t *testing.T) {
	_, err := load(t, "split-lines=10", "split-prefix=/tmp/x", "out=-")
	var bc *jsonerr.BadConfigError
	if !errors.As(err, &bc) {
		t.Fatalf("expected BadConfigError, got %v", err)
	}
}

func TestWorkersRequireNdjson(t *testing.T) {
	_, err := load(t, "workers=4", "no-ndjson", "split-lines=10", "split-prefix=/tmp/x")
	var bc *jsonerr.BadConfigError
	if !errors.As(err, &bc) {
		t.Fatalf("expected BadConfigError for workers+json-array, got %v", err)
	}

	// workers>1 with no split and no explicit out= defaults to stdout,
	// which the merge pass can't write into.
	_, err = load(t, "workers=4")
	if !errors.As(err, &bc) {
		t.Fatalf("expected BadConfigError for workers without out= or sharding, got %v", err)
	}

	cfg, err := load(t, "workers=4", "split-lines=10", "split-prefix=/tmp/x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.Parallel() {
		t.Fatal("expected parallel mode")
	}
}

func TestWorkersWithoutShardingAllowedWithConcreteOut(t *testing.T) {
	cfg, err := load(t, "workers=4", "out=/tmp/merged.ndjson")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.Parallel() || cfg.Sharded() {
		t.Fatalf("expected parallel, unsharded config, got %+v", cfg)
	}
}

func TestMalformedTokenRejected(t *testing.T) {
	_, err := ParseArgs([]string{"=nokey"})
	var bc *jsonerr.BadConfigError
	if !errors.As(err, &bc) {
		t.Fatalf("expected BadConfigError, got %v", err)
	}
}

func TestNonIntegerBufferRejected(t *testing.T) {
	_, err := load(t, "buffer=notanumber")
	var bc *jsonerr.BadConfigError
	if !errors.As(err, &bc) {
		t.Fatalf("expected BadConfigError, got %v", err)
	}
}

func TestGoodShardedConfig(t *testing.T) {
	cfg, err := load(t, "split-lines=2", "split-prefix=/t/x", "key=accounts")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.Sharded() || cfg.SplitPrefix != "/t/x" || cfg.SplitLines != 2 {
		t.Fatalf("got %+v", cfg)
	}
}
