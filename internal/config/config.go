// Package config builds an immutable ExtractorConfig (spec §3) from the
// CLI's non-dashed key=value/bare-token argument grammar (spec §6), layered
// over viper-supplied environment defaults. cobra owns command scaffolding,
// help, and version output; it is deliberately not used to parse the
// extractor's own options, since the grammar is flat tokens like
// "in=path" and "ndjson", not GNU-style "--flag value" pairs.
package config

import (
	"runtime"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/joeblau/jsonsplit/internal/jsonerr"
)

// Mode selects the output framing (spec §3, §6).
type Mode int

const (
	NDJSON Mode = iota
	JSONArray
)

func (m Mode) String() string {
	if m == NDJSON {
		return "ndjson"
	}
	return "json"
}

const (
	defaultKey        = "accounts"
	defaultBufferSize = 4 * 1024 * 1024
	stdinToken        = "-"
)

// ExtractorConfig is the immutable configuration record the core pipeline
// runs from (spec §3). Zero values for SplitLines/SplitPrefix/Workers mean
// "no sharding" / "single-worker".
type ExtractorConfig struct {
	In            string // "-" means stdin
	Out           string // "-" means stdout; ignored when SplitPrefix is set
	Key           string // empty means top-level array
	Mode          Mode
	BufferSize    int
	SplitLines    int
	SplitPrefix   string
	Workers       int
	TmpDir        string
	Verbose       bool
	MachineOutput bool // "json" bare token: emit NDJSON progress on stderr
}

// StdinRequested reports whether In names stdin.
func (c ExtractorConfig) StdinRequested() bool { return c.In == stdinToken }

// StdoutRequested reports whether Out names stdout.
func (c ExtractorConfig) StdoutRequested() bool { return c.Out == stdinToken }

// Sharded reports whether the config selects size-based output sharding.
func (c ExtractorConfig) Sharded() bool { return c.SplitLines > 0 }

// Parallel reports whether the config selects the multi-worker pipeline.
func (c ExtractorConfig) Parallel() bool { return c.Workers > 1 }

// raw holds the token=value pairs and bare tokens parsed from argv, prior to
// type conversion and defaulting.
type raw struct {
	values map[string]string
	bare   map[string]bool
}

// ParseArgs tokenizes the extractor's CLI grammar: "key=value" pairs and
// bare words ("ndjson", "no-ndjson", "verbose"). It does not interpret or
// validate values — that happens in Load/Validate — so a malformed token
// only ever produces *jsonerr.BadConfigError, never a panic.
func ParseArgs(args []string) (*raw, error) {
	r := &raw{values: map[string]string{}, bare: map[string]bool{}}
	for _, tok := range args {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if idx := strings.IndexByte(tok, '='); idx >= 0 {
			key := tok[:idx]
			val := tok[idx+1:]
			if key == "" {
				return nil, &jsonerr.BadConfigError{Reason: "empty option name in token: " + tok}
			}
			r.values[key] = val
			continue
		}
		// ndjson and no-ndjson cancel each other; the later one wins.
		switch tok {
		case "ndjson":
			delete(r.bare, "no-ndjson")
		case "no-ndjson":
			delete(r.bare, "ndjson")
		}
		r.bare[tok] = true
	}
	return r, nil
}

// Load builds an ExtractorConfig from parsed CLI tokens, layered over
// viper-supplied defaults and JSONSPLIT_*-prefixed environment variables.
// CLI tokens always win over both. v may be nil, in which case a fresh
// viper instance with built-in defaults is used.
func Load(r *raw, v *viper.Viper) (ExtractorConfig, error) {
	if v == nil {
		v = NewViper()
	}

	cfg := ExtractorConfig{
		In:         v.GetString("in"),
		Out:        v.GetString("out"),
		Key:        v.GetString("key"),
		BufferSize: v.GetInt("buffer"),
		Workers:    v.GetInt("workers"),
		TmpDir:     v.GetString("tmpdir"),
	}
	if v.GetBool("ndjson") {
		cfg.Mode = NDJSON
	} else {
		cfg.Mode = JSONArray
	}

	if val, ok := r.values["in"]; ok {
		cfg.In = val
	}
	if val, ok := r.values["out"]; ok {
		cfg.Out = val
	}
	if val, ok := r.values["key"]; ok {
		cfg.Key = val
	}
	if val, ok := r.values["split-lines"]; ok {
		n, err := strconv.Atoi(val)
		if err != nil || n < 0 {
			return ExtractorConfig{}, &jsonerr.BadConfigError{Reason: "split-lines must be a non-negative integer, got " + val}
		}
		cfg.SplitLines = n
	}
	if val, ok := r.values["split-prefix"]; ok {
		cfg.SplitPrefix = val
	}
	if val, ok := r.values["buffer"]; ok {
		n, err := strconv.Atoi(val)
		if err != nil || n <= 0 {
			return ExtractorConfig{}, &jsonerr.BadConfigError{Reason: "buffer must be a positive integer, got " + val}
		}
		cfg.BufferSize = n
	}
	if val, ok := r.values["workers"]; ok {
		n, err := strconv.Atoi(val)
		if err != nil || n <= 0 {
			return ExtractorConfig{}, &jsonerr.BadConfigError{Reason: "workers must be a positive integer, got " + val}
		}
		cfg.Workers = n
	}
	if val, ok := r.values["tmpdir"]; ok {
		cfg.TmpDir = val
	}

	if r.bare["ndjson"] {
		cfg.Mode = NDJSON
	}
	if r.bare["no-ndjson"] {
		cfg.Mode = JSONArray
	}
	if r.bare["verbose"] {
		cfg.Verbose = true
	}
	if r.bare["json"] {
		cfg.MachineOutput = true
	}

	if cfg.In == "" {
		cfg.In = stdinToken
	}
	if cfg.Out == "" && cfg.SplitPrefix == "" {
		cfg.Out = stdinToken
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	if cfg.Key == "" {
		if _, set := r.values["key"]; !set {
			cfg.Key = defaultKey
		}
	}
	// A worker count not given on the command line falls back to 1 where
	// the parallel writer cannot run (JSON-array mode, or unsharded stdout).
	if _, set := r.values["workers"]; !set && (cfg.Mode != NDJSON || (!cfg.Sharded() && cfg.StdoutRequested())) {
		cfg.Workers = 1
	}

	if err := cfg.Validate(); err != nil {
		return ExtractorConfig{}, err
	}
	return cfg, nil
}

// NewViper returns a viper instance carrying the extractor's built-in
// defaults and bound to JSONSPLIT_*-prefixed environment variables, read
// before CLI tokens are layered on top in Load.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("jsonsplit")
	v.AutomaticEnv()
	v.SetDefault("in", stdinToken)
	v.SetDefault("key", defaultKey)
	v.SetDefault("buffer", defaultBufferSize)
	v.SetDefault("ndjson", true)
	v.SetDefault("workers", defaultWorkers())
	return v
}

func defaultWorkers() int {
	n := runtime.NumCPU()
	if n < 1 {
		return 1
	}
	return n
}

// Validate checks the cross-field constraints spec §7 maps to bad_config:
// sharding requires a prefix, sharded output cannot go to stdout, parallel
// workers require NDJSON mode, and a non-positive
// buffer size is nonsensical. Parallel mode does not itself require
// sharding (spec §4.5: every element lands in chunk 1 when split-lines is
// unset) — it only requires a concrete file for the merge pass to write
// into, since afero.Fs.Create has no stdout equivalent.
func (c ExtractorConfig) Validate() error {
	if c.Sharded() && c.SplitPrefix == "" {
		return &jsonerr.BadConfigError{Reason: "split-lines requires split-prefix"}
	}
	if c.SplitPrefix != "" && c.SplitLines <= 0 {
		return &jsonerr.BadConfigError{Reason: "split-prefix requires split-lines > 0"}
	}
	if c.Sharded() && c.StdoutRequested() {
		return &jsonerr.BadConfigError{Reason: "split-lines is incompatible with out=-"}
	}
	if c.Parallel() && c.Mode != NDJSON {
		return &jsonerr.BadConfigError{Reason: "workers > 1 requires ndjson mode"}
	}
	if c.Parallel() && !c.Sharded() && c.StdoutRequested() {
		return &jsonerr.BadConfigError{Reason: "workers > 1 without split-lines requires a concrete out= file (the merge pass writes to a real file, not stdout)"}
	}
	if c.BufferSize <= 0 {
		return &jsonerr.BadConfigError{Reason: "buffer must be positive"}
	}
	return nil
}
