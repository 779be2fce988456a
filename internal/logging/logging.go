// Package logging builds the structured diagnostics logger (spec's ambient
// logging stack): go.uber.org/zap, the structured logger the rest of the
// retrieval pack reaches for (gardener wires it via go-logr/zapr) wherever
// a repo needs more than fmt.Fprintf(os.Stderr, ...). It carries
// refill/IO errors, worker failures, and merge bookkeeping that aren't part
// of the documented NDJSON/JSON-array output contract, so they never land
// on stdout.
package logging

import "go.uber.org/zap"

// New builds a *zap.Logger for the extractor CLI. In verbose mode it uses
// zap's human-readable development encoder at debug level; otherwise it
// uses the production encoder capped at warn level, so routine runs stay
// quiet on stderr.
func New(verbose bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
