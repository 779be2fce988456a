package logging

import "testing"

func TestNewReturnsUsableLoggerBothModes(t *testing.T) {
	for _, verbose := range []bool{true, false} {
		logger := New(verbose)
		if logger == nil {
			t.Fatalf("New(%v) returned nil", verbose)
		}
		logger.Sugar().Infow("test", "verbose", verbose)
	}
}
