package logging

import (
	"testing"
)

func TestNopLogger(t *testing.T) {
	logger := NewNop()

	// All methods must be safe no-ops, including Fatal.
	logger.Debug("debug", "k", 1)
	logger.Info("info")
	logger.Warn("warn", "k", "v")
	logger.Error("error")
	logger.Fatal("fatal")
}
