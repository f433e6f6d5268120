// Package testing provides utilities for writing tests against simulated
// hardware.
package testing

import (
	"os"
	"testing"

	"github.com/sirupsen/logrus"
)

// TestMain should be used as TestMain for tests logging through the standard
// logger. TEST_LOGS selects the log level as in NewLogger.
func TestMain(m *testing.M) {
	l := NewLogger()
	logrus.SetOutput(l.Out)
	logrus.SetLevel(l.Level)

	os.Exit(m.Run())
}
