// Package testutil has helpers shared by package tests.
package testutil

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logs are only written when tests run verbosely.
func init() {
	logrus.SetLevel(logrus.TraceLevel)

	for _, arg := range os.Args[1:] {
		if arg == "-test.v" || strings.HasPrefix(arg, "-test.v=t") {
			return
		}
	}
	logrus.SetOutput(io.Discard)
}
