// Package telemetry provides the logging infrastructure shared by every
// codex subsystem. It is adapted from the stream-splitting logrus setup
// used elsewhere in this organization's services: error-level records go to
// stderr, everything else goes to stdout, so container log collectors can
// treat the two streams differently without parsing structured fields.
package telemetry

import (
	"bytes"
	"os"

	"github.com/sirupsen/logrus"
)

// StreamSplitter routes already-formatted log lines to stdout or stderr
// based on their level, without requiring the caller to configure separate
// loggers per stream.
type StreamSplitter struct{}

// Write implements io.Writer. It inspects the rendered line for the
// "level=error" marker logrus's text/JSON formatters both emit and sends
// matching lines to stderr; everything else goes to stdout.
func (StreamSplitter) Write(p []byte) (int, error) {
	if bytes.Contains(p, []byte("level=error")) || bytes.Contains(p, []byte(`"level":"error"`)) {
		return os.Stderr.Write(p)
	}
	return os.Stdout.Write(p)
}

// Log is the package-level logger every codex subsystem should use. Callers
// embedding codex in a larger service may repoint it at their own logrus
// instance; codex never constructs a second logger internally.
var Log = logrus.New()

func init() {
	Log.SetOutput(StreamSplitter{})
}

// WithComponent returns an entry pre-tagged with the emitting subsystem,
// e.g. telemetry.WithComponent("cache").WithField("uri", uri).Debug(...).
func WithComponent(name string) *logrus.Entry {
	return Log.WithField("component", name)
}
