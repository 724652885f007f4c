package dlog_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reside-ic/outpack-go/internal/dlog"
)

// splitTwoLines splits log output into its first two non-empty lines.
func splitTwoLines(t *testing.T, out string) (string, string) {
	t.Helper()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 2)
	return lines[0], lines[1]
}

// redirectDefault points the package-default logger (the one GetLogger
// falls back to) at buf, restoring logrus's prior state afterwards.
func redirectDefault(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prevOut := logrus.StandardLogger().Out
	prevFormatter := logrus.StandardLogger().Formatter
	logrus.SetOutput(&buf)
	logrus.SetFormatter(&logrus.TextFormatter{DisableColors: true, DisableTimestamp: true})
	t.Cleanup(func() {
		logrus.SetOutput(prevOut)
		logrus.SetFormatter(prevFormatter)
	})
	return &buf
}

func TestGetLoggerReturnsDefaultWhenNoneAttached(t *testing.T) {
	logger := dlog.GetLogger(context.Background())
	require.NotNil(t, logger)
}

func TestGetLoggerReturnsAttachedLoggerOverDefault(t *testing.T) {
	buf := redirectDefault(t)
	ctx := dlog.WithLogger(context.Background(), dlog.GetLogger(context.Background()))
	dlog.GetLogger(ctx).Info("hello")
	assert.Contains(t, buf.String(), "hello")
}

func TestWithFieldCarriesFieldIntoOutput(t *testing.T) {
	buf := redirectDefault(t)
	ctx := dlog.WithField(context.Background(), "packet", "20260101-000000-aaaaaaaa")
	dlog.GetLogger(ctx).Info("pulling")

	assert.Contains(t, buf.String(), "packet=20260101-000000-aaaaaaaa")
	assert.Contains(t, buf.String(), "pulling")
}

func TestWithValuesCarriesMultipleFields(t *testing.T) {
	buf := redirectDefault(t)
	ctx := dlog.WithValues(context.Background(), map[string]interface{}{"location": "remote", "count": 3})
	dlog.GetLogger(ctx).Warn("syncing")

	out := buf.String()
	assert.Contains(t, out, "location=remote")
	assert.Contains(t, out, "count=3")
}

func TestWithFieldDoesNotMutateParentContext(t *testing.T) {
	buf := redirectDefault(t)
	base := context.Background()
	derived := dlog.WithField(base, "scoped", "yes")

	dlog.GetLogger(derived).Info("from derived")
	dlog.GetLogger(base).Info("from base")

	derivedLine, baseLine := splitTwoLines(t, buf.String())
	assert.Contains(t, derivedLine, "scoped=yes")
	assert.Contains(t, derivedLine, "from derived")
	assert.NotContains(t, baseLine, "scoped=yes")
	assert.Contains(t, baseLine, "from base")
}
