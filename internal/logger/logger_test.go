package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	return line
}

func TestNew_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: "debug", Format: "json", Output: &buf, ServiceName: "fishlens-test"})

	l.WithField(FieldCatalogID, 7).Info("indexed")

	line := decodeLine(t, &buf)
	assert.Equal(t, "indexed", line["message"])
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "fishlens-test", line["service"])
	assert.EqualValues(t, 7, line[FieldCatalogID])
	assert.Contains(t, line, "timestamp")
}

func TestContextFieldsPropagate(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: "info", Format: "json", Output: &buf, ServiceName: "svc"})

	ctx := l.WithContext(context.Background())
	ctx = SetRequestID(ctx, "req-1")
	ctx = WithFields(ctx, Fields{FieldSubmissionID: 3})

	assert.Equal(t, "req-1", GetRequestID(ctx))

	With(Fields{FieldStatus: 200}).WithDuration(12).Info(ctx, "done %s", "ok")

	line := decodeLine(t, &buf)
	assert.Equal(t, "done ok", line["message"])
	assert.Equal(t, "req-1", line[FieldRequestID])
	assert.EqualValues(t, 3, line[FieldSubmissionID])
	assert.EqualValues(t, 12, line[FieldDurationMs])
	assert.EqualValues(t, 200, line[FieldStatus])
}

func TestFromContext_FallsBackToDefault(t *testing.T) {
	assert.Same(t, GetDefault(), FromContext(context.Background()))
}

func TestNew_InvalidLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: "loud", Output: &buf})
	l.Debug("hidden")
	assert.Zero(t, buf.Len())
	l.Info("shown")
	assert.NotZero(t, buf.Len())
}
