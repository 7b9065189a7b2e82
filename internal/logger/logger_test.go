package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewWithWriter_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, 4)

	l.Info("hidden")
	l.Warn("shown", "key", "value")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "key=value")
}

func TestComponent_TagsRecords(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, 0).Component("session")

	l.Info("hello")

	assert.Contains(t, buf.String(), "component=session")
}
