package logging

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, logrus.ErrorLevel, parseLevel("ERROR"))
	assert.Equal(t, logrus.WarnLevel, parseLevel("warn"))
	assert.Equal(t, logrus.DebugLevel, parseLevel(" debug "))
	assert.Equal(t, logrus.WarnLevel, parseLevel("warning"))
	assert.Equal(t, logrus.TraceLevel, parseLevel("trace"))
	assert.Equal(t, logrus.InfoLevel, parseLevel("verbose"))
	assert.Equal(t, logrus.InfoLevel, parseLevel(""))
}

func TestSetLevelAcceptsEveryLogrusName(t *testing.T) {
	defer SetLevel("info")
	for _, name := range []string{"trace", "debug", "info", "warning", "error", "fatal", "panic"} {
		want, err := logrus.ParseLevel(name)
		assert.NoError(t, err)
		SetLevel(name)
		assert.Equal(t, want, Get().GetLevel(), name)
	}
}

func TestWithPrefix(t *testing.T) {
	entry := WithPrefix("scheduler")
	assert.Equal(t, "scheduler", entry.Data["prefix"])
}
