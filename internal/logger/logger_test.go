package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestDebugFromEnvironment(t *testing.T) {
	cases := map[string]struct {
		env  map[string]string
		want bool
	}{
		"production":  {env: map[string]string{"MODE": "production"}, want: false},
		"development": {env: map[string]string{"MODE": "development"}, want: true},
		"debug flag":  {env: map[string]string{"ALTERNET_DEBUG": "", "MODE": ""}, want: true},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			assert.Equal(t, tc.want, debug())
		})
	}
}

func TestNewLogger(t *testing.T) {
	t.Setenv("MODE", "development")

	log := New("naming.behaviour")
	require.NotNil(t, log.Logger)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))

	otel := OtelZapLogger("naming.transport")
	assert.NotNil(t, otel.Logger)
}
