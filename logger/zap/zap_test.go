package zap_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/forbearing/sqlmap/config"
	zaplog "github.com/forbearing/sqlmap/logger/zap"
)

func TestNewLogsWithoutPanicking(t *testing.T) {
	l := zaplog.New("catalog.log", config.Logger{Level: "debug", Format: "json"})
	require.NotNil(t, l)
	l.Infow("parsed document", "namespace", "person")
	require.NoError(t, l.Sync())
}

func TestNewDefaultsUnknownLevelToInfo(t *testing.T) {
	l := zaplog.New("rowmap.log", config.Logger{Level: "not-a-level"})
	require.NotNil(t, l)
	l.Warnw("unmapped column", "column", "extra_field")
}

func TestInitWiresSubsystemLoggers(t *testing.T) {
	config.App = new(config.Config)
	require.NoError(t, zaplog.Init())
	zaplog.Clean()
}
