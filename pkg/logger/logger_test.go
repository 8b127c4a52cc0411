package logger_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/emissor-nfse/pkg/logger"
)

func TestNewWithWriter_JSONAndLevel(t *testing.T) {
	var buf bytes.Buffer
	l := logger.NewWithWriter(logger.Config{Env: "production", Level: "warn"}, &buf)

	l.Info().Msg("descartado")
	l.Warn().Str("component", "[NFSE]").Msg("certificado perto do vencimento")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "[NFSE]", entry["component"])
	assert.NotContains(t, buf.String(), "descartado")
}

func TestNewWithWriter_InstallsGlobal(t *testing.T) {
	var buf bytes.Buffer
	logger.NewWithWriter(logger.Config{Env: "test", Level: "info"}, &buf)

	log.Info().Msg("global")
	assert.Contains(t, buf.String(), `"message":"global"`)
}

func TestPrintf(t *testing.T) {
	var buf bytes.Buffer
	l := logger.NewWithWriter(logger.Config{Level: "info"}, &buf)
	l.Printf("OK   %s\n", "00001_init.sql")
	assert.Contains(t, buf.String(), "00001_init.sql")
}
