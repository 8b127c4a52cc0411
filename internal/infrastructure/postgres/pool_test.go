package postgres_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/emissor-nfse/internal/infrastructure/postgres"
	"github.com/jhoicas/emissor-nfse/pkg/config"
)

func TestPoolConfig_FromFields(t *testing.T) {
	cfg := config.DBConfig{
		Host:                  "db.interno",
		Port:                  5433,
		User:                  "emissor",
		Password:              "p@ss/word",
		DBName:                "nfse",
		SSLMode:               "disable",
		MaxConns:              7,
		MinConns:              1,
		ConnectTimeoutSeconds: 3,
	}

	pc, err := postgres.PoolConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "db.interno", pc.ConnConfig.Host)
	assert.Equal(t, uint16(5433), pc.ConnConfig.Port)
	assert.Equal(t, "p@ss/word", pc.ConnConfig.Password)
	assert.Equal(t, "nfse", pc.ConnConfig.Database)
	assert.Equal(t, int32(7), pc.MaxConns)
	assert.Equal(t, int32(1), pc.MinConns)
	assert.Equal(t, 3*time.Second, pc.ConnConfig.ConnectTimeout)
	assert.NotNil(t, pc.AfterConnect)
	assert.Nil(t, pc.ConnConfig.Tracer)
}

func TestPoolConfig_DatabaseURLWins(t *testing.T) {
	pc, err := postgres.PoolConfig(config.DBConfig{
		DatabaseURL: "postgres://u:p@pg.exemplo.com.br:6543/emissor?sslmode=disable&pool_max_conns=4",
		Host:        "ignorado",
		LogQueries:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, "pg.exemplo.com.br", pc.ConnConfig.Host)
	assert.Equal(t, uint16(6543), pc.ConnConfig.Port)
	assert.Equal(t, int32(4), pc.MaxConns)
	assert.NotNil(t, pc.ConnConfig.Tracer)
}

func TestPoolConfig_Rejects(t *testing.T) {
	_, err := postgres.PoolConfig(config.DBConfig{DatabaseURL: "postgres://u:p@h:5432/db", MaxConns: 2, MinConns: 5})
	assert.ErrorContains(t, err, "DB_MIN_CONNS")

	_, err = postgres.PoolConfig(config.DBConfig{DatabaseURL: "postgres://%zz"})
	assert.ErrorContains(t, err, "parse DSN")
}
