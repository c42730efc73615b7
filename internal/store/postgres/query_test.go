package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/arbscan/internal/domain"
)

func TestAppendListOpts(t *testing.T) {
	since := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	until := since.Add(time.Hour)

	q, args := appendListOpts("SELECT x FROM t WHERE pool = $1", []any{"0xabc"}, "ts",
		domain.ListOpts{Since: &since, Until: &until, Limit: 10, Offset: 20}, "ts ASC, id ASC")

	assert.Equal(t, "SELECT x FROM t WHERE pool = $1 AND ts >= $2 AND ts <= $3 ORDER BY ts ASC, id ASC LIMIT $4 OFFSET $5", q)
	assert.Equal(t, []any{"0xabc", since, until, 10, 20}, args)
}

func TestAppendListOpts_NoBounds(t *testing.T) {
	q, args := appendListOpts("SELECT x FROM t WHERE 1=1", nil, "created_at", domain.ListOpts{}, "created_at DESC")

	assert.Equal(t, "SELECT x FROM t WHERE 1=1 ORDER BY created_at DESC", q)
	assert.Empty(t, args)
}

func TestDSN(t *testing.T) {
	assert.Equal(t, "postgres://u:p@db:5432/arbscan?sslmode=disable",
		DSN(ClientConfig{Host: "db", User: "u", Password: "p", Database: "arbscan"}))
	assert.Equal(t, "postgres://explicit", DSN(ClientConfig{DSN: "postgres://explicit", Host: "ignored"}))
}
