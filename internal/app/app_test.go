package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/mmuslimabdulj/goat-dm/internal/config"
)

func TestNewWiresMemoryStore(t *testing.T) {
	req := require.New(t)
	cfg := config.DefaultConfig()

	a, err := New(context.Background(), cfg, zerolog.Nop())
	req.NoError(err)
	a.Start()

	w := httptest.NewRecorder()
	a.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	req.Equal(http.StatusOK, w.Code)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	req.NoError(a.Close(ctx))
}

func TestNewWithSQLite(t *testing.T) {
	req := require.New(t)
	cfg := config.DefaultConfig()
	cfg.StoreDriver = config.DriverSQLite
	cfg.SQLitePath = t.TempDir() + "/dm.db"

	a, err := New(context.Background(), cfg, zerolog.Nop())
	req.NoError(err)
	a.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	req.NoError(a.Close(ctx))
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.StoreDriver = "cassandra"
	_, err := New(context.Background(), cfg, zerolog.Nop())
	require.Error(t, err)
}
