package main

import (
	"net/http"
	"testing"

	"github.com/mmuslimabdulj/goat-dm/internal/config"
)

func TestNewHTTPServer(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Port = "9091"
	handler := http.NotFoundHandler()

	server := newHTTPServer(cfg, handler)
	if server.Addr != ":9091" {
		t.Errorf("Expected addr :9091, got %s", server.Addr)
	}
	if server.ReadTimeout == 0 || server.WriteTimeout == 0 || server.IdleTimeout == 0 {
		t.Error("Expected all server timeouts to be set")
	}
	if server.Handler == nil {
		t.Error("Expected handler to be set")
	}
}
