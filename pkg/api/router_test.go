package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ekagra1602/NeuraVault-MCP/config"
	"github.com/ekagra1602/NeuraVault-MCP/pkg/api/handlers"
	"github.com/ekagra1602/NeuraVault-MCP/pkg/logger"
	"github.com/ekagra1602/NeuraVault-MCP/pkg/memory"
)

func testRouterConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Server.HTTP.RequestTimeout = 30 * time.Second
	cfg.Server.CORS.Enabled = false
	return cfg
}

func testRouterLogger() logger.Logger {
	return logger.New(&logger.Config{
		Level:  logger.InfoLevel,
		Format: "json",
		Output: "stdout",
	})
}

func createTestHandlers(t *testing.T) *Handlers {
	t.Helper()

	engine := memory.NewEngine(memory.NewInMemoryStore())
	log := testRouterLogger()
	cfg := testRouterConfig()

	return &Handlers{
		Memory: handlers.NewMemoryHandler(engine, cfg.Retrieval, nil, log),
		Health: handlers.NewHealthHandler(engine, "memory"),
		Utils:  handlers.NewUtilsHandler(),
	}
}

func TestNewRouter(t *testing.T) {
	router := NewRouter(testRouterConfig(), testRouterLogger(), &Handlers{})
	if router == nil {
		t.Fatal("NewRouter returned nil")
	}
}

func TestRegisterRoutes_HealthEndpoints(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		method     string
		wantStatus int
	}{
		{
			name:       "health check",
			path:       "/health",
			method:     http.MethodGet,
			wantStatus: http.StatusOK,
		},
		{
			name:       "ready check",
			path:       "/ready",
			method:     http.MethodGet,
			wantStatus: http.StatusOK,
		},
		{
			name:       "status check",
			path:       "/status",
			method:     http.MethodGet,
			wantStatus: http.StatusOK,
		},
		{
			name:       "version",
			path:       "/version",
			method:     http.MethodGet,
			wantStatus: http.StatusOK,
		},
	}

	router := NewRouter(testRouterConfig(), testRouterLogger(), createTestHandlers(t))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %v, want %v", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestRegisterRoutes_MemoryEndpoints(t *testing.T) {
	router := NewRouter(testRouterConfig(), testRouterLogger(), createTestHandlers(t))

	// Empty timeline resolves through the full middleware chain.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/memory/alice", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("timeline endpoint status = %v, want %v", w.Code, http.StatusOK)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("users endpoint status = %v, want %v", w.Code, http.StatusOK)
	}

	// Unknown routes fall through to 404.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/nonexistent", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown endpoint status = %v, want %v", w.Code, http.StatusNotFound)
	}
}
