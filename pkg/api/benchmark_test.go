package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ekagra1602/NeuraVault-MCP/config"
	"github.com/ekagra1602/NeuraVault-MCP/pkg/api/handlers"
	"github.com/ekagra1602/NeuraVault-MCP/pkg/logger"
	"github.com/ekagra1602/NeuraVault-MCP/pkg/memory"
)

// setupBenchmarkServer creates a test server for benchmarking
func setupBenchmarkServer(b *testing.B) (*httptest.Server, *memory.Engine, func()) {
	cfg := config.DefaultConfig()
	cfg.Server.HTTP.RequestTimeout = 30 * time.Second
	cfg.Server.CORS.Enabled = false

	log := logger.New(&logger.Config{
		Level:  logger.ErrorLevel, // Reduce logging noise in benchmarks
		Format: "json",
		Output: "stdout",
	})

	engine := memory.NewEngine(memory.NewInMemoryStore())

	benchHandlers := &Handlers{
		Memory: handlers.NewMemoryHandler(engine, cfg.Retrieval, nil, log),
		Health: handlers.NewHealthHandler(engine, "memory"),
		Utils:  handlers.NewUtilsHandler(),
	}

	router := NewRouter(cfg, log, benchHandlers)
	server := httptest.NewServer(router)

	cleanup := func() {
		server.Close()
	}

	return server, engine, cleanup
}

// seedBenchmarkMemories appends n items to the given user's timeline
// directly through the engine, bypassing HTTP.
func seedBenchmarkMemories(b *testing.B, engine *memory.Engine, userID string, n int) {
	b.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		item := memory.MemoryItem{
			UserID:  userID,
			LLM:     "claude",
			Content: fmt.Sprintf("benchmark memory %d about topic %d", i, i%10),
		}
		if err := engine.Append(ctx, item); err != nil {
			b.Fatalf("Failed to seed memory: %v", err)
		}
	}
}

// BenchmarkHealthCheck benchmarks the health check endpoint
func BenchmarkHealthCheck(b *testing.B) {
	server, _, cleanup := setupBenchmarkServer(b)
	defer cleanup()

	client := server.Client()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		resp, err := client.Get(server.URL + "/health")
		if err != nil {
			b.Fatalf("Failed to call health check: %v", err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			b.Fatalf("Health check status = %v, want %v", resp.StatusCode, http.StatusOK)
		}
	}
}

// BenchmarkStoreMemory benchmarks appending memories over HTTP
func BenchmarkStoreMemory(b *testing.B) {
	server, _, cleanup := setupBenchmarkServer(b)
	defer cleanup()

	client := server.Client()
	body, err := json.Marshal(map[string]string{
		"llm":     "claude",
		"content": "the user prefers dark roast coffee in the morning",
	})
	if err != nil {
		b.Fatalf("Failed to marshal request: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		resp, err := client.Post(
			server.URL+"/api/v1/memory/bench",
			"application/json",
			bytes.NewReader(body),
		)
		if err != nil {
			b.Fatalf("Failed to store memory: %v", err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusCreated {
			b.Fatalf("Store status = %v, want %v", resp.StatusCode, http.StatusCreated)
		}
	}
}

// BenchmarkGetTimeline benchmarks reading a seeded timeline
func BenchmarkGetTimeline(b *testing.B) {
	server, engine, cleanup := setupBenchmarkServer(b)
	defer cleanup()

	seedBenchmarkMemories(b, engine, "bench", 100)
	client := server.Client()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		resp, err := client.Get(server.URL + "/api/v1/memory/bench")
		if err != nil {
			b.Fatalf("Failed to get timeline: %v", err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			b.Fatalf("Timeline status = %v, want %v", resp.StatusCode, http.StatusOK)
		}
	}
}

// BenchmarkRelevant benchmarks TF-IDF ranking over a seeded timeline
func BenchmarkRelevant(b *testing.B) {
	server, engine, cleanup := setupBenchmarkServer(b)
	defer cleanup()

	seedBenchmarkMemories(b, engine, "bench", 500)
	client := server.Client()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		resp, err := client.Get(server.URL + "/api/v1/memory/bench/relevant?prompt=topic+3&k=5")
		if err != nil {
			b.Fatalf("Failed to rank memories: %v", err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			b.Fatalf("Relevant status = %v, want %v", resp.StatusCode, http.StatusOK)
		}
	}
}

// BenchmarkRelevantDiverse benchmarks MMR re-ranking over a seeded timeline
func BenchmarkRelevantDiverse(b *testing.B) {
	server, engine, cleanup := setupBenchmarkServer(b)
	defer cleanup()

	seedBenchmarkMemories(b, engine, "bench", 500)
	client := server.Client()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		resp, err := client.Get(server.URL + "/api/v1/memory/bench/relevant_diverse?prompt=topic+3&k=5&lambda_mult=0.5")
		if err != nil {
			b.Fatalf("Failed to rank memories: %v", err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			b.Fatalf("RelevantDiverse status = %v, want %v", resp.StatusCode, http.StatusOK)
		}
	}
}

// BenchmarkRelevantPack benchmarks budgeted context packing
func BenchmarkRelevantPack(b *testing.B) {
	server, engine, cleanup := setupBenchmarkServer(b)
	defer cleanup()

	seedBenchmarkMemories(b, engine, "bench", 500)
	client := server.Client()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		resp, err := client.Get(server.URL + "/api/v1/memory/bench/relevant_pack?prompt=topic+3&budget_chars=1000")
		if err != nil {
			b.Fatalf("Failed to pack memories: %v", err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			b.Fatalf("RelevantPack status = %v, want %v", resp.StatusCode, http.StatusOK)
		}
	}
}

// BenchmarkSearchMemory benchmarks substring search over a seeded timeline
func BenchmarkSearchMemory(b *testing.B) {
	server, engine, cleanup := setupBenchmarkServer(b)
	defer cleanup()

	seedBenchmarkMemories(b, engine, "bench", 500)
	client := server.Client()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		resp, err := client.Get(server.URL + "/api/v1/memory/bench/search?q=topic")
		if err != nil {
			b.Fatalf("Failed to search memories: %v", err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			b.Fatalf("Search status = %v, want %v", resp.StatusCode, http.StatusOK)
		}
	}
}

// BenchmarkEndToEndMemoryFlow benchmarks a full store-then-retrieve cycle
func BenchmarkEndToEndMemoryFlow(b *testing.B) {
	server, _, cleanup := setupBenchmarkServer(b)
	defer cleanup()

	client := server.Client()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		userID := fmt.Sprintf("user-%d", i)

		body, _ := json.Marshal(map[string]string{
			"llm":     "claude",
			"content": "the user is learning to play the cello",
		})
		resp, err := client.Post(
			server.URL+"/api/v1/memory/"+userID,
			"application/json",
			bytes.NewReader(body),
		)
		if err != nil {
			b.Fatalf("Failed to store memory: %v", err)
		}
		resp.Body.Close()

		resp, err = client.Get(server.URL + "/api/v1/memory/" + userID + "/relevant?prompt=cello")
		if err != nil {
			b.Fatalf("Failed to rank memories: %v", err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			b.Fatalf("Relevant status = %v, want %v", resp.StatusCode, http.StatusOK)
		}
	}
}
