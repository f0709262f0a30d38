package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{ConfigFileEnv, "HTTP_ADDR", "DB_DRIVER", "SQLITE_PATH", "HISTORY_CAPACITY",
		"NEO4J_URI", "NEO4J_TIMEOUT_SECONDS", "REDIS_ADDR", "REDIS_CHANNEL", "CORS_ALLOWED_ORIGINS", "TX_ATTEMPTS", "TX_LOCK_TIMEOUT_MS"} {
		t.Setenv(k, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.HistoryCapacity != 50 || cfg.DB.Driver != "postgres" {
		t.Fatalf("defaults: got=%+v", cfg)
	}
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "skillgraph.yaml")
	body := `
http_addr: ":9000"
allowed_origins: ["https://a.example"]
history_capacity: 20
db:
  driver: sqlite
  sqlite_path: /tmp/sg.db
neo4j:
  uri: bolt://neo4j:7687
  timeout: 3s
redis:
  addr: redis:6379
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	clearEnv(t)
	t.Setenv(ConfigFileEnv, path)
	t.Setenv("HTTP_ADDR", ":7000")
	t.Setenv("REDIS_CHANNEL", "graph-events")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://b.example, https://c.example")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.HTTPAddr != ":7000" {
		t.Fatalf("env must override file: got=%q", cfg.HTTPAddr)
	}
	if cfg.DB.Driver != "sqlite" || cfg.DB.SQLitePath != "/tmp/sg.db" || cfg.HistoryCapacity != 20 {
		t.Fatalf("file values: got=%+v", cfg)
	}
	if cfg.Neo4j.URI != "bolt://neo4j:7687" || cfg.Neo4j.Timeout != 3*time.Second {
		t.Fatalf("neo4j: got=%+v", cfg.Neo4j)
	}
	if cfg.Redis.Addr != "redis:6379" || cfg.Redis.Channel != "graph-events" {
		t.Fatalf("redis: got=%+v", cfg.Redis)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://c.example" {
		t.Fatalf("origins: got=%v", cfg.AllowedOrigins)
	}
}

func TestLoadConfigBadFile(t *testing.T) {
	t.Setenv(ConfigFileEnv, filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("want error for missing config file")
	}
}

func TestLoadConfigWriteTuning(t *testing.T) {
	clearEnv(t)
	cfg, _ := LoadConfig()
	if cfg.TxAttempts != 3 || cfg.TxLockTimeout != 5*time.Second {
		t.Fatalf("write defaults: attempts=%d lock_timeout=%s", cfg.TxAttempts, cfg.TxLockTimeout)
	}
	t.Setenv("TX_ATTEMPTS", "1")
	t.Setenv("TX_LOCK_TIMEOUT_MS", "0")
	cfg, _ = LoadConfig()
	if cfg.TxAttempts != 1 || cfg.TxLockTimeout != 0 {
		t.Fatalf("write env: attempts=%d lock_timeout=%s", cfg.TxAttempts, cfg.TxLockTimeout)
	}
}
