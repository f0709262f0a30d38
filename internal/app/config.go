package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/skillgraph-backend/internal/data/db"
	"github.com/yungbote/skillgraph-backend/internal/editor"
	"github.com/yungbote/skillgraph-backend/internal/observability"
	"github.com/yungbote/skillgraph-backend/internal/platform/envutil"
	"github.com/yungbote/skillgraph-backend/internal/platform/neo4jdb"
	"github.com/yungbote/skillgraph-backend/internal/realtime/bus"
)

const ConfigFileEnv = "SKILLGRAPH_CONFIG"

type Config struct {
	LogMode        string   `yaml:"log_mode"`
	HTTPAddr       string   `yaml:"http_addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`

	JWTSecretKey   string        `yaml:"jwt_secret_key"`
	AccessTokenTTL time.Duration `yaml:"access_token_ttl"`

	DB    db.Config                `yaml:"db"`
	Redis bus.RedisConfig          `yaml:"redis"`
	Neo4j neo4jdb.Config           `yaml:"neo4j"`
	Otel  observability.OtelConfig `yaml:"otel"`

	// TxAttempts and TxLockTimeout bound how skill graph writes wait on and
	// retry the per-course head lock.
	TxAttempts    int           `yaml:"tx_attempts"`
	TxLockTimeout time.Duration `yaml:"tx_lock_timeout"`

	MetricsEnabled bool   `yaml:"metrics_enabled"`
	MetricsAddr    string `yaml:"metrics_addr"`

	// AuditTable stores audit entries in skill_audit_logs besides the log sink.
	AuditTable bool `yaml:"audit_table"`

	HistoryCapacity int `yaml:"history_capacity"`
}

func defaultConfig() Config {
	return Config{
		LogMode:        "development",
		HTTPAddr:       ":8080",
		JWTSecretKey:   "defaultsecret",
		AccessTokenTTL: time.Hour,
		DB: db.Config{
			Driver:       db.DriverPostgres,
			PostgresHost: "localhost",
			PostgresPort: "5432",
			PostgresUser: "postgres",
			PostgresName: "skillgraph",
			SQLitePath:   "skillgraph.db",
		},
		Otel: observability.OtelConfig{
			ServiceName: "skillgraph-backend",
			SampleRatio: 1,
		},
		TxAttempts:      3,
		TxLockTimeout:   5 * time.Second,
		MetricsAddr:     ":9090",
		AuditTable:      true,
		HistoryCapacity: editor.DefaultHistoryCapacity,
	}
}

// LoadConfig layers defaults, the optional YAML file named by SKILLGRAPH_CONFIG,
// then environment variables.
func LoadConfig() (Config, error) {
	cfg := defaultConfig()
	if path := envutil.String(ConfigFileEnv, ""); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.LogMode = envutil.String("LOG_MODE", cfg.LogMode)
	cfg.HTTPAddr = envutil.String("HTTP_ADDR", cfg.HTTPAddr)
	if origins := envutil.String("CORS_ALLOWED_ORIGINS", ""); origins != "" {
		cfg.AllowedOrigins = splitList(origins)
	}

	cfg.JWTSecretKey = envutil.String("JWT_SECRET_KEY", cfg.JWTSecretKey)
	cfg.AccessTokenTTL = envutil.Seconds("ACCESS_TOKEN_TTL", cfg.AccessTokenTTL)

	cfg.DB.Driver = envutil.String("DB_DRIVER", cfg.DB.Driver)
	cfg.DB.PostgresHost = envutil.String("POSTGRES_HOST", cfg.DB.PostgresHost)
	cfg.DB.PostgresPort = envutil.String("POSTGRES_PORT", cfg.DB.PostgresPort)
	cfg.DB.PostgresUser = envutil.String("POSTGRES_USER", cfg.DB.PostgresUser)
	cfg.DB.PostgresPassword = envutil.String("POSTGRES_PASSWORD", cfg.DB.PostgresPassword)
	cfg.DB.PostgresName = envutil.String("POSTGRES_NAME", cfg.DB.PostgresName)
	cfg.DB.PostgresSSLMode = envutil.String("POSTGRES_SSLMODE", cfg.DB.PostgresSSLMode)
	cfg.DB.SQLitePath = envutil.String("SQLITE_PATH", cfg.DB.SQLitePath)
	cfg.DB.MaxOpenConns = envutil.Int("POSTGRES_MAX_OPEN_CONNS", cfg.DB.MaxOpenConns)

	cfg.Redis.Addr = envutil.String("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = envutil.String("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = envutil.Int("REDIS_DB", cfg.Redis.DB)
	cfg.Redis.Channel = envutil.String("REDIS_CHANNEL", cfg.Redis.Channel)

	cfg.Neo4j.URI = envutil.String("NEO4J_URI", cfg.Neo4j.URI)
	cfg.Neo4j.User = envutil.String("NEO4J_USER", cfg.Neo4j.User)
	cfg.Neo4j.Password = envutil.String("NEO4J_PASSWORD", cfg.Neo4j.Password)
	cfg.Neo4j.Database = envutil.String("NEO4J_DATABASE", cfg.Neo4j.Database)
	cfg.Neo4j.Timeout = envutil.Seconds("NEO4J_TIMEOUT_SECONDS", cfg.Neo4j.Timeout)

	cfg.Otel.Enabled = envutil.Bool("OTEL_ENABLED", cfg.Otel.Enabled)
	cfg.Otel.ServiceName = envutil.String("OTEL_SERVICE_NAME", cfg.Otel.ServiceName)
	cfg.Otel.Environment = envutil.String("OTEL_ENVIRONMENT", cfg.Otel.Environment)
	cfg.Otel.Version = envutil.String("OTEL_SERVICE_VERSION", cfg.Otel.Version)
	cfg.Otel.Endpoint = envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Otel.Endpoint)
	cfg.Otel.Insecure = envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", cfg.Otel.Insecure)
	if h := envutil.String("OTEL_EXPORTER_OTLP_HEADERS", ""); h != "" {
		cfg.Otel.Headers = observability.ParseHeaders(h)
	}

	cfg.TxAttempts = envutil.Int("TX_ATTEMPTS", cfg.TxAttempts)
	if ms := envutil.Int("TX_LOCK_TIMEOUT_MS", -1); ms >= 0 {
		cfg.TxLockTimeout = time.Duration(ms) * time.Millisecond
	}

	cfg.MetricsEnabled = envutil.Bool("METRICS_ENABLED", cfg.MetricsEnabled)
	cfg.MetricsAddr = envutil.String("METRICS_ADDR", cfg.MetricsAddr)
	cfg.AuditTable = envutil.Bool("AUDIT_TABLE_ENABLED", cfg.AuditTable)
	cfg.HistoryCapacity = envutil.Int("HISTORY_CAPACITY", cfg.HistoryCapacity)
}

func splitList(raw string) []string {
	out := []string{}
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
