package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.DSN() != "./aqiwatch.db" {
		t.Fatalf("database=%+v", cfg.Database)
	}
	if cfg.Alerts.MinRiskScore != 3 {
		t.Fatalf("min_risk_score=%d want=3", cfg.Alerts.MinRiskScore)
	}
	if cfg.Schedule.ParseCollectInterval() != 30*time.Minute {
		t.Fatalf("collect interval=%v", cfg.Schedule.ParseCollectInterval())
	}
	if len(cfg.Watch) == 0 {
		t.Fatal("default watch list is empty")
	}
}

func TestLoadYAMLAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aqiwatch.yaml")
	data := `
database:
  path: /var/lib/aqiwatch.db
schedule:
  collect_interval: 5m
watch:
  - state: Perak
    city: Ipoh
trend:
  window: 3h
alerts:
  min_risk_score: 4
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("DATABASE_URL", "postgres://u:p@db/aqiwatch")
	t.Setenv("IQAIR_API_KEY", "iq-key")
	t.Setenv("WAQI_TOKEN", "waqi-token")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("AQIWATCH_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Database.Driver != "postgres" || cfg.Database.DSN() != "postgres://u:p@db/aqiwatch" {
		t.Fatalf("database=%+v", cfg.Database)
	}
	if cfg.Schedule.ParseCollectInterval() != 5*time.Minute {
		t.Fatalf("collect interval=%v", cfg.Schedule.ParseCollectInterval())
	}
	if len(cfg.Watch) != 1 || cfg.Watch[0].City != "Ipoh" {
		t.Fatalf("watch=%+v", cfg.Watch)
	}
	if cfg.Trend.ParseWindow() != 3*time.Hour || cfg.Trend.SteadyThreshold != 2 {
		t.Fatalf("trend=%+v", cfg.Trend)
	}
	if cfg.Alerts.MinRiskScore != 4 {
		t.Fatalf("min_risk_score=%d", cfg.Alerts.MinRiskScore)
	}
	if !cfg.Sources.IQAir.Usable() || cfg.Sources.WAQI.APIKey != "waqi-token" || cfg.Sources.OpenWeather.Usable() {
		t.Fatalf("sources=%+v", cfg.Sources)
	}
	if !cfg.Alerts.Kafka.Enabled || len(cfg.Alerts.Kafka.Brokers) != 2 || cfg.Alerts.Kafka.Brokers[1] != "k2:9092" {
		t.Fatalf("kafka=%+v", cfg.Alerts.Kafka)
	}
	if cfg.Cache.Backend != "redis" || cfg.Cache.Redis.Addr != "localhost:6379" {
		t.Fatalf("cache=%+v", cfg.Cache)
	}
	if cfg.Log.ParseLevel() != slog.LevelDebug {
		t.Fatalf("log level=%v", cfg.Log.ParseLevel())
	}
}

func TestDSNDriverAliases(t *testing.T) {
	const url = "postgres://u:p@db/aqiwatch"
	tests := []struct {
		driver string
		want   string
	}{
		{"sqlite", "./aqiwatch.db"},
		{"sqlite3", "./aqiwatch.db"},
		{" SQLite3 ", "./aqiwatch.db"},
		{"", "./aqiwatch.db"},
		{"postgres", url},
		{"postgresql", url},
		{"pg", url},
	}
	for _, tt := range tests {
		d := DatabaseConfig{Driver: tt.driver, Path: "./aqiwatch.db", URL: url}
		if got := d.DSN(); got != tt.want {
			t.Errorf("driver %q: DSN()=%q want %q", tt.driver, got, tt.want)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestParseFallbacks(t *testing.T) {
	s := ScheduleConfig{CollectInterval: "soon", AdvisoryInterval: "-1m"}
	if s.ParseCollectInterval() != 30*time.Minute || s.ParseAdvisoryInterval() != time.Hour {
		t.Fatalf("fallbacks=%v %v", s.ParseCollectInterval(), s.ParseAdvisoryInterval())
	}
	if (CacheConfig{}).Size() != 1024 || (CacheConfig{MaxEntries: 50}).Size() != 50 {
		t.Fatal("cache size fallback")
	}
	if (CacheConfig{}).ParseTTL() != 10*time.Minute {
		t.Fatal("cache ttl fallback")
	}
	if (LogConfig{Level: "loud"}).ParseLevel() != slog.LevelInfo {
		t.Fatal("log level fallback")
	}
	if (AdvisoriesConfig{}).ParseMaxAge() != 7*24*time.Hour {
		t.Fatal("advisory max age fallback")
	}
}
