package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("RIDEDESK_ENV_FILE", "")
	t.Setenv("RIDEDESK_JWT_SECRET", "secret")
	chdir(t, t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Addr != ":8080" || cfg.Storage != "postgres" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Matching.RadiusMeters != 5000 || cfg.Matching.MaxOffers != 5 {
		t.Fatalf("unexpected matching defaults: %+v", cfg.Matching)
	}
	if cfg.HTTP.ShutdownTimeout != 15*time.Second || len(cfg.Kafka.Brokers) != 0 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadCollectsInvalidValues(t *testing.T) {
	t.Setenv("RIDEDESK_ENV_FILE", "")
	t.Setenv("RIDEDESK_JWT_SECRET", "")
	t.Setenv("RIDEDESK_MATCH_MAX_OFFERS", "five")
	t.Setenv("RIDEDESK_STORAGE", "sqlite")
	chdir(t, t.TempDir())

	_, err := Load()
	if err == nil {
		t.Fatalf("expected error")
	}
	for _, want := range []string{"RIDEDESK_MATCH_MAX_OFFERS", "RIDEDESK_STORAGE", "RIDEDESK_JWT_SECRET"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoadReadsEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	content := "RIDEDESK_JWT_SECRET=from-file\nRIDEDESK_KAFKA_BROKERS=k1:9092, k2:9092\nRIDEDESK_MATCH_RADIUS_M=2500\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("RIDEDESK_ENV_FILE", path)
	// godotenv.Load never overrides variables that are already set, so clear
	// the ones under test and restore them afterwards via t.Setenv.
	for _, k := range []string{"RIDEDESK_JWT_SECRET", "RIDEDESK_KAFKA_BROKERS", "RIDEDESK_MATCH_RADIUS_M"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Auth.JWTSecret != "from-file" {
		t.Fatalf("expected secret from file, got %q", cfg.Auth.JWTSecret)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Fatalf("unexpected brokers: %v", cfg.Kafka.Brokers)
	}
	if cfg.Matching.RadiusMeters != 2500 {
		t.Fatalf("unexpected radius: %v", cfg.Matching.RadiusMeters)
	}
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("restore cwd: %v", err)
		}
	})
}
