package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(wd); err != nil {
			t.Fatalf("restore wd: %v", err)
		}
	})
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("casahunt-test")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("server.port = %d", cfg.Server.Port)
	}
	if cfg.Geocoding.Timeout != 10*time.Second {
		t.Errorf("geocoding.timeout = %v", cfg.Geocoding.Timeout)
	}
	if cfg.Transit.Timeout != 15*time.Second {
		t.Errorf("transit.timeout = %v", cfg.Transit.Timeout)
	}
	if cfg.Transit.DefaultLat != 45.4642 || cfg.Transit.DefaultLon != 9.19 {
		t.Errorf("default center = %v,%v", cfg.Transit.DefaultLat, cfg.Transit.DefaultLon)
	}
	if cfg.Telemetry.ServiceName != "casahunt-test" {
		t.Errorf("service name = %q", cfg.Telemetry.ServiceName)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CASAHUNT_SERVER_PORT", "9090")
	t.Setenv("CASAHUNT_GEOCODING_PROVIDER", "remote")
	t.Setenv("CASAHUNT_GEOCODING_TIMEOUT", "3s")
	t.Setenv("CASAHUNT_TRANSIT_DEFAULT_LAT", "41.9028")

	cfg, err := Load("casahunt-test")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("server.port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Geocoding.Provider != "remote" {
		t.Errorf("provider = %q", cfg.Geocoding.Provider)
	}
	if cfg.Geocoding.Timeout != 3*time.Second {
		t.Errorf("timeout = %v", cfg.Geocoding.Timeout)
	}
	if cfg.Transit.DefaultLat != 41.9028 {
		t.Errorf("default_lat = %v", cfg.Transit.DefaultLat)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Config{}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"server.port", "database.host", "nats.url", "geocoding.provider", "transit.overpass_url"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q:\n%v", want, err)
		}
	}
}
