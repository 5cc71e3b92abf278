package config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.DefaultNetwork != "testnet" {
		t.Errorf("DefaultNetwork = %q", cfg.DefaultNetwork)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config must validate: %v", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("DEFAULT_NETWORK", "public")
	t.Setenv("CACHE_SIZE", "128")
	t.Setenv("STREAM_HEARTBEAT_SECONDS", "30")

	cfg := Load()

	if cfg.Port != "9000" || cfg.DefaultNetwork != "public" || cfg.CacheSize != 128 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.StreamHeartbeat.Seconds() != 30 {
		t.Errorf("StreamHeartbeat = %v", cfg.StreamHeartbeat)
	}
}

func TestValidate_RejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown network", func(c *Config) { c.DefaultNetwork = "mainnet" }},
		{"empty port", func(c *Config) { c.Port = "" }},
		{"zero cache", func(c *Config) { c.CacheSize = 0 }},
		{"zero toml limit", func(c *Config) { c.TomlRequestsPerIP = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Load()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation failure")
			}
		})
	}
}
