package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("CONTRACT_VERSION", "")
	t.Setenv("RISK_MEDIUM_THRESHOLD", "")
	t.Setenv("RISK_HIGH_THRESHOLD", "")
	t.Setenv("DATASET_WORKERS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultContractVersion, cfg.ContractVersion)
	assert.Equal(t, 0.3, cfg.MediumThreshold)
	assert.Equal(t, 0.6, cfg.HighThreshold)
	assert.Equal(t, DefaultDatasetWorkers, cfg.DatasetWorkers)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("CONTRACT_VERSION", "behavioral-v2")
	t.Setenv("RISK_MEDIUM_THRESHOLD", "0.25")
	t.Setenv("RISK_HIGH_THRESHOLD", "0.7")
	t.Setenv("MODEL_PATH", "/models/ewa.msgpack")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "behavioral-v2", cfg.ContractVersion)
	assert.Equal(t, 0.25, cfg.MediumThreshold)
	assert.Equal(t, 0.7, cfg.HighThreshold)
	assert.Equal(t, "/models/ewa.msgpack", cfg.ModelPath)
}

func TestLoad_InvertedThresholds(t *testing.T) {
	t.Setenv("RISK_MEDIUM_THRESHOLD", "0.8")
	t.Setenv("RISK_HIGH_THRESHOLD", "0.5")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must not exceed")
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{
		Port:             "8080",
		ContractVersion:  "withdrawal-v1",
		MediumThreshold:  0.3,
		HighThreshold:    0.6,
		DatasetWorkers:   1,
		RateLimitRPM:     60,
		RateLimitBurst:   5,
		BreakerThreshold: 3,
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid config", mutate: func(c *Config) {}},
		{name: "missing port", mutate: func(c *Config) { c.Port = "" }, wantErr: "PORT is required"},
		{name: "missing contract", mutate: func(c *Config) { c.ContractVersion = "" }, wantErr: "CONTRACT_VERSION is required"},
		{name: "medium above one", mutate: func(c *Config) { c.MediumThreshold = 1.2 }, wantErr: "RISK_MEDIUM_THRESHOLD"},
		{name: "negative high", mutate: func(c *Config) { c.HighThreshold = -0.1 }, wantErr: "RISK_HIGH_THRESHOLD"},
		{name: "no workers", mutate: func(c *Config) { c.DatasetWorkers = 0 }, wantErr: "DATASET_WORKERS"},
		{name: "negative rate", mutate: func(c *Config) { c.RateLimitRPM = -1 }, wantErr: "RATE_LIMIT_RPM"},
		{name: "no burst", mutate: func(c *Config) { c.RateLimitBurst = 0 }, wantErr: "RATE_LIMIT_BURST"},
		{name: "limiter disabled ignores burst", mutate: func(c *Config) { c.RateLimitRPM, c.RateLimitBurst = 0, 0 }},
		{name: "no breaker threshold", mutate: func(c *Config) { c.BreakerThreshold = 0 }, wantErr: "CLASSIFIER_BREAKER_FAILURES"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestConfig_IsDevelopment(t *testing.T) {
	cfg := &Config{Env: "development"}
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())

	cfg.Env = "production"
	assert.False(t, cfg.IsDevelopment())
	assert.True(t, cfg.IsProduction())
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_VAR", "custom_value")
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_FLOAT", "0.45")
	t.Setenv("TEST_INVALID", "not_a_number")

	assert.Equal(t, "custom_value", getEnv("TEST_VAR", "default"))
	assert.Equal(t, "default", getEnv("NONEXISTENT_VAR", "default"))
	assert.Equal(t, int64(42), getEnvInt64("TEST_INT", 0))
	assert.Equal(t, int64(99), getEnvInt64("TEST_INVALID", 99))
	assert.Equal(t, 0.45, getEnvFloat("TEST_FLOAT", 0))
	assert.Equal(t, 0.3, getEnvFloat("TEST_INVALID", 0.3))
}

func TestGetEnvList(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example, ,https://b.example ")
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, getEnvList("CORS_ALLOWED_ORIGINS"))
	assert.Nil(t, getEnvList("NONEXISTENT_LIST"))
}
