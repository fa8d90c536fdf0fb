package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 0.85, cfg.Verification.AcceptanceThreshold)
	assert.Equal(t, 85.0, cfg.Verification.FuzzyThreshold)
	assert.Equal(t, 100.0, cfg.Quality.Sharpness)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, 24*time.Hour, cfg.Storage.ArtifactTTL)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("ATTESTOR_ACCEPTANCE_THRESHOLD", "0.9")
	t.Setenv("ATTESTOR_STORAGE", "redis")
	t.Setenv("ATTESTOR_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("ATTESTOR_AUDIT_SINK", "kafka")
	t.Setenv("ATTESTOR_KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("ATTESTOR_ARTIFACT_TTL", "90m")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 0.9, cfg.Verification.AcceptanceThreshold)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Audit.Brokers)
	assert.Equal(t, 90*time.Minute, cfg.Storage.ArtifactTTL)
}

func TestFromEnvRejectsBadValues(t *testing.T) {
	tests := map[string][2]string{
		"unparseable number":  {"ATTESTOR_FUZZY_THRESHOLD", "high"},
		"threshold too large": {"ATTESTOR_ACCEPTANCE_THRESHOLD", "1.5"},
		"unknown backend":     {"ATTESTOR_STORAGE", "s3"},
		"redis without url":   {"ATTESTOR_STORAGE", "redis"},
		"kafka without peers": {"ATTESTOR_AUDIT_SINK", "kafka"},
		"bad duration":        {"ATTESTOR_ARTIFACT_TTL", "forever"},
	}
	for name, kv := range tests {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}
