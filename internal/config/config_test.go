package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DECLARE_BATCH_SIZE", "")
	t.Setenv("SMTP_HOST", "")
	t.Setenv("EVENTS_ENABLED", "")

	cfg := Load()

	assert.Equal(t, 20, cfg.Declaration.BatchSize)
	assert.Equal(t, 3, cfg.Declaration.MaxIdleBatches)
	assert.Equal(t, 5*time.Minute, cfg.Declaration.TimeBudget)
	assert.False(t, cfg.SMTP.Enabled())
	assert.False(t, cfg.Events.Enabled)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("EVENTS_ENABLED", "true")
	t.Setenv("DECLARE_TIME_BUDGET", "90s")
	t.Setenv("DECLARE_MAX_BATCHES", "not-a-number")
	t.Setenv("SMTP_HOST", "smtp.example")
	t.Setenv("SMTP_FROM", "hiring@example.com")

	cfg := Load()

	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Events.KafkaBrokers)
	assert.True(t, cfg.Events.Enabled)
	assert.Equal(t, 90*time.Second, cfg.Declaration.TimeBudget)
	assert.Equal(t, 500, cfg.Declaration.MaxBatches)
	assert.True(t, cfg.SMTP.Enabled())
}
