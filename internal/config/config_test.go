package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", StoreMemory)
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("PORT", "")
	t.Setenv("OTEL_ENDPOINT", "")
	t.Setenv("COUPON_CACHE_TTL", "")
	t.Setenv("KAFKA_BROKERS", " kafka-1:9092, ,kafka-2:9092 ")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.KafkaEnabled())
	assert.False(t, cfg.OtelEnabled())
	assert.Equal(t, 5*time.Minute, cfg.CouponCacheTTL)
}

func TestLoadConfigRejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"mongo without uri", map[string]string{"STORE_DRIVER": StoreMongo, "JWT_SECRET": "s", "MONGO_URI": ""}},
		{"unknown driver", map[string]string{"STORE_DRIVER": "redis", "JWT_SECRET": "s"}},
		{"missing secret", map[string]string{"STORE_DRIVER": StoreMemory, "JWT_SECRET": ""}},
		{"bad ttl", map[string]string{"STORE_DRIVER": StoreMemory, "JWT_SECRET": "s", "COUPON_CACHE_TTL": "soon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}
