package redis

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/air-quality-fusion/internal/domain"
	"github.com/couchcryptid/air-quality-fusion/internal/forecast"
)

func sampleModel() forecast.Model {
	return forecast.Model{
		Location:  "Delhi",
		Gas:       domain.GasPM25,
		Baseline:  142.5,
		Profile:   forecast.ProfileMetro,
		Samples:   96,
		FittedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		UTCOffset: 5*time.Hour + 30*time.Minute,
	}
}

func TestRedisKey(t *testing.T) {
	assert.Equal(t, "forecast:model:delhi|pm25", redisKey(sampleModel().Key()))
}

func TestModelCodec(t *testing.T) {
	m := sampleModel()
	m.Coef[0] = 0.25

	data, err := encodeModel(m)
	require.NoError(t, err)

	back, err := decodeModel(data)
	require.NoError(t, err)
	assert.Equal(t, m, back)
	assert.InDelta(t, m.Predict(m.FittedAt), back.Predict(m.FittedAt), 1e-9)
}

func TestDecodeModel_Corrupt(t *testing.T) {
	_, err := decodeModel([]byte("not-json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode model")
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	_, err := NewRedisClient("127.0.0.1:1", "", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect redis")
}

func TestLoadModel_ServerError(t *testing.T) {
	client := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, ok, err := NewModelStore(client, 0).LoadModel(ctx, "delhi|pm25")
	require.Error(t, err)
	assert.False(t, ok)
}
