package nsqpump

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, 1, cfg.MaxInFlight)
	assert.Equal(t, DefaultMaxFrameSize, cfg.MaxFrameSize)
	assert.Equal(t, 5*time.Second, cfg.DialTimeout)
	assert.Equal(t, 1, cfg.WriteQueueSize)
	assert.NoError(t, cfg.Validate())
}

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
max_in_flight: 32
dial_timeout: 2s
reconnect_min_backoff: 100ms
reconnect_max_backoff: 10s
`))
	require.NoError(t, err)
	assert.Equal(t, 32, cfg.MaxInFlight)
	assert.Equal(t, 32, cfg.WriteQueueSize)
	assert.Equal(t, 2*time.Second, cfg.DialTimeout)
	assert.Equal(t, 100*time.Millisecond, cfg.ReconnectMinBackoff)
	assert.Equal(t, DefaultMaxFrameSize, cfg.MaxFrameSize)
}

func TestParseConfigZeroInFlight(t *testing.T) {
	cfg, err := ParseConfig([]byte("max_in_flight: 0\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.MaxInFlight)
	assert.Equal(t, 1, cfg.queueSize())
}

func TestParseConfigInvalid(t *testing.T) {
	_, err := ParseConfig([]byte("max_in_flight: -3\n"))
	assert.Error(t, err)

	_, err = ParseConfig([]byte("max_in_flight: [\n"))
	assert.Error(t, err)

	_, err = ParseConfig([]byte("reconnect_min_backoff: 1m\nreconnect_max_backoff: 1s\n"))
	assert.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "consumer.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_in_flight: 5\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.MaxInFlight)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidateMaxInFlightRange(t *testing.T) {
	cfg := NewConfig()
	cfg.MaxInFlight = 1 << 62
	assert.Error(t, cfg.Validate())

	_, err := NewConsumer("test", "chan", cfg)
	assert.Error(t, err)

	_, err = ParseConfig([]byte("max_in_flight: 2501\n"))
	assert.Error(t, err)

	cfg = NewConfig()
	cfg.MaxInFlight = MaxRdyCount
	cfg.WriteQueueSize = MaxRdyCount
	require.NoError(t, cfg.Validate())
	assert.Equal(t, MaxRdyCount, cfg.inflightSize())

	cfg.WriteQueueSize = MaxRdyCount + 1
	assert.Error(t, cfg.Validate())
}

func TestQueueSizeClamp(t *testing.T) {
	assert.Equal(t, 1, Config{}.inflightSize())
	assert.Equal(t, 1, Config{}.queueSize())
	assert.Equal(t, MaxRdyCount, Config{MaxInFlight: 1 << 40}.inflightSize())
	assert.Equal(t, MaxRdyCount, Config{WriteQueueSize: 1 << 40}.queueSize())
	assert.Equal(t, 7, Config{MaxInFlight: 7}.queueSize())
}
