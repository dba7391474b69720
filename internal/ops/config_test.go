package ops

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/event"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validConfig = `
gateway:
  host: localhost
  port: 8080
  api_key: test-key
recorder:
  enabled: true
  dir: /tmp/journal
  kinds:
    - order_update
    - trade_update
subscriptions:
  - exchange: binance
    market: BTC-USDT
    channel: order_book
  - exchange: binance
    market: ETH-USDT
    channel: trades
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Gateway.Host)
	assert.Equal(t, 8080, cfg.Gateway.Port)
	assert.Equal(t, "/ws", cfg.Gateway.Path)
	assert.Equal(t, 5*time.Second, cfg.Gateway.RequestTimeout)
	assert.Equal(t, 1024, cfg.Engine.QueueSize)
	assert.Equal(t, "events", cfg.Recorder.FilePrefix)
	require.Len(t, cfg.Subscriptions, 2)

	kinds, err := cfg.Recorder.EventKinds()
	require.NoError(t, err)
	assert.Equal(t, []event.Kind{event.KindOrderUpdate, event.KindTradeUpdate}, kinds)

	gw := cfg.GatewayConfig()
	assert.Equal(t, "localhost", gw.Host)
	assert.Equal(t, "test-key", gw.APIKey)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadRejectsMissingGatewayHost(t *testing.T) {
	_, err := Load(writeConfig(t, `
gateway:
  port: 8080
  api_key: test-key
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "host")
}

func TestLoadRejectsUnknownRecorderKind(t *testing.T) {
	_, err := Load(writeConfig(t, `
gateway:
  host: localhost
  port: 8080
  api_key: test-key
recorder:
  enabled: true
  dir: /tmp/journal
  kinds:
    - bogus
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bogus")
}

func TestLoadRejectsRecorderWithoutDir(t *testing.T) {
	_, err := Load(writeConfig(t, `
gateway:
  host: localhost
  port: 8080
  api_key: test-key
recorder:
  enabled: true
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recorder.dir")
}

func TestLoadRejectsBadSubscription(t *testing.T) {
	_, err := Load(writeConfig(t, `
gateway:
  host: localhost
  port: 8080
  api_key: test-key
subscriptions:
  - exchange: binance
    market: BTC-USDT
    channel: candles
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel")

	_, err = Load(writeConfig(t, `
gateway:
  host: localhost
  port: 8080
  api_key: test-key
subscriptions:
  - market: BTC-USDT
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exchange")
}
