package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
database:
  host: "localhost"
  port: 5432
  username: "u"
  password: "p"
  name: "db"
kafka:
  host: "localhost"
  port: 9092
  request_created_topic_name: "request.created"
  request_status_changed_topic_name: "request.status_changed"
redis:
  host: "localhost"
  port: 6379
ambugo:
  http_addr: ":8080"
  kafka_consumer_group: "ambugo-api"
  public_base_url: "https://ambugo.app"
  source_tag: "ambugo-web"
  lookup_cache_ttl_seconds: 300
  suggest_min_chars: 3
  mailer_recipients: "ops@ambugo.app, partners@ambugo.app"
`), 0o600))

	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	require.Equal(t, "u", cfg.Database.Username)
	require.Equal(t, "request.created", cfg.Kafka.RequestCreatedTopicName)
	require.Equal(t, "request.status_changed", cfg.Kafka.RequestStatusChangedTopicName)
	require.Equal(t, 6379, cfg.Redis.Port)
	require.Equal(t, ":8080", cfg.Ambugo.HTTPAddr)
	require.Equal(t, "ambugo-web", cfg.Ambugo.SourceTag)
	require.Equal(t, 300, cfg.Ambugo.LookupCacheTTLSeconds)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
