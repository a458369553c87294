package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/flashbots/tips/internal/config"
	"github.com/stretchr/testify/require"
)

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	require.Equal(t, config.Shared{}, cfg)
}

func TestLoad_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
logLevel: debug
kafka:
  brokers: ["broker-1:9092", "broker-2:9092"]
  partitions: 6
  replicas: 3
objectStore:
  bucket: tips-audit
  region: us-east-1
`), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.Kafka.Brokers)
	require.Equal(t, int32(6), cfg.Kafka.Partitions)
	require.Equal(t, "tips-audit", cfg.ObjectStore.Bucket)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load("/nonexistent/path/config.yaml")
	require.Error(t, err)
}

func TestSplitBrokers(t *testing.T) {
	require.Equal(t, []string{"a:9092", "b:9092"}, config.SplitBrokers("a:9092, b:9092"))
	require.Nil(t, config.SplitBrokers(""))
}

func TestParseProperties(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kafka.properties")
	require.NoError(t, os.WriteFile(path, []byte(`
# comment
bootstrap.servers=broker-1:9092
session.timeout.ms=6000

; another comment
`), 0o644))

	props, err := config.ParseProperties(path)
	require.NoError(t, err)
	require.Equal(t, "broker-1:9092", props["bootstrap.servers"])
	require.Equal(t, 6000, config.PropertyInt(props, "session.timeout.ms", 0))
	require.Equal(t, 42, config.PropertyInt(props, "missing.key", 42))
}

func TestKafka_LoadProperties(t *testing.T) {
	var empty config.Kafka
	props, err := empty.LoadProperties()
	require.NoError(t, err)
	require.Nil(t, props)

	dir := t.TempDir()
	path := filepath.Join(dir, "kafka.properties")
	require.NoError(t, os.WriteFile(path, []byte("acks=all\n"), 0o644))

	withFile := config.Kafka{PropertiesFile: path}
	props, err = withFile.LoadProperties()
	require.NoError(t, err)
	require.Equal(t, "all", props["acks"])
}
