// Package config implements the shared configuration surface for every TIPS
// binary: env-backed flags following the teacher's envflag pattern, plus a
// properties-file reader for Kafka client configuration and a YAML file
// loader for the rest.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/flashbots/tips/envflag"
	"gopkg.in/yaml.v3"
)

// Kafka holds the event log connection settings, loaded from flags/env or
// the YAML config file. PropertiesFile names a KAFKA_*_PROPERTIES_FILE-style
// properties file whose entries LoadProperties returns as client tuning.
type Kafka struct {
	Brokers        []string `yaml:"brokers"`
	Partitions     int32    `yaml:"partitions"`
	Replicas       int16    `yaml:"replicas"`
	GroupID        string   `yaml:"groupId"`
	PropertiesFile string   `yaml:"propertiesFile"`
}

// LoadProperties parses k.PropertiesFile, if set, into the flat string map
// eventlog.Config.Properties expects. Returns nil with no error when no
// properties file is configured.
func (k Kafka) LoadProperties() (map[string]string, error) {
	if k.PropertiesFile == "" {
		return nil, nil
	}
	return ParseProperties(k.PropertiesFile)
}

// ObjectStore holds the S3-compatible object store connection settings.
type ObjectStore struct {
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
}

// Shared is the configuration every TIPS component needs regardless of its
// role: where the event log and object store live, and how to log.
type Shared struct {
	Kafka       Kafka       `yaml:"kafka"`
	ObjectStore ObjectStore `yaml:"objectStore"`
	LogLevel    string      `yaml:"logLevel"`
	LogDev      bool        `yaml:"logDev"`
}

// Load reads a YAML config file when path is non-empty, then lets flags and
// TIPS_*-prefixed environment variables (handled by envflag at flag
// definition time) override it. Returns the zero value with no error if path
// is empty.
func Load(path string) (Shared, error) {
	var cfg Shared
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config file %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config file %q: %w", path, err)
	}
	return cfg, nil
}

// SharedFlags are the flag pointers shared by every binary. Call flag.Parse()
// after all component-specific flags are also registered, then Resolve().
type SharedFlags struct {
	LogLevel            *string
	LogDev              *bool
	KafkaBrokers        *string
	KafkaPropertiesFile *string
	ObjectBucket        *string
	ObjectRegion        *string
	ObjectEndpoint      *string
}

// RegisterSharedFlags defines the flags common to every binary (log level,
// log-dev, kafka brokers/properties file, object store bucket/region/
// endpoint) using envflag, so each is overridable via TIPS_*-prefixed env
// vars.
func RegisterSharedFlags(defaults Shared) SharedFlags {
	return SharedFlags{
		LogLevel:            envflag.String("log-level", orDefault(defaults.LogLevel, "info"), "zap log level"),
		LogDev:              envflag.Bool("log-dev", defaults.LogDev, "use zap's human-friendly development encoder"),
		KafkaBrokers:        envflag.String("kafka-brokers", strings.Join(defaults.Kafka.Brokers, ","), "comma-separated kafka broker addresses"),
		KafkaPropertiesFile: envflag.String("kafka-properties-file", defaults.Kafka.PropertiesFile, "path to a Java-style Kafka client properties file (KAFKA_*_PROPERTIES_FILE), tuning acks/compression/flush/fetch settings"),
		ObjectBucket:        envflag.String("object-store-bucket", defaults.ObjectStore.Bucket, "S3-compatible bucket name"),
		ObjectRegion:        envflag.String("object-store-region", orDefault(defaults.ObjectStore.Region, "us-east-1"), "S3-compatible region"),
		ObjectEndpoint:      envflag.String("object-store-endpoint", defaults.ObjectStore.Endpoint, "S3-compatible endpoint override (empty for AWS default)"),
	}
}

// Resolve merges the parsed flags back into a Shared config.
func (f SharedFlags) Resolve() Shared {
	return Shared{
		LogLevel: *f.LogLevel,
		LogDev:   *f.LogDev,
		Kafka: Kafka{
			Brokers:        SplitBrokers(*f.KafkaBrokers),
			PropertiesFile: *f.KafkaPropertiesFile,
		},
		ObjectStore: ObjectStore{
			Bucket:   *f.ObjectBucket,
			Region:   *f.ObjectRegion,
			Endpoint: *f.ObjectEndpoint,
		},
	}
}

func orDefault(val, fallback string) string {
	if val == "" {
		return fallback
	}
	return val
}

// SplitBrokers parses the comma-separated broker list produced by the
// kafka-brokers flag.
func SplitBrokers(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// ParseProperties reads a Java-style .properties file, as produced by most
// Kafka tooling (KAFKA_*_PROPERTIES_FILE env vars), into a flat string map.
// Lines starting with '#' or ';' are comments; blank lines are ignored.
func ParseProperties(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading properties file %q: %w", path, err)
	}

	out := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		out[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return out, nil
}

// PropertyInt parses an integer property, falling back to defaultValue when
// the key is absent or unparsable.
func PropertyInt(props map[string]string, key string, defaultValue int) int {
	raw, ok := props[key]
	if !ok {
		return defaultValue
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return val
}

// ExitCode mirrors the exit codes documented for every TIPS binary: 0 for
// clean shutdown, 2 for configuration errors, 3 for runtime fatal errors.
const (
	ExitOK           = 0
	ExitConfigError  = 2
	ExitRuntimeError = 3
)

// FlagSetName returns the program name used for -h output, matching how the
// teacher's binaries name their flag.FlagSet.
func FlagSetName() string {
	return flag.CommandLine.Name()
}
