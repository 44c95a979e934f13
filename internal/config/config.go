package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultExplorerURL     = "https://api.etherscan.io/api"
	DefaultExplorerTimeout = 10 * time.Second
	DefaultHTTPAddr        = "127.0.0.1:5000"
	DefaultAPIURL          = "http://localhost:5000"
)

type Config struct {
	ExplorerURL       string
	ExplorerAPIKey    string
	ExplorerTimeout   time.Duration
	ExplorerRateLimit int
	HTTPAddr          string
	APIURL            string
	RedisAddr         string
	OtelEndpoint      string
	KafkaBrokers      []string
	KafkaTopic        string
	KafkaGroupID      string
	LogLevel          string
	LogFormat         string
	LogFile           string
	LogMaxSizeMB      int
	LogMaxBackups     int
}

type EnvSource interface {
	Lookup(key string) (string, bool)
}

type EnvMap map[string]string

func (e EnvMap) Lookup(key string) (string, bool) {
	value, ok := e[key]
	return value, ok
}

func FromEnviron() EnvSource {
	env := make(EnvMap)
	for _, entry := range os.Environ() {
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			continue
		}
		env[parts[0]] = parts[1]
	}
	return env
}

// Load builds the server configuration. EXPLORER_API_KEY is required.
func Load(source EnvSource) (Config, error) {
	cfg, err := loadCommon(source)
	if err != nil {
		return Config{}, err
	}
	if cfg.ExplorerAPIKey == "" {
		return Config{}, errors.New("EXPLORER_API_KEY is required")
	}
	return cfg, nil
}

// LoadClient builds the configuration used by processes that never talk to
// the explorer directly, so the API key may be absent.
func LoadClient(source EnvSource) (Config, error) {
	return loadCommon(source)
}

func loadCommon(source EnvSource) (Config, error) {
	if source == nil {
		return Config{}, errors.New("env source is required")
	}

	explorerURL := DefaultExplorerURL
	if raw, ok := source.Lookup("EXPLORER_URL"); ok && strings.TrimSpace(raw) != "" {
		explorerURL = strings.TrimSpace(raw)
	}
	apiKey, _ := source.Lookup("EXPLORER_API_KEY")
	apiKey = strings.TrimSpace(apiKey)

	timeout, err := parseDurationEnv(source, "EXPLORER_TIMEOUT", DefaultExplorerTimeout)
	if err != nil {
		return Config{}, err
	}
	if timeout <= 0 {
		return Config{}, errors.New("EXPLORER_TIMEOUT must be positive")
	}
	rateLimit, err := parseUintEnv(source, "EXPLORER_RATE_LIMIT", 5)
	if err != nil {
		return Config{}, err
	}

	httpAddr := DefaultHTTPAddr
	if raw, ok := source.Lookup("HTTP_ADDR"); ok && raw != "" {
		httpAddr = raw
	}
	apiURL := DefaultAPIURL
	if raw, ok := source.Lookup("CRAWLER_API_URL"); ok && strings.TrimSpace(raw) != "" {
		apiURL = strings.TrimRight(strings.TrimSpace(raw), "/")
	}

	redisAddr, _ := source.Lookup("REDIS_ADDR")
	redisAddr = strings.TrimSpace(redisAddr)

	otelEndpoint, _ := source.Lookup("OTEL_EXPORTER_OTLP_ENDPOINT")
	otelEndpoint = strings.TrimSpace(otelEndpoint)

	kafkaBrokers := parseList(source, "KAFKA_BROKERS")
	kafkaTopic, ok := source.Lookup("KAFKA_TOPIC")
	if !ok || kafkaTopic == "" {
		kafkaTopic = "ethcrawler-lookups"
	}
	kafkaGroupID, ok := source.Lookup("KAFKA_GROUP_ID")
	if !ok || kafkaGroupID == "" {
		kafkaGroupID = "ethcrawler-audit"
	}

	logLevel, _ := source.Lookup("LOG_LEVEL")
	logFormat, _ := source.Lookup("LOG_FORMAT")
	logFormat = strings.ToLower(strings.TrimSpace(logFormat))
	switch logFormat {
	case "":
		logFormat = "text"
	case "text", "json":
	default:
		return Config{}, fmt.Errorf("invalid LOG_FORMAT: %q is not one of text, json", logFormat)
	}
	logFile, _ := source.Lookup("LOG_FILE")
	logMaxSize, err := parseUintEnv(source, "LOG_MAX_SIZE_MB", 100)
	if err != nil {
		return Config{}, err
	}
	logMaxBackups, err := parseUintEnv(source, "LOG_MAX_BACKUPS", 3)
	if err != nil {
		return Config{}, err
	}

	return Config{
		ExplorerURL:       explorerURL,
		ExplorerAPIKey:    apiKey,
		ExplorerTimeout:   timeout,
		ExplorerRateLimit: int(rateLimit),
		HTTPAddr:          httpAddr,
		APIURL:            apiURL,
		RedisAddr:         redisAddr,
		OtelEndpoint:      otelEndpoint,
		KafkaBrokers:      kafkaBrokers,
		KafkaTopic:        kafkaTopic,
		KafkaGroupID:      kafkaGroupID,
		LogLevel:          strings.TrimSpace(logLevel),
		LogFormat:         logFormat,
		LogFile:           strings.TrimSpace(logFile),
		LogMaxSizeMB:      int(logMaxSize),
		LogMaxBackups:     int(logMaxBackups),
	}, nil
}

// Redacted returns a copy that is safe to log.
func (c Config) Redacted() Config {
	out := c
	if out.ExplorerAPIKey != "" {
		out.ExplorerAPIKey = "***"
	}
	out.KafkaBrokers = append([]string(nil), c.KafkaBrokers...)
	return out
}

func parseUintEnv(source EnvSource, key string, defaultValue uint64) (uint64, error) {
	raw, ok := source.Lookup(key)
	if !ok || raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func parseDurationEnv(source EnvSource, key string, defaultValue time.Duration) (time.Duration, error) {
	raw, ok := source.Lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return defaultValue, nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func parseList(source EnvSource, key string) []string {
	raw, ok := source.Lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}
	var values []string
	for _, item := range strings.Split(raw, ",") {
		value := strings.TrimSpace(item)
		if value == "" {
			continue
		}
		values = append(values, value)
	}
	return values
}
