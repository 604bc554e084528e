package config

import (
	"fmt"
	"os"
	"time"
	_ "time/tzdata" // exchange zones must resolve on minimal images

	"SessionOverlay/pkg/util"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Log         struct {
		Level      string `yaml:"level"`
		Format     string `yaml:"format"`
		Output     string `yaml:"output"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxAgeDays int    `yaml:"max_age_days"`
	} `yaml:"log"`
	Server struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		AllowOrigins    []string      `yaml:"allow_origins"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Broker struct {
		Type string `yaml:"type"` // memory or kafka
	} `yaml:"broker"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		Table            string        `yaml:"table"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Hub struct {
		Timeframes      []string      `yaml:"timeframes"`
		PollInterval    time.Duration `yaml:"poll_interval"`
		IngestBurst     int           `yaml:"ingest_burst"`
		IngestPerSecond float64       `yaml:"ingest_per_second"`
		SnapshotTTL     time.Duration `yaml:"snapshot_ttl"`
		HistoryCacheTTL time.Duration `yaml:"history_cache_ttl"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		FlowDir         string        `yaml:"flow_dir"`
	} `yaml:"hub"`
	Viewer struct {
		Port           int           `yaml:"port"`
		HubURL         string        `yaml:"hub_url"`
		FeedURL        string        `yaml:"feed_url"`
		Symbol         string        `yaml:"symbol"`
		Timeframe      string        `yaml:"timeframe"`
		HistoryWindow  time.Duration `yaml:"history_window"`
		RequestTimeout time.Duration `yaml:"request_timeout"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
		Width          int           `yaml:"width"`
		Height         int           `yaml:"height"`
		VisibleBars    int           `yaml:"visible_bars"`
	} `yaml:"viewer"`
	Exchange struct {
		TimeZone       string        `yaml:"time_zone"`
		SessionOpen    time.Duration `yaml:"session_open"`
		SessionClose   time.Duration `yaml:"session_close"`
		FallbackClose  time.Duration `yaml:"fallback_close"`
		ZoneMargin     float64       `yaml:"zone_margin"`
		PricePrecision int32         `yaml:"price_precision"`
	} `yaml:"exchange"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML, fills defaults, and validates.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.overrideFromEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) overrideFromEnv(getenv func(string) string) {
	if v := getenv("BROKER"); v != "" {
		c.Broker.Type = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = util.SplitList(v)
	}
	if v := getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := getenv("HUB_URL"); v != "" {
		c.Viewer.HubURL = v
	}
	if v := getenv("FEED_URL"); v != "" {
		c.Viewer.FeedURL = v
	}
	if v := getenv("SYMBOL"); v != "" {
		c.Viewer.Symbol = v
	}
	if v := getenv("TIMEFRAME"); v != "" {
		c.Viewer.Timeframe = v
	}
	if v := getenv("PORT"); v != "" {
		c.Server.Port = util.ParseIntDefault(v, c.Server.Port)
	}
	if v := getenv("ALLOW_ORIGINS"); v != "" {
		c.Server.AllowOrigins = util.SplitList(v)
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Broker.Type == "" {
		c.Broker.Type = "memory"
	}
	if c.ClickHouse.Table == "" {
		c.ClickHouse.Table = "bars"
	}
	if len(c.Hub.Timeframes) == 0 {
		c.Hub.Timeframes = []string{"M1", "M5", "M15", "M30", "H1"}
	}
	if c.Hub.PollInterval == 0 {
		c.Hub.PollInterval = time.Second
	}
	if c.Hub.IngestBurst == 0 {
		c.Hub.IngestBurst = 20
	}
	if c.Hub.IngestPerSecond == 0 {
		c.Hub.IngestPerSecond = 5
	}
	if c.Hub.SnapshotTTL == 0 {
		c.Hub.SnapshotTTL = 24 * time.Hour
	}
	if c.Hub.HistoryCacheTTL == 0 {
		c.Hub.HistoryCacheTTL = 30 * time.Second
	}
	if c.Hub.WriteTimeout == 0 {
		c.Hub.WriteTimeout = 5 * time.Second
	}
	if c.Hub.FlowDir == "" {
		c.Hub.FlowDir = "data"
	}
	if c.Viewer.Port == 0 {
		c.Viewer.Port = 8100
	}
	if c.Viewer.Timeframe == "" {
		c.Viewer.Timeframe = "M1"
	}
	if c.Viewer.HistoryWindow == 0 {
		c.Viewer.HistoryWindow = 24 * time.Hour
	}
	if c.Viewer.RequestTimeout == 0 {
		c.Viewer.RequestTimeout = 10 * time.Second
	}
	if c.Viewer.ReconnectDelay == 0 {
		c.Viewer.ReconnectDelay = 3 * time.Second
	}
	if c.Viewer.PingInterval == 0 {
		c.Viewer.PingInterval = 30 * time.Second
	}
	if c.Viewer.Width == 0 {
		c.Viewer.Width = 1280
	}
	if c.Viewer.Height == 0 {
		c.Viewer.Height = 720
	}
	if c.Viewer.VisibleBars == 0 {
		c.Viewer.VisibleBars = 240
	}
	if c.Exchange.TimeZone == "" {
		c.Exchange.TimeZone = "America/Sao_Paulo"
	}
	if c.Exchange.SessionOpen == 0 {
		c.Exchange.SessionOpen = 9 * time.Hour
	}
	if c.Exchange.SessionClose == 0 {
		c.Exchange.SessionClose = 18*time.Hour + 30*time.Minute
	}
	if c.Exchange.FallbackClose == 0 {
		c.Exchange.FallbackClose = 18 * time.Hour
	}
	if c.Exchange.ZoneMargin == 0 {
		c.Exchange.ZoneMargin = 2
	}
	if c.Exchange.PricePrecision == 0 {
		c.Exchange.PricePrecision = 2
	}
}

// Location loads the exchange time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Exchange.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("exchange.time_zone: %w", err)
	}
	return loc, nil
}

var validTimeframes = map[string]bool{"M1": true, "M5": true, "M15": true, "M30": true, "H1": true}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Broker.Type != "memory" && c.Broker.Type != "kafka" {
		return fmt.Errorf("broker.type must be 'memory' or 'kafka', got '%s'", c.Broker.Type)
	}
	if c.Broker.Type == "kafka" {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers cannot be empty when broker.type is kafka")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("kafka.topic is required when broker.type is kafka")
		}
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}
	for _, tf := range c.Hub.Timeframes {
		if !validTimeframes[tf] {
			return fmt.Errorf("hub.timeframes: unsupported timeframe '%s'", tf)
		}
	}
	if !validTimeframes[c.Viewer.Timeframe] {
		return fmt.Errorf("viewer.timeframe: unsupported timeframe '%s'", c.Viewer.Timeframe)
	}
	if c.Exchange.SessionClose <= c.Exchange.SessionOpen {
		return fmt.Errorf("exchange.session_close must be after session_open")
	}
	if c.Exchange.PricePrecision < 0 {
		return fmt.Errorf("exchange.price_precision cannot be negative")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}
