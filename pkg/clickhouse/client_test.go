package clickhouse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBuildDSN(t *testing.T) {
	cfg := ClientConfig{
		Host:        "ch",
		Port:        9000,
		Database:    "market",
		User:        "reader",
		Password:    "p@ss",
		DialTimeout: 5 * time.Second,
	}
	WithMaxExecutionTime(30 * time.Second)(&cfg)
	dsn := buildDSN(cfg)
	assert.Equal(t, "clickhouse://reader:p%40ss@ch:9000/market?dial_timeout=5s&max_execution_time=30", dsn)
}

func TestOptions_KeepDefaults(t *testing.T) {
	cfg := defaultClientConfig()
	for _, opt := range []ClientOption{
		WithPort(0),
		WithDatabase(""),
		WithCredentials("", "secret"),
		WithTimeouts(0, 30*time.Second),
		WithMaxExecutionTime(500 * time.Millisecond),
	} {
		opt(&cfg)
	}
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "default", cfg.Database)
	assert.Equal(t, "default", cfg.User)
	assert.Equal(t, "secret", cfg.Password)
	assert.Equal(t, 5*time.Second, cfg.DialTimeout)
	assert.Equal(t, 30*time.Second, cfg.ReadTimeout)
	assert.Empty(t, cfg.Settings)
}

func TestBuildDSN_HTTP(t *testing.T) {
	dsn := buildDSN(ClientConfig{Host: "ch", Port: 8123, Database: "default", User: "default", UseHTTP: true})
	assert.Equal(t, "clickhouse://default:@ch:8123/default?protocol=http", dsn)
}
