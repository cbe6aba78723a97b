package mysql

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gopkg.in/yaml.v3"
)

func TestConfig_DSN(t *testing.T) {
	cfg := Config{Host: "db", Port: 3307, User: "atm", Password: "secret", DBName: "ledger"}
	assert.Equal(t, "atm:secret@tcp(db:3307)/ledger?charset=utf8mb4&parseTime=True&loc=UTC", cfg.DSN())
}

func TestConfig_ApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	assert.Equal(t, 3306, cfg.Port)
	assert.Equal(t, 10, cfg.MaxOpenConns)
	assert.Equal(t, 2, cfg.MaxIdleConns)
	assert.Equal(t, 30*time.Minute, cfg.ConnMaxLifetime)
	assert.Equal(t, 10, cfg.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.RetryInterval)

	custom := Config{Port: 1, MaxRetries: 3}
	custom.ApplyDefaults()
	assert.Equal(t, 1, custom.Port)
	assert.Equal(t, 3, custom.MaxRetries)
}

func TestConfig_YAML(t *testing.T) {
	raw := `
enabled: true
host: mysql
dbname: atm
conn_max_lifetime: 5m
log_level: warn
`
	var cfg Config
	assert.NoError(t, yaml.Unmarshal([]byte(raw), &cfg))
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "mysql", cfg.Host)
	assert.Equal(t, 5*time.Minute, cfg.ConnMaxLifetime)
	assert.Equal(t, "warn", cfg.LogLevel)
}
