package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/JoeShih716/go-mem-atm/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-atm/internal/app/core/idempotency"
	"github.com/JoeShih716/go-mem-atm/pkg/logger"
	"github.com/JoeShih716/go-mem-atm/pkg/mysql"
)

// DefaultPath 預設設定檔位置
const DefaultPath = "config/config.yaml"

type Config struct {
	GRPC        GRPCConfig        `yaml:"grpc"`
	HTTP        HTTPConfig        `yaml:"http"`
	Log         logger.Config     `yaml:"log"`
	Idempotency IdempotencyConfig `yaml:"idempotency"`
	Journal     JournalConfig     `yaml:"journal"`
	Accounts    []AccountSeed     `yaml:"accounts"`
	MySQL       mysql.Config      `yaml:"mysql"`
}

type GRPCConfig struct {
	Addr string `yaml:"addr"`
}

type HTTPConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// IsEnabled 未設定時預設開啟
func (h HTTPConfig) IsEnabled() bool {
	return h.Enabled == nil || *h.Enabled
}

type IdempotencyConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// JournalConfig 稽核日誌，Path 為空時不啟用
type JournalConfig struct {
	Path   string `yaml:"path"`
	Buffer int    `yaml:"buffer"`
}

// AccountSeed 啟動時建立的帳戶
type AccountSeed struct {
	ID      string `yaml:"id"`
	Balance string `yaml:"balance"`
}

// DefaultAccounts 沒有設定任何帳戶來源時使用
var DefaultAccounts = []AccountSeed{
	{ID: "1001", Balance: "500.00"},
	{ID: "1002", Balance: "1250.75"},
	{ID: "9999", Balance: "0.00"},
}

// Load 讀取設定檔
// 順序: .env -> yaml -> ATM_* 環境變數 -> 預設值
// path 不存在時只使用環境變數與預設值
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, errors.Wrap(err, "load .env")
	}

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, errors.Wrapf(err, "parse config %s", path)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return Config{}, errors.Wrapf(err, "read config %s", path)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("ATM_GRPC_ADDR"); v != "" {
		cfg.GRPC.Addr = v
	}
	if v := os.Getenv("ATM_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("ATM_HTTP_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrapf(err, "invalid ATM_HTTP_ENABLED %q", v)
		}
		cfg.HTTP.Enabled = &enabled
	}
	if v := os.Getenv("ATM_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("ATM_IDEMPOTENCY_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrapf(err, "invalid ATM_IDEMPOTENCY_TTL %q", v)
		}
		cfg.Idempotency.TTL = ttl
	}
	if v := os.Getenv("ATM_JOURNAL_PATH"); v != "" {
		cfg.Journal.Path = v
	}
	if v := os.Getenv("ATM_MYSQL_PASSWORD"); v != "" {
		cfg.MySQL.Password = v
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.GRPC.Addr == "" {
		c.GRPC.Addr = ":50051"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.Idempotency.TTL <= 0 {
		c.Idempotency.TTL = idempotency.DefaultTTL
	}
	if c.Journal.Buffer <= 0 {
		c.Journal.Buffer = 1024
	}
	if len(c.Accounts) == 0 && !c.MySQL.Enabled {
		c.Accounts = append([]AccountSeed(nil), DefaultAccounts...)
	}
	if c.MySQL.Enabled {
		c.MySQL.ApplyDefaults()
	}
}

// SeedAccounts 轉換 yaml 的帳戶設定
func (c *Config) SeedAccounts() ([]domain.Account, error) {
	accounts := make([]domain.Account, 0, len(c.Accounts))
	for _, seed := range c.Accounts {
		if seed.ID == "" {
			return nil, errors.New("account seed without id")
		}
		d, err := decimal.NewFromString(seed.Balance)
		if err != nil {
			return nil, errors.Wrapf(err, "account %s balance %q", seed.ID, seed.Balance)
		}
		balance, err := domain.MoneyFromDecimal(d)
		if err != nil || balance < 0 {
			return nil, errors.Wrapf(domain.ErrInvalidAmount, "account %s balance %q", seed.ID, seed.Balance)
		}
		accounts = append(accounts, domain.Account{ID: seed.ID, Balance: balance})
	}
	return accounts, nil
}
