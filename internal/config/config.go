package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config 服务配置
type Config struct {
	Service    ServiceConfig    `yaml:"service" json:"service"`
	Database   DatabaseConfig   `yaml:"database" json:"database"`
	Redis      RedisConfig      `yaml:"redis" json:"redis"`
	Kafka      KafkaConfig      `yaml:"kafka" json:"kafka"`
	TronGrid   TronGridConfig   `yaml:"trongrid" json:"trongrid"`
	Master     MasterConfig     `yaml:"master" json:"master"`
	USDT       USDTConfig       `yaml:"usdt" json:"usdt"`
	Activation ActivationConfig `yaml:"activation" json:"activation"`
	Sponsor    SponsorConfig    `yaml:"sponsor" json:"sponsor"`
	Fee        FeeConfig        `yaml:"fee" json:"fee"`
	Poll       PollConfig       `yaml:"poll" json:"poll"`
	Worker     WorkerConfig     `yaml:"worker" json:"worker"`
	Scanner    ScannerConfig    `yaml:"scanner" json:"scanner"`
	Log        LogConfig        `yaml:"log" json:"log"`
}

// ServiceConfig 服务配置
type ServiceConfig struct {
	Name     string `yaml:"name" json:"name"`
	HTTPPort int    `yaml:"http_port" json:"http_port"`
	Env      string `yaml:"env" json:"env"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host                   string `yaml:"host" json:"host"`
	Port                   int    `yaml:"port" json:"port"`
	User                   string `yaml:"user" json:"user"`
	Password               string `yaml:"password" json:"password"`
	Database               string `yaml:"database" json:"database"`
	MaxIdleConns           int    `yaml:"max_idle_conns" json:"max_idle_conns"`
	MaxOpenConns           int    `yaml:"max_open_conns" json:"max_open_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes" json:"conn_max_lifetime_minutes"`
}

// DSN 返回 postgres 连接串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.Database,
	)
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
	PoolSize int    `yaml:"pool_size" json:"pool_size"`
}

// Addr 返回 host:port
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// KafkaConfig Kafka 配置
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled" json:"enabled"`
	Brokers []string `yaml:"brokers" json:"brokers"`
}

// TronGridConfig TronGrid 接入配置
type TronGridConfig struct {
	BaseURL    string `yaml:"base_url" json:"base_url"`
	APIKey     string `yaml:"api_key" json:"api_key"`
	TimeoutSec int    `yaml:"timeout_sec" json:"timeout_sec"`
	// RateLimitPerSec 对 TronGrid 的请求速率上限 (令牌桶)
	RateLimitPerSec int `yaml:"rate_limit_per_sec" json:"rate_limit_per_sec"`
	// EnergyPriceSun 能量单价兜底值 (查询 getenergyprices 失败时使用)
	EnergyPriceSun int64 `yaml:"energy_price_sun" json:"energy_price_sun"`
	// FallbackEnergy TRC20 转账能量估算兜底值
	FallbackEnergy int64 `yaml:"fallback_energy" json:"fallback_energy"`
	// FeeLimitSafetyFactor fee_limit 安全系数
	FeeLimitSafetyFactor decimal.Decimal `yaml:"fee_limit_safety_factor" json:"fee_limit_safety_factor"`
}

// MasterConfig 主钱包配置
type MasterConfig struct {
	Address    string `yaml:"address" json:"address"`
	PrivateKey string `yaml:"private_key" json:"private_key"`
}

// USDTConfig USDT 合约配置
type USDTConfig struct {
	ContractAddress string `yaml:"contract_address" json:"contract_address"`
	Decimals        int32  `yaml:"decimals" json:"decimals"`
}

// ActivationConfig 钱包激活配置
type ActivationConfig struct {
	Enabled   bool            `yaml:"enabled" json:"enabled"`
	AmountTrx decimal.Decimal `yaml:"amount_trx" json:"amount_trx"`
}

// SponsorConfig 燃料赞助配置
type SponsorConfig struct {
	AmountTrx decimal.Decimal `yaml:"amount_trx" json:"amount_trx"`
}

// FeeConfig 手续费配置
type FeeConfig struct {
	// Percentage 平台佣金比例 (小数，0.01 = 1%)
	Percentage decimal.Decimal `yaml:"percentage" json:"percentage"`
	MinUsdt    decimal.Decimal `yaml:"min_usdt" json:"min_usdt"`
	MaxUsdt    decimal.Decimal `yaml:"max_usdt" json:"max_usdt"`
	// TrxUsdtRate TRX/USDT 汇率 (静态汇率提供者使用)
	TrxUsdtRate decimal.Decimal `yaml:"trx_usdt_rate" json:"trx_usdt_rate"`
	// NetworkStateTTLSec 网络状态缓存有效期
	NetworkStateTTLSec int `yaml:"network_state_ttl_sec" json:"network_state_ttl_sec"`
}

// PollConfig 轮询边界配置
type PollConfig struct {
	// VisibilitySec 赞助 TRX 到账可见性轮询上限
	VisibilitySec int `yaml:"visibility_sec" json:"visibility_sec"`
	// VisibilityIntervalSec 可见性轮询间隔
	VisibilityIntervalSec int `yaml:"visibility_interval_sec" json:"visibility_interval_sec"`
	// ConfirmSec 链上确认轮询上限
	ConfirmSec int `yaml:"confirm_sec" json:"confirm_sec"`
	// ConfirmIntervalSec 确认轮询间隔
	ConfirmIntervalSec int `yaml:"confirm_interval_sec" json:"confirm_interval_sec"`
}

// WorkerConfig 后台任务配置
type WorkerConfig struct {
	// PendingIntervalSec PENDING 转账处理间隔
	PendingIntervalSec int `yaml:"pending_interval_sec" json:"pending_interval_sec"`
	// ResumeIntervalSec 中断转账恢复间隔
	ResumeIntervalSec int `yaml:"resume_interval_sec" json:"resume_interval_sec"`
	// BatchSize 每批处理数量
	BatchSize int `yaml:"batch_size" json:"batch_size"`
}

// ScannerConfig 入账扫描配置
type ScannerConfig struct {
	Enabled     bool `yaml:"enabled" json:"enabled"`
	IntervalSec int  `yaml:"interval_sec" json:"interval_sec"`
	PageSize    int  `yaml:"page_size" json:"page_size"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// Load 加载配置: 默认值 → 配置文件 → 环境变量
func Load() (*Config, error) {
	cfg := defaultConfig()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	loadFromEnv(cfg)

	return cfg, nil
}

// defaultConfig 返回默认配置 (Shasta 测试网)
func defaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:     "tron-gateway",
			HTTPPort: 8080,
			Env:      "dev",
		},
		Database: DatabaseConfig{
			Host:                   "localhost",
			Port:                   5432,
			User:                   "postgres",
			Password:               "postgres",
			Database:               "tron_gateway",
			MaxIdleConns:           10,
			MaxOpenConns:           50,
			ConnMaxLifetimeMinutes: 30,
		},
		Redis: RedisConfig{
			Host:     "localhost",
			Port:     6379,
			DB:       0,
			PoolSize: 50,
		},
		Kafka: KafkaConfig{
			Enabled: false,
			Brokers: []string{"localhost:9092"},
		},
		TronGrid: TronGridConfig{
			BaseURL:              "https://api.shasta.trongrid.io",
			TimeoutSec:           10,
			RateLimitPerSec:      10,
			EnergyPriceSun:       420,
			FallbackEnergy:       31895,
			FeeLimitSafetyFactor: decimal.NewFromFloat(1.3),
		},
		USDT: USDTConfig{
			ContractAddress: "TG3XXyExBkPp9nzdajDZsozEu4BkaSJozs",
			Decimals:        6,
		},
		Activation: ActivationConfig{
			Enabled:   true,
			AmountTrx: decimal.NewFromInt(1),
		},
		Sponsor: SponsorConfig{
			AmountTrx: decimal.NewFromInt(15),
		},
		Fee: FeeConfig{
			Percentage:         decimal.NewFromFloat(0.01),
			MinUsdt:            decimal.NewFromFloat(0.5),
			MaxUsdt:            decimal.NewFromInt(50),
			TrxUsdtRate:        decimal.NewFromFloat(0.10),
			NetworkStateTTLSec: 600,
		},
		Poll: PollConfig{
			VisibilitySec:         30,
			VisibilityIntervalSec: 2,
			ConfirmSec:            300,
			ConfirmIntervalSec:    3,
		},
		Worker: WorkerConfig{
			PendingIntervalSec: 60,
			ResumeIntervalSec:  30,
			BatchSize:          50,
		},
		Scanner: ScannerConfig{
			Enabled:     false,
			IntervalSec: 30,
			PageSize:    50,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// loadFromEnv 从环境变量覆盖敏感配置
func loadFromEnv(cfg *Config) {
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.Database.Host = host
	}
	if user := os.Getenv("DB_USER"); user != "" {
		cfg.Database.User = user
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.Database.Password = password
	}
	if database := os.Getenv("DB_DATABASE"); database != "" {
		cfg.Database.Database = database
	}

	if host := os.Getenv("REDIS_HOST"); host != "" {
		cfg.Redis.Host = host
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Redis.Password = password
	}

	if enabled := os.Getenv("KAFKA_ENABLED"); enabled == "true" {
		cfg.Kafka.Enabled = true
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = []string{brokers}
	}

	if baseURL := os.Getenv("TRONGRID_BASE_URL"); baseURL != "" {
		cfg.TronGrid.BaseURL = baseURL
	}
	if apiKey := os.Getenv("TRONGRID_API_KEY"); apiKey != "" {
		cfg.TronGrid.APIKey = apiKey
	}
	if timeout := os.Getenv("TRONGRID_TIMEOUT_SEC"); timeout != "" {
		if sec, err := strconv.Atoi(timeout); err == nil && sec > 0 {
			cfg.TronGrid.TimeoutSec = sec
		}
	}

	if address := os.Getenv("MASTER_ADDRESS"); address != "" {
		cfg.Master.Address = address
	}
	if key := os.Getenv("MASTER_PRIVATE_KEY"); key != "" {
		cfg.Master.PrivateKey = key
	}

	if contract := os.Getenv("USDT_CONTRACT_ADDRESS"); contract != "" {
		cfg.USDT.ContractAddress = contract
	}
}
