/*
 * @module service/config/config
 * @description 服务配置加载，支持YAML配置文件与环境变量覆盖
 * @architecture 基础设施层 - 配置管理
 * @documentReference dev_docs/deployment.md
 * @stateFlow 默认值 -> CONFIG_FILE(YAML) -> 环境变量覆盖 -> 校验
 * @rules 环境变量优先级最高；未配置Redis/Kafka/MQTT时对应组件不启用
 * @dependencies gopkg.in/yaml.v3, github.com/spf13/cast
 * @refs service/init.go, main.go
 */

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// Config 服务配置
type Config struct {
	Server     ServerConfig     `yaml:"server" json:"server"`
	Database   DatabaseConfig   `yaml:"database" json:"database"`
	Redis      RedisConfig      `yaml:"redis" json:"redis"`
	Kafka      KafkaConfig      `yaml:"kafka" json:"kafka"`
	MQTT       MQTTConfig       `yaml:"mqtt" json:"mqtt"`
	Import     ImportConfig     `yaml:"import" json:"import"`
	Statistics StatisticsConfig `yaml:"statistics" json:"statistics"`
}

// ServerConfig HTTP服务配置
type ServerConfig struct {
	Port        string `yaml:"port" json:"port"`
	BaseContext string `yaml:"base_context" json:"base_context"`
	LogLevel    string `yaml:"log_level" json:"log_level"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	URL             string `yaml:"url" json:"-"`
	Host            string `yaml:"host" json:"host"`
	Port            int    `yaml:"port" json:"port"`
	User            string `yaml:"user" json:"user"`
	Password        string `yaml:"password" json:"-"`
	Name            string `yaml:"name" json:"name"`
	SSLMode         string `yaml:"ssl_mode" json:"ssl_mode"`
	MaxOpenConns    int    `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns" json:"max_idle_conns"`
	ListenerEnabled bool   `yaml:"listener_enabled" json:"listener_enabled"`
}

// DSN 数据库连接字符串，DATABASE_URL 优先
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=Asia/Shanghai",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// RedisConfig Redis配置，Host 为空时不启用
type RedisConfig struct {
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Password string `yaml:"password" json:"-"`
	DB       int    `yaml:"db" json:"db"`
}

// Enabled 是否配置了Redis
func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}

// Addr Redis地址
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// KafkaConfig 变更事件Kafka输出配置
type KafkaConfig struct {
	Brokers []string `yaml:"brokers" json:"brokers"`
	Topic   string   `yaml:"topic" json:"topic"`
}

// Enabled 是否配置了Kafka
func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0 && c.Topic != ""
}

// MQTTConfig 变更事件MQTT输出配置
type MQTTConfig struct {
	Broker   string `yaml:"broker" json:"broker"`
	Topic    string `yaml:"topic" json:"topic"`
	ClientID string `yaml:"client_id" json:"client_id"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"-"`
}

// Enabled 是否配置了MQTT
func (c MQTTConfig) Enabled() bool {
	return c.Broker != "" && c.Topic != ""
}

// ImportConfig 导入配置
type ImportConfig struct {
	ChunkSize   int `yaml:"chunk_size" json:"chunk_size"`
	MaxUploadMB int `yaml:"max_upload_mb" json:"max_upload_mb"`
}

// StatisticsConfig 统计配置
type StatisticsConfig struct {
	CacheTTL   time.Duration `yaml:"cache_ttl" json:"cache_ttl"`
	WarmupCron string        `yaml:"warmup_cron" json:"warmup_cron"`
	TrendDays  int           `yaml:"trend_days" json:"trend_days"`
}

// Default 默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: "8080", BaseContext: "", LogLevel: "info"},
		Database: DatabaseConfig{
			Host:         "localhost",
			Port:         5432,
			User:         "postgres",
			Password:     "postgres",
			Name:         "pvsdm",
			SSLMode:      "disable",
			MaxOpenConns: 20,
			MaxIdleConns: 5,
		},
		Redis:  RedisConfig{Port: 6379},
		Kafka:  KafkaConfig{Topic: "pvsdm.changes"},
		MQTT:   MQTTConfig{Topic: "pvsdm/changes", ClientID: "pvsdm-service"},
		Import: ImportConfig{ChunkSize: 1000, MaxUploadMB: 50},
		Statistics: StatisticsConfig{
			CacheTTL:   5 * time.Minute,
			WarmupCron: "0 */10 * * * *",
			TrendDays:  30,
		},
	}
}

// Load 加载配置：默认值，CONFIG_FILE 指定的YAML文件，再由环境变量覆盖
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("读取配置文件失败: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("解析配置文件失败: %w", err)
	}
	return nil
}

// applyEnv 环境变量覆盖
func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			if n, err := cast.ToIntE(v); err == nil {
				*dst = n
			}
		}
	}

	str("LISTEN_PORT", &c.Server.Port)
	str("BASE_CONTEXT", &c.Server.BaseContext)
	str("LOG_LEVEL", &c.Server.LogLevel)

	str("DATABASE_URL", &c.Database.URL)
	str("DB_HOST", &c.Database.Host)
	num("DB_PORT", &c.Database.Port)
	str("DB_USER", &c.Database.User)
	str("DB_PASSWORD", &c.Database.Password)
	str("DB_NAME", &c.Database.Name)
	str("DB_SSLMODE", &c.Database.SSLMode)
	num("DB_MAX_OPEN_CONNS", &c.Database.MaxOpenConns)
	num("DB_MAX_IDLE_CONNS", &c.Database.MaxIdleConns)
	if v, ok := lookup("DB_LISTENER_ENABLED"); ok && v != "" {
		c.Database.ListenerEnabled = cast.ToBool(v)
	}

	str("REDIS_HOST", &c.Redis.Host)
	num("REDIS_PORT", &c.Redis.Port)
	str("REDIS_PASSWORD", &c.Redis.Password)
	num("REDIS_DB", &c.Redis.DB)

	if v, ok := lookup("KAFKA_BROKERS"); ok && v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	str("KAFKA_TOPIC", &c.Kafka.Topic)

	str("MQTT_BROKER", &c.MQTT.Broker)
	str("MQTT_TOPIC", &c.MQTT.Topic)
	str("MQTT_CLIENT_ID", &c.MQTT.ClientID)
	str("MQTT_USERNAME", &c.MQTT.Username)
	str("MQTT_PASSWORD", &c.MQTT.Password)

	num("IMPORT_CHUNK_SIZE", &c.Import.ChunkSize)
	num("MAX_UPLOAD_SIZE_MB", &c.Import.MaxUploadMB)

	if v, ok := lookup("STATS_CACHE_TTL"); ok && v != "" {
		// 支持 "5m" 形式，纯数字按秒处理
		if n, err := cast.ToIntE(v); err == nil {
			c.Statistics.CacheTTL = time.Duration(n) * time.Second
		} else if d, err := cast.ToDurationE(v); err == nil {
			c.Statistics.CacheTTL = d
		}
	}
	str("STATS_WARMUP_CRON", &c.Statistics.WarmupCron)
	num("TREND_DAYS", &c.Statistics.TrendDays)
}

// Validate 配置校验
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("监听端口不能为空")
	}
	if c.Import.ChunkSize <= 0 {
		return fmt.Errorf("导入分块大小必须大于0: %d", c.Import.ChunkSize)
	}
	if c.Import.MaxUploadMB <= 0 {
		return fmt.Errorf("上传大小限制必须大于0: %d", c.Import.MaxUploadMB)
	}
	if c.Statistics.TrendDays < 1 {
		return fmt.Errorf("趋势天数必须大于0: %d", c.Statistics.TrendDays)
	}
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
