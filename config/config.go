package config

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/jxo-me/ddnsd/consts"
	"github.com/jxo-me/ddnsd/core/ddns"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	ConfigFilePathENV = "DDNS_CONFIG_FILE_PATH"
	EnvPrefix         = "DDNS"

	DefaultInterval       = 30 * time.Second
	DefaultTimeout        = 10 * time.Second
	DefaultConnectTimeout = 5 * time.Second
	DefaultRetryMax       = 2
	DefaultCachePath      = "/var/cache/ddns/ddns.bin"
	DefaultCacheMode      = os.FileMode(0o600)
	DefaultSourceType     = "http"
)

var ErrUnknownFormat = errors.New("unknown output format")

type Config struct {
	Name     string        `mapstructure:"name" json:"name" yaml:"name"`
	Interval time.Duration `mapstructure:"interval" json:"interval" yaml:"interval" validate:"gt=0"`
	// v4, v6
	Versions  []string         `mapstructure:"versions" json:"versions" yaml:"versions" validate:"min=1,dive,required"`
	DryRun    bool             `mapstructure:"dry_run" json:"dry_run" yaml:"dry_run"`
	Cache     CacheConfig      `mapstructure:"cache" json:"cache" yaml:"cache"`
	HTTP      HTTPConfig       `mapstructure:"http" json:"http" yaml:"http"`
	Source    SourceConfig     `mapstructure:"source" json:"source" yaml:"source"`
	Providers []ProviderConfig `mapstructure:"providers" json:"providers,omitempty" yaml:"providers,omitempty" validate:"dive"`
	Webhook   *Webhook         `mapstructure:"webhook" json:"webhook,omitempty" yaml:"webhook,omitempty"`
	Log       *LogConfig       `mapstructure:"log" json:"log,omitempty" yaml:"log,omitempty"`
	Status    *StatusConfig    `mapstructure:"status" json:"status,omitempty" yaml:"status,omitempty"`
}

// SetDefaults 默认配置
func SetDefaults(v *viper.Viper) {
	v.SetDefault("name", consts.DefaultDDNSName)
	v.SetDefault("interval", DefaultInterval)
	v.SetDefault("versions", []string{"v4"})
	v.SetDefault("dry_run", false)
	v.SetDefault("cache.path", DefaultCachePath)
	v.SetDefault("http.timeout", DefaultTimeout)
	v.SetDefault("http.connect_timeout", DefaultConnectTimeout)
	v.SetDefault("http.retry_max", DefaultRetryMax)
	v.SetDefault("source.type", DefaultSourceType)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "stderr")
}

// Load 读取配置文件, 未指定文件时只使用默认值和环境变量.
// 环境变量以 DDNS_ 开头, 层级用下划线分隔, 如 DDNS_CACHE_PATH.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config file %s", path)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IPVersions 解析 versions, 重复的会被忽略
func (c *Config) IPVersions() ([]ddns.IPVersion, error) {
	var versions []ddns.IPVersion
	seen := make(map[ddns.IPVersion]bool)
	for _, s := range c.Versions {
		v, err := ddns.ParseIPVersion(s)
		if err != nil {
			return nil, err
		}
		if !seen[v] {
			seen[v] = true
			versions = append(versions, v)
		}
	}
	return versions, nil
}

// Write 输出配置, format 为 yaml 或 json
func (c *Config) Write(w io.Writer, format string) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(c)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(c)
	}
	return errors.Wrap(ErrUnknownFormat, format)
}

// Hash identifies a configuration: equal configurations hash alike, so a
// reload that changed nothing keeps the running service.
func (c *Config) Hash() string {
	b, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// GetConfigFilePathDefault 获得默认的配置文件路径
func GetConfigFilePathDefault() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("..", ".ddns_config.yaml")
	}
	return filepath.Join(dir, ".ddns_config.yaml")
}
