package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// CacheConfig 上次成功发布的地址记录
type CacheConfig struct {
	Path string `mapstructure:"path" json:"path" yaml:"path" validate:"required"`
	// Mode is the octal permission of the cache file, quoted in yaml ("0600").
	Mode string `mapstructure:"mode" json:"mode,omitempty" yaml:"mode,omitempty"`
}

// FileMode parses Mode. An empty mode yields 0600.
func (c CacheConfig) FileMode() (os.FileMode, error) {
	if c.Mode == "" {
		return DefaultCacheMode, nil
	}
	m, err := strconv.ParseUint(strings.TrimPrefix(c.Mode, "0o"), 8, 32)
	if err != nil || m > 0o777 {
		return 0, errors.Errorf("cache.mode %q is not an octal permission", c.Mode)
	}
	return os.FileMode(m), nil
}

// HTTPConfig is shared by every HTTP based source, provider and hook.
type HTTPConfig struct {
	Timeout        time.Duration `mapstructure:"timeout" json:"timeout" yaml:"timeout" validate:"gte=0"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" json:"connect_timeout" yaml:"connect_timeout" validate:"gte=0"`
	RetryMax       int           `mapstructure:"retry_max" json:"retry_max" yaml:"retry_max" validate:"gte=0"`
}

// SourceConfig 获取IP的方式, type 为 http/stun/dns/interface/cmd/static
type SourceConfig struct {
	Type string `mapstructure:"type" json:"type" yaml:"type" validate:"required"`

	HTTP      *HTTPSourceConfig      `mapstructure:"http" json:"http,omitempty" yaml:"http,omitempty"`
	STUN      *STUNSourceConfig      `mapstructure:"stun" json:"stun,omitempty" yaml:"stun,omitempty"`
	DNS       *DNSSourceConfig       `mapstructure:"dns" json:"dns,omitempty" yaml:"dns,omitempty"`
	Interface *InterfaceSourceConfig `mapstructure:"interface" json:"interface,omitempty" yaml:"interface,omitempty"`
	Cmd       *CmdSourceConfig       `mapstructure:"cmd" json:"cmd,omitempty" yaml:"cmd,omitempty"`
	Static    *StaticSourceConfig    `mapstructure:"static" json:"static,omitempty" yaml:"static,omitempty"`
}

type HTTPSourceConfig struct {
	IPv4 []string `mapstructure:"ipv4" json:"ipv4,omitempty" yaml:"ipv4,omitempty" validate:"dive,url"`
	IPv6 []string `mapstructure:"ipv6" json:"ipv6,omitempty" yaml:"ipv6,omitempty" validate:"dive,url"`
}

type STUNSourceConfig struct {
	Servers []string      `mapstructure:"servers" json:"servers,omitempty" yaml:"servers,omitempty"`
	Timeout time.Duration `mapstructure:"timeout" json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

type DNSQueryConfig struct {
	Name   string `mapstructure:"name" json:"name" yaml:"name" validate:"required"`
	Server string `mapstructure:"server" json:"server" yaml:"server" validate:"required"`
	Type   string `mapstructure:"type" json:"type,omitempty" yaml:"type,omitempty" validate:"omitempty,oneof=A AAAA TXT"`
}

type DNSSourceConfig struct {
	IPv4    *DNSQueryConfig `mapstructure:"ipv4" json:"ipv4,omitempty" yaml:"ipv4,omitempty"`
	IPv6    *DNSQueryConfig `mapstructure:"ipv6" json:"ipv6,omitempty" yaml:"ipv6,omitempty"`
	Timeout time.Duration   `mapstructure:"timeout" json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

type InterfaceSourceConfig struct {
	Name string `mapstructure:"name" json:"name" yaml:"name" validate:"required"`
	// @N 取第N个地址, 其它值作为正则表达式
	Match string `mapstructure:"match" json:"match,omitempty" yaml:"match,omitempty"`
}

type CmdSourceConfig struct {
	IPv4    string        `mapstructure:"ipv4" json:"ipv4,omitempty" yaml:"ipv4,omitempty"`
	IPv6    string        `mapstructure:"ipv6" json:"ipv6,omitempty" yaml:"ipv6,omitempty"`
	Timeout time.Duration `mapstructure:"timeout" json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

type StaticSourceConfig struct {
	IPv4 string `mapstructure:"ipv4" json:"ipv4,omitempty" yaml:"ipv4,omitempty" validate:"omitempty,ipv4"`
	IPv6 string `mapstructure:"ipv6" json:"ipv6,omitempty" yaml:"ipv6,omitempty" validate:"omitempty,ipv6"`
}

// ProviderConfig DNS服务商配置, 只需填写对应 type 使用的字段
type ProviderConfig struct {
	Name    string   `mapstructure:"name" json:"name,omitempty" yaml:"name,omitempty"`
	Type    string   `mapstructure:"type" json:"type" yaml:"type" validate:"required"`
	Domains []string `mapstructure:"domains" json:"domains,omitempty" yaml:"domains,omitempty"`
	TTL     int      `mapstructure:"ttl" json:"ttl,omitempty" yaml:"ttl,omitempty" validate:"gte=0"`

	// cloudflare
	APIToken string `mapstructure:"api_token" json:"api_token,omitempty" yaml:"api_token,omitempty" validate:"required_if=Type cloudflare"`
	Zone     string `mapstructure:"zone" json:"zone,omitempty" yaml:"zone,omitempty"`
	Proxied  bool   `mapstructure:"proxied" json:"proxied,omitempty" yaml:"proxied,omitempty"`
	Comment  string `mapstructure:"comment" json:"comment,omitempty" yaml:"comment,omitempty"`

	// porkbun, godaddy
	APIKey       string `mapstructure:"api_key" json:"api_key,omitempty" yaml:"api_key,omitempty" validate:"required_if=Type porkbun,required_if=Type godaddy"`
	SecretAPIKey string `mapstructure:"secret_api_key" json:"secret_api_key,omitempty" yaml:"secret_api_key,omitempty" validate:"required_if=Type porkbun,required_if=Type godaddy"`
	APIURL       string `mapstructure:"api_url" json:"api_url,omitempty" yaml:"api_url,omitempty" validate:"omitempty,url"`

	// dyndns, namecheap
	Server   string `mapstructure:"server" json:"server,omitempty" yaml:"server,omitempty" validate:"omitempty,url"`
	Username string `mapstructure:"username" json:"username,omitempty" yaml:"username,omitempty" validate:"required_if=Type dyndns"`
	Password string `mapstructure:"password" json:"password,omitempty" yaml:"password,omitempty" validate:"required_if=Type namecheap"`

	// callback
	URL     string            `mapstructure:"url" json:"url,omitempty" yaml:"url,omitempty" validate:"required_if=Type callback"`
	Body    string            `mapstructure:"body" json:"body,omitempty" yaml:"body,omitempty"`
	Headers map[string]string `mapstructure:"headers" json:"headers,omitempty" yaml:"headers,omitempty"`

	// redis
	Addrs  []string `mapstructure:"addrs" json:"addrs,omitempty" yaml:"addrs,omitempty" validate:"required_if=Type redis,dive,hostname_port"`
	DB     int      `mapstructure:"db" json:"db,omitempty" yaml:"db,omitempty" validate:"gte=0"`
	Prefix string   `mapstructure:"prefix" json:"prefix,omitempty" yaml:"prefix,omitempty"`
}

// String 服务商名称, 未配置时使用 type
func (p *ProviderConfig) String() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Type
}

type LogConfig struct {
	Level  string `mapstructure:"level" json:"level" yaml:"level" validate:"omitempty,oneof=trace debug info warn error fatal"`
	Format string `mapstructure:"format" json:"format" yaml:"format" validate:"omitempty,oneof=text json"`
	// stderr, stdout, none or a file path
	Output   string             `mapstructure:"output" json:"output" yaml:"output"`
	Rotation *LogRotationConfig `mapstructure:"rotation" json:"rotation,omitempty" yaml:"rotation,omitempty"`
}

type LogRotationConfig struct {
	// MaxSize is the maximum size in megabytes of the log file before it gets rotated.
	MaxSize int `mapstructure:"max_size" json:"max_size" yaml:"max_size"`
	// MaxAge is the maximum number of days to retain old log files.
	MaxAge     int  `mapstructure:"max_age" json:"max_age" yaml:"max_age"`
	MaxBackups int  `mapstructure:"max_backups" json:"max_backups" yaml:"max_backups"`
	LocalTime  bool `mapstructure:"local_time" json:"local_time" yaml:"local_time"`
	Compress   bool `mapstructure:"compress" json:"compress" yaml:"compress"`
}

// StatusConfig 只读状态接口, listen 为空时不启动
type StatusConfig struct {
	Listen string `mapstructure:"listen" json:"listen" yaml:"listen" validate:"omitempty,hostname_port"`
}
