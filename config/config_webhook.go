package config

// Webhook Webhook
type Webhook struct {
	// 支持的变量 #{ipv4Addr}=新的IPv4地址,
	// #{ipv4Result}=IPv4地址更新结果: UnChanged Failure Success,
	// #{ipv6Addr}=新的IPv6地址,
	// #{ipv6Result}=IPv6地址更新结果: UnChanged Failure Success,
	// #{result}=本次更新结果,
	// #{providers}=各服务商结果, 如 cloudflare:Success,porkbun:Failure
	URL string `mapstructure:"url" json:"url" yaml:"url" validate:"omitempty,url"`
	// 如 RequestBody 为空则为 GET 请求，否则为 POST 请求。支持的变量同上
	RequestBody string `mapstructure:"request_body" json:"request_body,omitempty" yaml:"request_body,omitempty"`
	// 一行一个Header, 如：Authorization: Bearer API_KEY
	Headers string `mapstructure:"headers" json:"headers,omitempty" yaml:"headers,omitempty"`
}
