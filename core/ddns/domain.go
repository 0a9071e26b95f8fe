package ddns

import (
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/net/idna"
)

var ErrInvalidDomain = errors.New("invalid domain")

// Domain 域名实体
type Domain struct {
	DomainName   string
	SubDomain    string
	CustomParams string
}

// ParseDomain 解析域名配置
//
// Accepted forms:
//
//	www.example.com          sub domain is everything left of the last two labels
//	www:example.co.uk        explicit split, for multi-label public suffixes
//	www.example.com?ttl=60   custom query parameters for providers that take them
//
// Internationalized names are converted to their ASCII form.
func ParseDomain(s string) (Domain, error) {
	s = strings.TrimSpace(s)
	var d Domain
	if i := strings.Index(s, "?"); i >= 0 {
		s, d.CustomParams = s[:i], s[i+1:]
	}

	if i := strings.Index(s, ":"); i >= 0 {
		sub, err := toASCII(s[:i])
		if err != nil {
			return Domain{}, errors.Wrapf(ErrInvalidDomain, "%q", s)
		}
		root, err := toASCII(s[i+1:])
		if err != nil || root == "" || strings.Contains(root, ":") {
			return Domain{}, errors.Wrapf(ErrInvalidDomain, "%q", s)
		}
		d.SubDomain, d.DomainName = sub, root
		return d, nil
	}

	name, err := toASCII(s)
	if err != nil || name == "" {
		return Domain{}, errors.Wrapf(ErrInvalidDomain, "%q", s)
	}
	labels := strings.Split(name, ".")
	if len(labels) < 2 {
		return Domain{}, errors.Wrapf(ErrInvalidDomain, "%q has no parent zone", s)
	}
	d.DomainName = strings.Join(labels[len(labels)-2:], ".")
	d.SubDomain = strings.Join(labels[:len(labels)-2], ".")
	return d, nil
}

func toASCII(s string) (string, error) {
	s = strings.Trim(s, ".")
	if s == "" || s == "@" {
		return "", nil
	}
	return idna.Lookup.ToASCII(s)
}

func (d Domain) String() string {
	if d.SubDomain != "" {
		return d.SubDomain + "." + d.DomainName
	}
	return d.DomainName
}

// GetFullDomain 获得全部的，子域名
func (d Domain) GetFullDomain() string {
	if d.SubDomain != "" {
		return d.SubDomain + "." + d.DomainName
	}
	return "@" + "." + d.DomainName
}

// GetSubDomain 获得子域名，为空返回@
func (d Domain) GetSubDomain() string {
	if d.SubDomain != "" {
		return d.SubDomain
	}
	return "@"
}

// GetCustomParams not be nil
func (d Domain) GetCustomParams() url.Values {
	if d.CustomParams != "" {
		q, err := url.ParseQuery(d.CustomParams)
		if err == nil {
			return q
		}
	}
	return url.Values{}
}

// ParseDomains parses every entry of list, stopping at the first invalid one.
func ParseDomains(list []string) ([]Domain, error) {
	domains := make([]Domain, 0, len(list))
	for _, s := range list {
		d, err := ParseDomain(s)
		if err != nil {
			return nil, err
		}
		domains = append(domains, d)
	}
	return domains, nil
}
