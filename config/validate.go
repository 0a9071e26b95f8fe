package config

import (
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

var ErrInvalidConfig = errors.New("invalid config")

var (
	once     sync.Once
	validate *validator.Validate
)

func validatorInstance() *validator.Validate {
	once.Do(func() {
		validate = validator.New()
		// 错误信息使用配置文件中的字段名
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate 校验配置
func (c *Config) Validate() error {
	if err := validatorInstance().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return errors.Wrap(err, "validate config")
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, formatError(fe))
		}
		return errors.Wrap(ErrInvalidConfig, strings.Join(msgs, "; "))
	}

	if _, err := c.IPVersions(); err != nil {
		return errors.Wrap(ErrInvalidConfig, err.Error())
	}
	if _, err := c.Cache.FileMode(); err != nil {
		return errors.Wrap(ErrInvalidConfig, err.Error())
	}
	names := make(map[string]bool, len(c.Providers))
	for i := range c.Providers {
		name := c.Providers[i].String()
		if names[name] {
			return errors.Wrapf(ErrInvalidConfig, "duplicate provider %q, set a distinct name", name)
		}
		names[name] = true
	}
	return nil
}

func formatError(fe validator.FieldError) string {
	// drop the root struct name: Config.providers[0].api_token -> providers[0].api_token
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "required_if":
		return field + " is required when " + strings.Replace(fe.Param(), " ", " is ", 1)
	case "min":
		return field + " must have at least " + fe.Param() + " item(s)"
	case "gt":
		return field + " must be greater than " + fe.Param()
	case "gte":
		return field + " must not be less than " + fe.Param()
	case "oneof":
		return field + " must be one of: " + fe.Param()
	case "url":
		return field + " must be a valid url"
	case "ipv4", "ipv6":
		return field + " must be a valid " + fe.Tag() + " address"
	case "hostname_port":
		return field + " must be host:port"
	}
	return field + " failed on " + fe.Tag()
}
