package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/spf13/viper"
)

// CheckConfigValidity validates the loaded configuration and reports every
// problem it finds.
func CheckConfigValidity(v *viper.Viper) error {
	var errs []error

	if strings.TrimSpace(v.GetString("data_dir")) == "" {
		errs = append(errs, errors.New("data_dir is required"))
	}
	if addr := v.GetString("http_addr"); addr == "" {
		errs = append(errs, errors.New("http_addr is required"))
	} else if _, _, err := net.SplitHostPort(addr); err != nil {
		errs = append(errs, fmt.Errorf("http_addr %q is not host:port", addr))
	}
	if u := v.GetString("db_url"); u != "" && !strings.HasPrefix(u, "sqlite://") && !strings.HasPrefix(u, "mem://") {
		errs = append(errs, fmt.Errorf("db_url %q must start with sqlite:// or mem://", u))
	}

	if raw := v.GetString("webhook.url"); raw != "" {
		if u, err := url.Parse(raw); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("webhook.url %q must be an http(s) URL", raw))
		}
	}
	if v.GetDuration("webhook.timeout") <= 0 {
		errs = append(errs, errors.New("webhook.timeout must be a positive duration"))
	}

	if v.GetFloat64("rate.per_minute") <= 0 {
		errs = append(errs, errors.New("rate.per_minute must be greater than 0"))
	}
	if v.GetInt("rate.burst") <= 0 {
		errs = append(errs, errors.New("rate.burst must be greater than 0"))
	}
	if v.GetFloat64("rate.client_per_minute") <= 0 {
		errs = append(errs, errors.New("rate.client_per_minute must be greater than 0"))
	}
	if v.GetInt("rate.client_burst") <= 0 {
		errs = append(errs, errors.New("rate.client_burst must be greater than 0"))
	}

	certFile, keyFile := v.GetString("tls.cert_file"), v.GetString("tls.key_file")
	if (certFile == "") != (keyFile == "") {
		errs = append(errs, errors.New("tls.cert_file and tls.key_file must be set together"))
	}
	hasDomain := v.GetString("tls.domain") != ""
	if hasDomain && certFile != "" {
		errs = append(errs, errors.New("tls.domain and tls.cert_file are mutually exclusive"))
	}
	if v.GetBool("http3.enabled") && !hasDomain && certFile == "" {
		errs = append(errs, errors.New("http3.enabled requires tls.domain or tls.cert_file"))
	}

	switch v.GetString("log.level") {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q must be debug, info, warn or error", v.GetString("log.level")))
	}
	switch v.GetString("log.format") {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be console or json", v.GetString("log.format")))
	}

	if err := WidgetConfig(v).Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
