package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// applyDefaults seeds Viper with defaults defined in GetConfigOptions.
// This centralizes default values and descriptions in one place.
func applyDefaults(v *viper.Viper) {
	for _, o := range GetConfigOptions() {
		v.SetDefault(o.Key, o.Default)
	}
}

// Load resolves configuration with precedence: defaults < file < env.
// The provided Viper instance is mutated with defaults, file contents, and env.
func Load(ctx context.Context, v *viper.Viper) error {
	// If SetConfigFile was provided upstream it takes precedence; these
	// search paths are harmless fallbacks.
	if v.ConfigFileUsed() == "" {
		v.SetConfigName("config")
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			v.AddConfigPath(filepath.Join(xdg, "orbitchat"))
		}
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "orbitchat"))
		}
		v.AddConfigPath(".")
	}

	applyDefaults(v)

	// A missing file is fine; a broken one is not.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return err
		}
	}

	// Environment variables: ORBITCHAT_* (highest among these sources)
	v.SetEnvPrefix("orbitchat")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if v.GetString("data_dir") == "" {
		v.Set("data_dir", defaultDataDir())
	}

	// Allow comma-separated env override for allowed_origins
	if s := strings.TrimSpace(os.Getenv("ORBITCHAT_WIDGET_ALLOWED_ORIGINS")); s != "" {
		v.Set("widget.allowed_origins", splitList(s))
	}
	return nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// defaultDataDir resolves default data dir: $XDG_DATA_HOME/orbitchat or ~/.local/share/orbitchat
func defaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "orbitchat")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "orbitchat")
}

// DefaultConfigPath resolves the standard config.toml location.
func DefaultConfigPath() string {
	xdg := os.Getenv("XDG_CONFIG_HOME")
	if xdg == "" {
		home, _ := os.UserHomeDir()
		xdg = filepath.Join(home, ".config")
	}
	return filepath.Join(xdg, "orbitchat", "config.toml")
}

type ConfigOption struct {
	Key     string
	Default any
	Comment string
}

// GetConfigOptions returns the default configuration options and their meanings.
func GetConfigOptions() []ConfigOption {
	return []ConfigOption{
		{Key: "data_dir", Default: defaultDataDir(), Comment: "Directory for local state; transcripts live in data_dir/orbitchat.db"},
		{Key: "db_url", Default: "", Comment: "Transcript store: sqlite://path or mem:// (empty = sqlite in data_dir)"},
		{Key: "http_addr", Default: ":8080", Comment: "HTTP listen address for the widget server"},

		{Key: "auth.token", Default: "", Comment: "Bearer token for transcript endpoints (empty disables them)"},

		{Key: "webhook.url", Default: "", Comment: "Webhook that receives chat envelopes and answers with plain text"},
		{Key: "webhook.timeout", Default: 30 * time.Second, Comment: "Per-request webhook timeout"},

		{Key: "widget.public_url", Default: "", Comment: "Base URL the widget calls back to (empty = same origin as widget.js)"},
		{Key: "widget.primary_color", Default: "#0081FF", Comment: "Accent color as #rgb or #rrggbb"},
		{Key: "widget.chat_title", Default: "Asistente AI", Comment: "Header title"},
		{Key: "widget.input_placeholder", Default: "Escribe tu mensaje...", Comment: "Input placeholder"},
		{Key: "widget.terms_message", Default: "Al utilizar este chat aceptas nuestra Política de Privacidad de Datos, la cual puedes consultar", Comment: "Terms notice shown above the input"},
		{Key: "widget.terms_link_text", Default: "Aquí", Comment: "Terms link label"},
		{Key: "widget.terms_link_url", Default: "https://www.google.com/", Comment: "Terms link target"},
		{Key: "widget.dark_mode", Default: false, Comment: "Start in dark mode"},
		{Key: "widget.layout", Default: "floating", Comment: "floating (bubble + window) or inline (mounted into #orbitchat)"},
		{Key: "widget.greeting", Default: "", Comment: "Optional first bot message, rendered as markdown"},
		{Key: "widget.allowed_origins", Default: []string{}, Comment: "Origins allowed to call the API (empty = any)"},

		{Key: "rate.per_minute", Default: 30.0, Comment: "Chat messages per session per minute"},
		{Key: "rate.burst", Default: 5, Comment: "Burst allowance per session"},
		{Key: "rate.client_per_minute", Default: 120.0, Comment: "Chat messages per client address per minute, whatever sessionId it sends"},
		{Key: "rate.client_burst", Default: 20, Comment: "Burst allowance per client address"},
		{Key: "rate.client_ip_header", Default: "", Comment: "Trusted proxy header carrying the client address, e.g. X-Forwarded-For (empty = connection address)"},

		{Key: "tls.domain", Default: "", Comment: "Domain for automatic certificates (CertMagic)"},
		{Key: "tls.email", Default: "", Comment: "ACME account email"},
		{Key: "tls.storage_dir", Default: "", Comment: "Certificate storage (empty = XDG cache)"},
		{Key: "tls.cert_file", Default: "", Comment: "PEM certificate for bring-your-own TLS"},
		{Key: "tls.key_file", Default: "", Comment: "PEM key for bring-your-own TLS"},

		{Key: "http3.enabled", Default: false, Comment: "Also serve HTTP/3 over QUIC (requires TLS)"},

		{Key: "log.level", Default: "info", Comment: "debug, info, warn or error"},
		{Key: "log.format", Default: "console", Comment: "console or json"},
	}
}

// ResolveDBURL returns db_url, or a sqlite URL inside data_dir when unset.
func ResolveDBURL(v *viper.Viper) string {
	if u := strings.TrimSpace(v.GetString("db_url")); u != "" {
		return u
	}
	dir := v.GetString("data_dir")
	if dir == "" {
		dir = defaultDataDir()
	}
	// Expand ~ for convenience
	if len(dir) > 0 && dir[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, dir[1:])
		}
	}
	return "sqlite://" + filepath.Join(dir, "orbitchat.db")
}
