package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func defaultsViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	applyDefaults(v)
	v.Set("data_dir", t.TempDir())
	return v
}

func TestCheckConfigValidityValid(t *testing.T) {
	v := defaultsViper(t)
	if err := CheckConfigValidity(v); err != nil {
		t.Fatalf("expected defaults to be valid, got %v", err)
	}

	v.Set("webhook.url", "https://hooks.example.com/chat")
	v.Set("tls.domain", "chat.example.com")
	v.Set("http3.enabled", true)
	v.Set("db_url", "mem://")
	if err := CheckConfigValidity(v); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestCheckConfigValidityInvalid(t *testing.T) {
	v := viper.New()
	v.Set("data_dir", "")
	v.Set("http_addr", "8080")
	v.Set("db_url", "postgres://x")
	v.Set("webhook.url", "not a url")
	v.Set("webhook.timeout", "0s")
	v.Set("rate.per_minute", 0)
	v.Set("rate.burst", 0)
	v.Set("rate.client_burst", -1)
	v.Set("tls.domain", "chat.example.com")
	v.Set("tls.cert_file", "cert.pem")
	v.Set("log.level", "loud")
	v.Set("log.format", "xml")
	v.Set("widget.primary_color", "blue")
	v.Set("widget.layout", "sidebar")

	err := CheckConfigValidity(v)
	if err == nil {
		t.Fatalf("expected error for invalid config")
	}

	msg := err.Error()
	expected := []string{
		"data_dir is required",
		"http_addr \"8080\" is not host:port",
		"db_url \"postgres://x\" must start with sqlite:// or mem://",
		"webhook.url \"not a url\" must be an http(s) URL",
		"webhook.timeout must be a positive duration",
		"rate.per_minute must be greater than 0",
		"rate.burst must be greater than 0",
		"rate.client_per_minute must be greater than 0",
		"rate.client_burst must be greater than 0",
		"tls.cert_file and tls.key_file must be set together",
		"tls.domain and tls.cert_file are mutually exclusive",
		"log.level \"loud\"",
		"log.format \"xml\"",
		"widget.primary_color",
		"widget.layout",
	}
	for _, want := range expected {
		if !strings.Contains(msg, want) {
			t.Fatalf("expected error to contain %q, got %q", want, msg)
		}
	}
}

func TestHTTP3RequiresTLS(t *testing.T) {
	v := defaultsViper(t)
	v.Set("http3.enabled", true)
	err := CheckConfigValidity(v)
	if err == nil || !strings.Contains(err.Error(), "http3.enabled requires") {
		t.Fatalf("expected http3 error, got %v", err)
	}
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := "http_addr = \":9000\"\n[widget]\nchat_title = \"From file\"\nlayout = \"inline\"\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ORBITCHAT_WIDGET_CHAT_TITLE", "From env")
	t.Setenv("ORBITCHAT_WIDGET_ALLOWED_ORIGINS", "https://a.example, https://b.example,")

	v := viper.New()
	v.SetConfigFile(path)
	if err := Load(context.Background(), v); err != nil {
		t.Fatalf("load: %v", err)
	}

	if got := v.GetString("http_addr"); got != ":9000" {
		t.Fatalf("http_addr = %q, want file value", got)
	}
	if got := v.GetString("widget.chat_title"); got != "From env" {
		t.Fatalf("chat_title = %q, want env value", got)
	}
	if got := v.GetString("widget.layout"); got != "inline" {
		t.Fatalf("layout = %q, want file value", got)
	}
	if got := v.GetString("widget.primary_color"); got != "#0081FF" {
		t.Fatalf("primary_color = %q, want default", got)
	}
	origins := v.GetStringSlice("widget.allowed_origins")
	if len(origins) != 2 || origins[0] != "https://a.example" || origins[1] != "https://b.example" {
		t.Fatalf("allowed_origins = %v", origins)
	}
}

func TestLoadMissingFileIsFine(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", "/srv/data")
	v := viper.New()
	if err := Load(context.Background(), v); err != nil {
		t.Fatalf("load without file: %v", err)
	}
	if got := v.GetString("data_dir"); got != filepath.Join("/srv/data", "orbitchat") {
		t.Fatalf("data_dir = %q", got)
	}
}

func TestLoadBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("http_addr = \n[[["), 0o600); err != nil {
		t.Fatal(err)
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := Load(context.Background(), v); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestResolveDBURL(t *testing.T) {
	v := viper.New()
	v.Set("data_dir", "/var/lib/orbitchat")
	if got := ResolveDBURL(v); got != "sqlite:///var/lib/orbitchat/orbitchat.db" {
		t.Fatalf("ResolveDBURL = %q", got)
	}
	v.Set("db_url", "mem://")
	if got := ResolveDBURL(v); got != "mem://" {
		t.Fatalf("ResolveDBURL = %q", got)
	}
}

func TestRenderDefaultTOMLRoundTrip(t *testing.T) {
	out := RenderDefaultTOML()
	if !strings.HasPrefix(out, "# orbitchat configuration (TOML)") {
		t.Fatalf("unexpected header: %q", out[:40])
	}
	for _, want := range []string{"[widget]", "primary_color = \"#0081FF\"", "[rate]", "per_minute = 30", "allowed_origins = []"} {
		if !strings.Contains(out, want) {
			t.Fatalf("rendered config missing %q", want)
		}
	}

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(out), 0o600); err != nil {
		t.Fatal(err)
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		t.Fatalf("rendered config does not parse: %v", err)
	}
	if got := v.GetString("widget.layout"); got != "floating" {
		t.Fatalf("layout = %q", got)
	}
}

func TestRenderDefaultTOMLTypes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(RenderDefaultTOML()), 0o600); err != nil {
		t.Fatal(err)
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		t.Fatalf("rendered config does not parse: %v", err)
	}
	if got := v.GetDuration("webhook.timeout"); got != 30*time.Second {
		t.Fatalf("webhook.timeout = %v", got)
	}
	if got := v.GetFloat64("rate.per_minute"); got != 30 {
		t.Fatalf("rate.per_minute = %v", got)
	}
	if got := v.GetInt("rate.client_burst"); got != 20 {
		t.Fatalf("rate.client_burst = %v", got)
	}
	if got := v.GetString("widget.terms_link_text"); got != "Aquí" {
		t.Fatalf("widget.terms_link_text = %q", got)
	}
}

func TestOptionLinesEscapeStrings(t *testing.T) {
	terms := `Read our "privacy" terms at C:\docs\terms`
	lines := []string{"[widget]"}
	lines = append(lines, optionLines(ConfigOption{Key: "terms_message", Default: terms, Comment: "Terms"})...)
	lines = append(lines, optionLines(ConfigOption{Key: "allowed_origins", Default: []string{`https://a"b`, "https://c"}})...)

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o600); err != nil {
		t.Fatal(err)
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		t.Fatalf("quoted values do not parse: %v\n%s", err, strings.Join(lines, "\n"))
	}
	if got := v.GetString("widget.terms_message"); got != terms {
		t.Fatalf("terms_message = %q, want %q", got, terms)
	}
	origins := v.GetStringSlice("widget.allowed_origins")
	if len(origins) != 2 || origins[0] != `https://a"b` {
		t.Fatalf("allowed_origins = %q", origins)
	}
}

func TestTOMLValueFloats(t *testing.T) {
	cases := map[float64]string{30: "30.0", 0.5: "0.5", 120: "120.0"}
	for in, want := range cases {
		if got := tomlValue(in); got != want {
			t.Fatalf("tomlValue(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestUpdateTOML(t *testing.T) {
	existing := "http_addr = \":9000\"\nlegacy = 1\n[widget]\nchat_title = \"Mine\"\n"
	out, changed := UpdateTOML(existing)
	if !changed {
		t.Fatalf("expected update to change the file")
	}
	if !strings.Contains(out, "# OUTDATED: option removed from config schema\n# legacy = 1") {
		t.Fatalf("unknown key not commented out:\n%s", out)
	}
	if !strings.Contains(out, "chat_title = \"Mine\"") {
		t.Fatalf("existing value lost:\n%s", out)
	}
	if strings.Count(out, "chat_title =") != 1 {
		t.Fatalf("existing key duplicated:\n%s", out)
	}
	if !strings.Contains(out, "# Added by config update") || !strings.Contains(out, "per_minute = 30") {
		t.Fatalf("missing defaults not appended:\n%s", out)
	}

	again, changed := UpdateTOML(RenderDefaultTOML())
	if changed {
		t.Fatalf("default config should be up to date:\n%s", again)
	}
}
