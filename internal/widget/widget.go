// Package widget builds the embeddable chat script served to third-party
// pages. Each Widget is built from an explicit Config; nothing is read from
// page globals.
package widget

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"text/template"

	"github.com/blackorbit/orbitchat/internal/render"
	"github.com/blackorbit/orbitchat/pkg/api"
)

const (
	LayoutFloating = "floating"
	LayoutInline   = "inline"
)

//go:embed widget.js.tmpl
var scriptSource string

var scriptTmpl = template.Must(template.New("widget.js").Parse(scriptSource))

var hexColor = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// Config is the visual and behavioural surface of one widget.
type Config struct {
	PublicURL        string
	PrimaryColor     string
	ChatTitle        string
	InputPlaceholder string
	TermsMessage     string
	TermsLinkText    string
	TermsLinkURL     string
	DarkMode         bool
	Layout           string
	// Greeting is markdown; it is rendered once when the widget is built.
	Greeting string
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if !hexColor.MatchString(c.PrimaryColor) {
		errs = append(errs, fmt.Errorf("widget.primary_color must be #rgb or #rrggbb, got %q", c.PrimaryColor))
	}
	switch c.Layout {
	case LayoutFloating, LayoutInline:
	default:
		errs = append(errs, fmt.Errorf("widget.layout must be %q or %q, got %q", LayoutFloating, LayoutInline, c.Layout))
	}
	if c.TermsLinkURL != "" && !isHTTPURL(c.TermsLinkURL) {
		errs = append(errs, fmt.Errorf("widget.terms_link_url must be an http(s) URL"))
	}
	if c.PublicURL != "" && !isHTTPURL(c.PublicURL) {
		errs = append(errs, fmt.Errorf("widget.public_url must be an http(s) URL"))
	}
	return errors.Join(errs...)
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// scriptConfig is the JSON object embedded in the script.
type scriptConfig struct {
	PublicURL        string `json:"publicUrl"`
	PrimaryColor     string `json:"primaryColor"`
	ChatTitle        string `json:"chatTitle"`
	InputPlaceholder string `json:"inputPlaceholder"`
	TermsMessage     string `json:"termsMessage"`
	TermsLinkText    string `json:"termsLinkText"`
	TermsLinkURL     string `json:"termsLinkUrl"`
	DarkMode         bool   `json:"darkMode"`
	Layout           string `json:"layout"`
	GreetingHTML     string `json:"greetingHtml,omitempty"`
}

// Widget is a rendered, immutable widget script.
type Widget struct {
	cfg    Config
	script []byte
	etag   string
}

// New validates cfg and renders the script.
func New(cfg Config) (*Widget, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sc := scriptConfig{
		PublicURL:        cfg.PublicURL,
		PrimaryColor:     cfg.PrimaryColor,
		ChatTitle:        cfg.ChatTitle,
		InputPlaceholder: cfg.InputPlaceholder,
		TermsMessage:     cfg.TermsMessage,
		TermsLinkText:    cfg.TermsLinkText,
		TermsLinkURL:     cfg.TermsLinkURL,
		DarkMode:         cfg.DarkMode,
		Layout:           cfg.Layout,
	}
	if cfg.Greeting != "" {
		sc.GreetingHTML = render.Markdown(cfg.Greeting)
	}
	// json.Marshal escapes <, > and &, so values cannot close the script.
	js, err := json.Marshal(sc)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := scriptTmpl.Execute(&buf, struct{ ConfigJSON string }{string(js)}); err != nil {
		return nil, fmt.Errorf("render widget script: %w", err)
	}
	return &Widget{
		cfg:    cfg,
		script: buf.Bytes(),
		etag:   `"` + api.HashBytes(buf.Bytes())[:32] + `"`,
	}, nil
}

// Config returns the configuration the widget was built from.
func (w *Widget) Config() Config { return w.cfg }

// Script returns the embeddable JavaScript.
func (w *Widget) Script() []byte { return w.script }

// ETag returns a strong validator for Script.
func (w *Widget) ETag() string { return w.etag }
