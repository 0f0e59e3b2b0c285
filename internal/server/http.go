package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/blackorbit/orbitchat/internal/db"
	"github.com/blackorbit/orbitchat/internal/logging"
	"github.com/blackorbit/orbitchat/internal/render"
	"github.com/blackorbit/orbitchat/internal/webhook"
	"github.com/blackorbit/orbitchat/internal/widget"
	"github.com/blackorbit/orbitchat/pkg/api"
)

const (
	maxChatBody   = 64 << 10
	maxRenderBody = 1 << 20

	defaultTranscriptLimit = 100
)

// Webhook is the part of the webhook client the server uses.
type Webhook interface {
	Chat(ctx context.Context, sessionID, message string, clicked bool) (string, error)
	TrackWhatsApp(ctx context.Context, sessionID, url string) error
}

// Server serves the widget script and the chat API backed by a Store.
type Server struct {
	cfg     *viper.Viper
	store   db.Store
	hook    Webhook
	widget  *widget.Widget
	log     zerolog.Logger
	limits  *limiterSet
	clients *limiterSet
	ipHdr   string
	plain   *bluemonday.Policy
	origins []string
}

func newClientLimiterSet(cfg *viper.Viper) *limiterSet {
	perMinute := cfg.GetFloat64("rate.client_per_minute")
	if perMinute <= 0 {
		perMinute = defaultClientPerMinute
	}
	burst := cfg.GetInt("rate.client_burst")
	if burst <= 0 {
		burst = defaultClientBurst
	}
	return newLimiterSet(perMinute, burst)
}

func New(cfg *viper.Viper, store db.Store, hook Webhook, w *widget.Widget, log zerolog.Logger) *Server {
	return &Server{
		cfg:     cfg,
		store:   store,
		hook:    hook,
		widget:  w,
		log:     log,
		limits:  newLimiterSet(cfg.GetFloat64("rate.per_minute"), cfg.GetInt("rate.burst")),
		clients: newClientLimiterSet(cfg),
		ipHdr:   strings.TrimSpace(cfg.GetString("rate.client_ip_header")),
		plain:   bluemonday.StrictPolicy(),
		origins: cfg.GetStringSlice("widget.allowed_origins"),
	}
}

// Router returns an http.Handler with registered routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /widget.js", s.handleWidget)
	mux.HandleFunc("POST /v1/chat", s.handleChat)
	mux.HandleFunc("POST /v1/whatsapp", s.handleWhatsApp)
	mux.HandleFunc("POST /v1/render", s.handleRender)
	mux.HandleFunc("GET /v1/sessions/{id}/messages", s.auth(s.handleTranscript))
	return logging.Middleware(s.log)(s.cors(mux))
}

func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tok := strings.TrimSpace(s.cfg.GetString("auth.token"))
		got := r.Header.Get("Authorization")
		if tok == "" || !strings.HasPrefix(got, "Bearer ") ||
			subtle.ConstantTimeCompare([]byte(strings.TrimSpace(strings.TrimPrefix(got, "Bearer "))), []byte(tok)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	}
}

func (s *Server) handleWidget(w http.ResponseWriter, r *http.Request) {
	if s.widget == nil {
		writeError(w, http.StatusNotFound, "widget not configured")
		return
	}
	etag := s.widget.ETag()
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, max-age=300")
	if match := r.Header.Get("If-None-Match"); match != "" && etagMatches(match, etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	_, _ = w.Write(s.widget.Script())
}

func etagMatches(header, etag string) bool {
	for _, part := range strings.Split(header, ",") {
		p := strings.TrimSpace(part)
		if p == "*" || strings.TrimPrefix(p, "W/") == etag {
			return true
		}
	}
	return false
}

// chatError is the 502 body: the widget shows Reply in place of an answer.
type chatError struct {
	api.ChatResponse
	Error string `json:"error"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	// The client bucket is charged before a session id is minted, so
	// omitting or rotating sessionId does not dodge the limit.
	if !s.clients.allow(clientAddr(r, s.ipHdr)) {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}
	var req api.ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	sid := strings.TrimSpace(req.SessionID)
	if sid == "" {
		sid = api.NewSessionID()
	} else if !api.ValidSessionID(sid) {
		writeError(w, http.StatusBadRequest, "invalid sessionId")
		return
	}
	if !s.limits.allow(sid) {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	ctx := r.Context()
	log := zerolog.Ctx(ctx).With().Str("session", sid).Logger()

	clicked, err := s.clicked(ctx, sid)
	if err != nil {
		log.Error().Err(err).Msg("load session")
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}
	if _, err := s.store.AppendMessage(ctx, api.Message{
		SessionID: sid,
		Role:      api.RoleUser,
		Text:      msg,
		HTML:      s.plain.Sanitize(msg),
	}); err != nil {
		log.Error().Err(err).Msg("store user message")
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}

	reply, err := s.hook.Chat(ctx, sid, msg, clicked)
	if err != nil {
		log.Warn().Err(err).Msg("webhook failed")
		text := webhookErrorText(err)
		writeJSON(w, http.StatusBadGateway, chatError{
			ChatResponse: api.ChatResponse{SessionID: sid, Reply: text, HTML: render.Markdown(text)},
			Error:        err.Error(),
		})
		return
	}

	resp := api.ChatResponse{SessionID: sid, Reply: reply, HTML: render.Markdown(reply)}
	if reply != "" {
		if _, err := s.store.AppendMessage(ctx, api.Message{
			SessionID: sid,
			Role:      api.RoleBot,
			Text:      reply,
			HTML:      resp.HTML,
		}); err != nil {
			log.Error().Err(err).Msg("store bot message")
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// webhookErrorText is what the widget shows for a failed exchange:
// "Error: <status>" or "Error: <cause>".
func webhookErrorText(err error) string {
	var se *webhook.StatusError
	if errors.As(err, &se) {
		return se.Error()
	}
	return "Error: " + strings.TrimPrefix(err.Error(), "webhook: ")
}

func (s *Server) clicked(ctx context.Context, sid string) (bool, error) {
	sess, err := s.store.Session(ctx, sid)
	if errors.Is(err, db.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return sess.WhatsAppClicked, nil
}

func (s *Server) handleWhatsApp(w http.ResponseWriter, r *http.Request) {
	var req api.ClickRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !api.ValidSessionID(req.SessionID) {
		writeError(w, http.StatusBadRequest, "invalid sessionId")
		return
	}
	if !api.IsWhatsAppURL(req.URL) {
		writeError(w, http.StatusBadRequest, "url is not a WhatsApp link")
		return
	}
	ctx := r.Context()
	log := zerolog.Ctx(ctx).With().Str("session", req.SessionID).Logger()
	if err := s.store.RecordClick(ctx, api.Click{SessionID: req.SessionID, URL: req.URL}); err != nil {
		log.Error().Err(err).Msg("record click")
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}
	// Tracking is best effort; the click is already recorded.
	if err := s.hook.TrackWhatsApp(ctx, req.SessionID, req.URL); err != nil {
		log.Warn().Err(err).Msg("track whatsapp click")
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRender only takes JSON so that cross-site form posts are refused,
// and answers with JSON so the HTML is never served as a document.
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	if !isJSON(r.Header.Get("Content-Type")) {
		writeError(w, http.StatusUnsupportedMediaType, "content type must be application/json")
		return
	}
	var req api.RenderRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRenderBody)).Decode(&req); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	writeJSON(w, http.StatusOK, api.RenderResponse{HTML: render.Markdown(req.Markdown)})
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && mt == "application/json"
}

type transcript struct {
	Session  api.Session   `json:"session"`
	Messages []api.Message `json:"messages"`
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	sid := r.PathValue("id")
	limit := defaultTranscriptLimit
	if ls := strings.TrimSpace(r.URL.Query().Get("limit")); ls != "" {
		n, err := strconv.Atoi(ls)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "bad limit")
			return
		}
		limit = n
	}
	sess, err := s.store.Session(r.Context(), sid)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}
	msgs, err := s.store.ListMessages(r.Context(), sid, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}
	if msgs == nil {
		msgs = []api.Message{}
	}
	writeJSON(w, http.StatusOK, transcript{Session: sess, Messages: msgs})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

