package api

import (
	"strings"
	"time"
)

// Role identifies who authored a transcript message.
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// Clicked values carried in Envelope.WhatsAppIsClicked.
const (
	ClickedYes = "yes"
	ClickedNo  = "no"
)

// WhatsAppClickedMessage is the message text sent when a WhatsApp link is followed.
const WhatsAppClickedMessage = "WhatsApp link clicked"

// Envelope is the JSON body POSTed to the webhook. The webhook answers with a
// plain-text reply.
type Envelope struct {
	Message           string `json:"message"`
	SessionID         string `json:"sessionId"`
	Timestamp         string `json:"timestamp"`
	WhatsAppIsClicked string `json:"whatsAppIsClicked"`
	WhatsAppURL       string `json:"whatsappUrl,omitempty"`
}

// NewEnvelope builds a chat envelope stamped with now.
func NewEnvelope(sessionID, message string, clicked bool, now time.Time) Envelope {
	c := ClickedNo
	if clicked {
		c = ClickedYes
	}
	return Envelope{
		Message:           message,
		SessionID:         sessionID,
		Timestamp:         Timestamp(now),
		WhatsAppIsClicked: c,
	}
}

// Timestamp formats t like JavaScript's Date.toISOString.
func Timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// ChatRequest is sent by the widget to the orbitchat server.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

// ChatResponse carries the bot reply both raw and rendered.
type ChatResponse struct {
	SessionID string `json:"sessionId"`
	Reply     string `json:"reply"`
	HTML      string `json:"html"`
}

// RenderRequest asks the server to preview a markdown reply.
type RenderRequest struct {
	Markdown string `json:"markdown"`
}

// RenderResponse carries the rendered fragment.
type RenderResponse struct {
	HTML string `json:"html"`
}

// ClickRequest reports a followed WhatsApp link.
type ClickRequest struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// Message is a stored transcript line.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	HTML      string    `json:"html,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Click is a stored WhatsApp link click.
type Click struct {
	SessionID string    `json:"session_id"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

// Session summarizes what the server knows about a widget session.
type Session struct {
	ID              string    `json:"id"`
	WhatsAppClicked bool      `json:"whatsapp_clicked"`
	Messages        int       `json:"messages"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// IsWhatsAppURL reports whether url points at a WhatsApp chat link.
func IsWhatsAppURL(url string) bool {
	u := strings.ToLower(url)
	return strings.Contains(u, "wa.me/") || strings.Contains(u, "api.whatsapp.com/")
}
