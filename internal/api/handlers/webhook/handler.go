package webhook

import (
	"context"
	"errors"
	"net/http"

	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/exitpal/exitpal/internal/model"
	msgrepo "github.com/exitpal/exitpal/internal/repository/message"
)

const (
	smsAckTwiML = `<?xml version="1.0" encoding="UTF-8"?>
<Response>
  <Message>Thank you for your response</Message>
</Response>`

	voiceAckTwiML = `<?xml version="1.0" encoding="UTF-8"?>
<Response>
  <Say>Thank you for answering. This is a call from ExitPal.</Say>
</Response>`
)

//go:generate mockgen -source=handler.go -destination=../../../mocks/api/handlers/webhook/mock.go -package=mocks
type reconcileService interface {
	Reconcile(ctx context.Context, providerRef string) (model.ScheduledMessage, error)
}

// Handler receives the provider's delivery-status callbacks. Callbacks are
// correlated to messages by provider reference and logged; a message's
// terminal status is never rewritten from a callback.
type Handler struct {
	service reconcileService
}

func NewHandler(s reconcileService) *Handler {
	return &Handler{service: s}
}

// SMS handles POST /api/webhook/sms, the form-encoded message-status
// callback.
func (h *Handler) SMS(c *ginext.Context) {
	if err := c.Request.ParseForm(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to parse sms webhook form")
		c.Writer.WriteHeader(http.StatusBadRequest)
		return
	}

	form := c.Request.PostForm
	ref := form.Get("MessageSid")
	messageID := h.correlate(c.Request.Context(), ref)

	zlog.Logger.Info().
		Str("from", form.Get("From")).
		Str("to", form.Get("To")).
		Str("body", form.Get("Body")).
		Str("providerRef", ref).
		Str("providerStatus", form.Get("MessageStatus")).
		Str("messageId", messageID).
		Msg("sms webhook received")

	writeXML(c, smsAckTwiML)
}

// Voice handles POST /api/webhook/voice, the form-encoded call-status
// callback.
func (h *Handler) Voice(c *ginext.Context) {
	if err := c.Request.ParseForm(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to parse voice webhook form")
		c.Writer.WriteHeader(http.StatusBadRequest)
		return
	}

	form := c.Request.PostForm
	ref := form.Get("CallSid")
	messageID := h.correlate(c.Request.Context(), ref)

	zlog.Logger.Info().
		Str("from", form.Get("From")).
		Str("to", form.Get("To")).
		Str("providerRef", ref).
		Str("providerStatus", form.Get("CallStatus")).
		Str("messageId", messageID).
		Msg("voice webhook received")

	writeXML(c, voiceAckTwiML)
}

// correlate maps a provider reference back to a message id, or "" when the
// callback cannot be matched.
func (h *Handler) correlate(ctx context.Context, ref string) string {
	if ref == "" {
		return ""
	}

	matched, err := h.service.Reconcile(ctx, ref)
	if err != nil {
		if !errors.Is(err, msgrepo.ErrMessageNotFound) {
			zlog.Logger.Error().Err(err).Str("providerRef", ref).Msg("failed to correlate webhook")
		}
		return ""
	}

	return matched.ID.String()
}

func writeXML(c *ginext.Context, body string) {
	c.Writer.Header().Set("Content-Type", "application/xml")
	c.Writer.WriteHeader(http.StatusOK)
	_, _ = c.Writer.Write([]byte(body))
}
