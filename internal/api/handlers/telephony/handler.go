package telephony

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/exitpal/exitpal/internal/api/respond"
	"github.com/exitpal/exitpal/internal/model"
)

const (
	defaultVoiceText = "This is a call from ExitPal."
	voiceSignoff     = "This is an automated call from ExitPal."
	nccoSignoff      = "This call was scheduled through ExitPal."
)

//go:generate mockgen -source=handler.go -destination=../../../mocks/api/handlers/telephony/mock.go -package=mocks
type sendService interface {
	SendDirect(ctx context.Context, channel model.Channel, to, content, from string) (string, error)
}

// Handler serves the immediate (non-scheduled) send endpoints and the voice
// content generators the telephony providers fetch during call setup.
type Handler struct {
	service   sendService
	validator *validator.Validate
}

func NewHandler(s sendService, v *validator.Validate) *Handler {
	return &Handler{service: s, validator: v}
}

// SendSMSRequest is the JSON body of POST /api/send-sms.
type SendSMSRequest struct {
	To   string `json:"to" validate:"required"`
	Body string `json:"body" validate:"required"`
	From string `json:"from"`
}

// SendVoiceRequest is the JSON body of POST /api/send-voice.
type SendVoiceRequest struct {
	To      string `json:"to" validate:"required"`
	Message string `json:"message" validate:"required"`
	From    string `json:"from"`
}

// SendSMS handles POST /api/send-sms: one immediate text, nothing persisted.
func (h *Handler) SendSMS(c *ginext.Context) {
	var req SendSMSRequest
	if !h.decode(c, &req) {
		return
	}

	ref, err := h.service.SendDirect(c.Request.Context(), model.ChannelSMS, req.To, req.Body, req.From)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("to", req.To).Msg("failed to send sms")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("failed to send SMS"))
		return
	}

	respond.OK(c.Writer, map[string]any{"providerRef": ref})
}

// SendVoice handles POST /api/send-voice: one immediate call.
func (h *Handler) SendVoice(c *ginext.Context) {
	var req SendVoiceRequest
	if !h.decode(c, &req) {
		return
	}

	ref, err := h.service.SendDirect(c.Request.Context(), model.ChannelVoice, req.To, req.Message, req.From)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("to", req.To).Msg("failed to place voice call")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("failed to initiate voice call"))
		return
	}

	respond.OK(c.Writer, map[string]any{"providerRef": ref})
}

// TwiML handles GET /api/twiml?message=. Twilio fetches this URL when the
// callee answers and speaks the returned document.
func (h *Handler) TwiML(c *ginext.Context) {
	message := c.Query("message")
	if message == "" {
		message = defaultVoiceText
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.WriteString("<Response>\n  <Say>")
	_ = xml.EscapeText(&buf, []byte(message))
	buf.WriteString("</Say>\n  <Pause length=\"1\"/>\n  <Say>")
	_ = xml.EscapeText(&buf, []byte(voiceSignoff))
	buf.WriteString("</Say>\n</Response>")

	c.Writer.Header().Set("Content-Type", "application/xml")
	c.Writer.WriteHeader(http.StatusOK)
	_, _ = c.Writer.Write(buf.Bytes())
}

// NCCO handles GET /api/ncco?message=, the Vonage equivalent of TwiML: a
// JSON array of call control objects.
func (h *Handler) NCCO(c *ginext.Context) {
	message := c.Query("message")
	if message == "" {
		message = defaultVoiceText
	}

	ncco := []map[string]string{
		{"action": "talk", "text": message, "voiceName": "Amy"},
		{"action": "talk", "text": nccoSignoff, "voiceName": "Amy"},
	}

	c.Writer.Header().Set("Content-Type", "application/json")
	c.Writer.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(c.Writer).Encode(ncco)
}

func (h *Handler) decode(c *ginext.Context, req any) bool {
	if err := json.NewDecoder(c.Request.Body).Decode(req); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to decode request body")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid request body"))
		return false
	}

	if err := h.validator.Struct(req); err != nil {
		zlog.Logger.Warn().Err(err).Msg("failed to validate request body")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("validation error: %s", err.Error()))
		return false
	}

	return true
}
