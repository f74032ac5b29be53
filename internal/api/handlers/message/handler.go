package message

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/exitpal/exitpal/internal/api/respond"
	"github.com/exitpal/exitpal/internal/config"
	"github.com/exitpal/exitpal/internal/model"
	"github.com/exitpal/exitpal/internal/notifier"
	msgrepo "github.com/exitpal/exitpal/internal/repository/message"
)

// messageService is the business logic the Handler depends on: scheduling,
// listing, status lookup, cancellation and usage reporting.
//
//go:generate mockgen -source=handler.go -destination=../../../mocks/api/handlers/message/mock.go -package=mocks
type messageService interface {
	Schedule(ctx context.Context, strategy retry.Strategy, msg model.ScheduledMessage) (model.ScheduledMessage, error)
	ListByOwner(ctx context.Context, ownerID string) ([]model.ScheduledMessage, error)
	GetStatusByID(ctx context.Context, strategy retry.Strategy, id uuid.UUID, ownerID string) (model.Status, error)
	Cancel(ctx context.Context, strategy retry.Strategy, id uuid.UUID, ownerID string) error
	Usage(ctx context.Context, ownerID string) (used, limit int, err error)
}

// Handler serves the scheduled-message endpoints, including the websocket
// stream fed by the change notifier.
type Handler struct {
	service   messageService
	notifier  notifier.Notifier
	validator *validator.Validate
	cfg       *config.Config
	upgrader  websocket.Upgrader
}

func NewHandler(
	s messageService,
	n notifier.Notifier,
	v *validator.Validate,
	cfg *config.Config,
) *Handler {
	return &Handler{
		service:   s,
		notifier:  n,
		validator: v,
		cfg:       cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ScheduleRequest is the JSON body of POST /api/schedule.
type ScheduleRequest struct {
	OwnerID     string `json:"ownerId" validate:"required"`
	ContactName string `json:"contactName" validate:"required"`
	Content     string `json:"content" validate:"required"`
	Destination string `json:"destination" validate:"required"`
	ScheduledAt string `json:"scheduledAt" validate:"required"`
	Channel     string `json:"channel" validate:"required"`
}

// Schedule handles POST /api/schedule. A scheduled time in the past is
// accepted; the message simply becomes due immediately.
func (h *Handler) Schedule(c *ginext.Context) {
	var req ScheduleRequest

	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to decode request body")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid request body"))
		return
	}

	if err := h.validator.Struct(req); err != nil {
		zlog.Logger.Warn().Err(err).Msg("failed to validate request body")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("validation error: %s", err.Error()))
		return
	}

	channel := model.Channel(req.Channel)
	if !channel.Valid() {
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("channel must be sms or voice"))
		return
	}

	scheduledAt, err := time.Parse(time.RFC3339, req.ScheduledAt)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to parse scheduledAt")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid scheduledAt format, want RFC3339"))
		return
	}

	msg := model.ScheduledMessage{
		OwnerID:     req.OwnerID,
		ContactName: req.ContactName,
		Content:     req.Content,
		Destination: req.Destination,
		ScheduledAt: scheduledAt,
		Channel:     channel,
	}

	created, err := h.service.Schedule(c.Request.Context(), h.cfg.Retry, msg)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("owner", req.OwnerID).Msg("failed to schedule message")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.Created(c.Writer, map[string]any{"messageId": created.ID})
}

// List handles GET /api/messages?ownerId= and returns the owner's messages
// ordered by scheduled time descending.
func (h *Handler) List(c *ginext.Context) {
	ownerID := c.Query("ownerId")
	if ownerID == "" {
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("ownerId is required"))
		return
	}

	messages, err := h.service.ListByOwner(c.Request.Context(), ownerID)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("owner", ownerID).Msg("failed to list messages")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	if messages == nil {
		messages = []model.ScheduledMessage{}
	}

	respond.OK(c.Writer, messages)
}

// GetStatus handles GET /api/messages/:id/status?ownerId=.
func (h *Handler) GetStatus(c *ginext.Context) {
	id, ownerID, ok := h.messageParams(c)
	if !ok {
		return
	}

	status, err := h.service.GetStatusByID(c.Request.Context(), h.cfg.Retry, id, ownerID)
	if err != nil {
		if errors.Is(err, msgrepo.ErrMessageNotFound) {
			respond.Fail(c.Writer, http.StatusNotFound, fmt.Errorf("message not found"))
			return
		}

		zlog.Logger.Error().Err(err).Str("id", id.String()).Msg("failed to get message status")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.OK(c.Writer, map[string]any{"status": status})
}

// Cancel handles DELETE /api/messages/:id?ownerId=. Only pending messages
// can be cancelled; anything else reads as not found.
func (h *Handler) Cancel(c *ginext.Context) {
	id, ownerID, ok := h.messageParams(c)
	if !ok {
		return
	}

	if err := h.service.Cancel(c.Request.Context(), h.cfg.Retry, id, ownerID); err != nil {
		if errors.Is(err, msgrepo.ErrMessageNotFound) {
			respond.Fail(c.Writer, http.StatusNotFound, fmt.Errorf("message not found"))
			return
		}

		zlog.Logger.Error().Err(err).Str("id", id.String()).Msg("failed to cancel message")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.OK(c.Writer, "message cancelled")
}

// Usage handles GET /api/usage?ownerId= and reports today's successful sends
// against the owner's plan limit.
func (h *Handler) Usage(c *ginext.Context) {
	ownerID := c.Query("ownerId")
	if ownerID == "" {
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("ownerId is required"))
		return
	}

	used, limit, err := h.service.Usage(c.Request.Context(), ownerID)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("owner", ownerID).Msg("failed to get usage")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.OK(c.Writer, map[string]any{"used": used, "limit": limit})
}

// Stream handles GET /api/messages/ws?ownerId=. It upgrades to a websocket
// and pushes the owner's full list on subscribe and after every change.
func (h *Handler) Stream(c *ginext.Context) {
	ownerID := c.Query("ownerId")
	if ownerID == "" {
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("ownerId is required"))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to upgrade websocket")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	var writeMu sync.Mutex
	unsubscribe, err := h.notifier.Subscribe(ctx, ownerID, func(list []model.ScheduledMessage) {
		writeMu.Lock()
		defer writeMu.Unlock()

		if list == nil {
			list = []model.ScheduledMessage{}
		}
		if err := conn.WriteJSON(list); err != nil {
			zlog.Logger.Error().Err(err).Str("owner", ownerID).Msg("failed to write websocket message")
			cancel()
		}
	})
	if err != nil {
		zlog.Logger.Error().Err(err).Str("owner", ownerID).Msg("failed to subscribe to changes")
		return
	}
	defer unsubscribe()

	// the read loop only exists to notice the peer going away
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Handler) messageParams(c *ginext.Context) (uuid.UUID, string, bool) {
	idStr := c.Param("id")
	id, err := uuid.Parse(idStr)
	if err != nil || id == uuid.Nil {
		zlog.Logger.Warn().Str("idStr", idStr).Msg("invalid message id")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid id"))
		return uuid.Nil, "", false
	}

	ownerID := c.Query("ownerId")
	if ownerID == "" {
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("ownerId is required"))
		return uuid.Nil, "", false
	}

	return id, ownerID, true
}
