package model

import (
	"time"

	"github.com/google/uuid"
)

// Channel is the delivery medium for a scheduled message.
type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelVoice Channel = "voice"
)

// Valid reports whether c is one of the supported channels.
func (c Channel) Valid() bool {
	return c == ChannelSMS || c == ChannelVoice
}

// Status is the lifecycle state of a scheduled message.
//
// A message starts as pending and transitions exactly once, to sent,
// failed or cancelled. Terminal states never transition again.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether s is a terminal lifecycle state.
func (s Status) Terminal() bool {
	return s == StatusSent || s == StatusFailed || s == StatusCancelled
}

// ScheduledMessage represents a message a user scheduled for future delivery.
type ScheduledMessage struct {
	ID          uuid.UUID `json:"id"`
	OwnerID     string    `json:"ownerId"`     // every query and mutation is scoped to this
	ContactName string    `json:"contactName"` // display-only label
	Content     string    `json:"content"`     // delivered verbatim
	Destination string    `json:"destination"` // phone number, pre-validated by the caller
	ScheduledAt time.Time `json:"scheduledAt"`
	Channel     Channel   `json:"channel"`
	Status      Status    `json:"status"`
	ProviderRef string    `json:"providerRef,omitempty"` // provider-assigned id, diagnostics only
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
