package app

import (
	"context"
	"time"

	"chainchat/go-backend/pkg/models"
)

// LedgerGateway is the contract the orchestration core requires of the
// chat contract client. Session ids are opaque strings assigned by the
// ledger at creation time.
type LedgerGateway interface {
	StartChat(ctx context.Context, message string) (sessionID string, err error)
	AddMessage(ctx context.Context, sessionID, message string) error
	ReadLog(ctx context.Context, sessionID string) ([]models.Turn, error)
}

const (
	DefaultPollInterval = 2 * time.Second
	DefaultPollAttempts = 30
	SendTimeout         = 5 * time.Second
)
