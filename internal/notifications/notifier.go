package notifications

import (
	"context"
	"log"
)

// RecordNotification describes a CRM record created from a pipeline run.
type RecordNotification struct {
	Kind      string // lead, deal or task
	RecordID  string
	SessionID string
	Intent    string
	Summary   string
	Degraded  bool // record was created by the local fallback, not the CRM
}

// Notifier fans a created-record notification out to every configured
// channel. Any channel may be nil or unconfigured; send failures are logged
// and never reach the caller.
type Notifier struct {
	discord      *Discord
	apns         *APNsClient
	deviceTokens []string
	logger       *log.Logger
}

// NewNotifier creates a notifier over the configured channels.
func NewNotifier(discord *Discord, apns *APNsClient, deviceTokens []string, logger *log.Logger) *Notifier {
	return &Notifier{
		discord:      discord,
		apns:         apns,
		deviceTokens: deviceTokens,
		logger:       logger,
	}
}

// RecordCreated notifies all channels about a new CRM record.
func (n *Notifier) RecordCreated(ctx context.Context, rec RecordNotification) {
	if n == nil {
		return
	}

	if n.discord != nil {
		n.discord.NotifyRecordCreated(ctx, rec)
	}

	if n.apns != nil && len(n.deviceTokens) > 0 {
		tokens := n.deviceTokens
		go func() {
			for _, tok := range tokens {
				if err := n.apns.SendRecordNotification(tok, rec); err != nil {
					n.logger.Printf("notifications: push failed: %v", err)
				}
			}
		}()
	}
}
