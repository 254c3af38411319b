package model

import (
	"encoding/json"
	"time"
)

// ConnectorType names one of the five supported source kinds.
type ConnectorType string

const (
	ConnectorEmailSource ConnectorType = "email-source"
	ConnectorChatSource  ConnectorType = "chat-source"
	ConnectorCloudFiles  ConnectorType = "cloud-files"
	ConnectorCodeHost    ConnectorType = "code-host"
	ConnectorWebCrawler  ConnectorType = "web-crawler"
)

// ConnectorStatus is the connector's current lifecycle state.
// Valid transitions: DISCONNECTED -> CONNECTING -> {CONNECTED, ERROR};
// CONNECTED -> SYNCING -> {CONNECTED, ERROR}. ERROR is recoverable.
type ConnectorStatus string

const (
	StatusDisconnected ConnectorStatus = "DISCONNECTED"
	StatusConnecting   ConnectorStatus = "CONNECTING"
	StatusConnected    ConnectorStatus = "CONNECTED"
	StatusSyncing      ConnectorStatus = "SYNCING"
	StatusError        ConnectorStatus = "ERROR"
)

// Connector is a tenant's configured connection to one external source.
// Invariant: exactly one active Connector per (tenant_id, type) — enforced
// by a unique partial index in the store, not here.
type Connector struct {
	ID            string          `json:"id"`
	TenantID      string          `json:"tenantId"`
	Type          ConnectorType   `json:"type"`
	Credentials   []byte          `json:"-"` // opaque, encrypted at rest
	Settings      json.RawMessage `json:"settings"`
	Status        ConnectorStatus `json:"status"`
	LastSyncCur   string          `json:"lastSyncCursor"`
	LastError     string          `json:"lastError,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// CanTransition reports whether moving from s to next is a legal
// connector state transition per the state machine in spec.md §4.2.
func (s ConnectorStatus) CanTransition(next ConnectorStatus) bool {
	switch s {
	case StatusDisconnected:
		return next == StatusConnecting
	case StatusConnecting:
		return next == StatusConnected || next == StatusError
	case StatusConnected:
		return next == StatusSyncing || next == StatusDisconnected
	case StatusSyncing:
		return next == StatusConnected || next == StatusError
	case StatusError:
		return next == StatusConnecting || next == StatusDisconnected
	}
	return false
}
