package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionSpend       AuditAction = "SPEND"
	AuditActionClaimReward AuditAction = "CLAIM_REWARD"
	AuditActionPurchase    AuditAction = "PURCHASE"
	AuditActionCredit      AuditAction = "CREDIT"
	AuditActionRunJob      AuditAction = "RUN_JOB"
)

// AuditLog records a single audited write against the ledger API.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	ActorID      string      `json:"actor_id,omitempty"` // User id or internal client id
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}
