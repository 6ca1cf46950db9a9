package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
)

// MembershipEventType is the kind of membership change recorded in the audit log.
type MembershipEventType string

const (
	MembershipEventAdmitted    MembershipEventType = "ADMITTED"
	MembershipEventEvicted     MembershipEventType = "EVICTED"
	MembershipEventEvictFailed MembershipEventType = "EVICT_FAILED"
)

// MembershipEvent is an append-only audit entry.
type MembershipEvent struct {
	ID            uuid.UUID           `json:"id"`
	ChatID        int64               `json:"chatId"`
	UserID        int64               `json:"userId"`
	WalletAddress string              `json:"wallet"`
	EventType     MembershipEventType `json:"eventType"`
	Reason        null.String         `json:"reason"`
	CreatedAt     time.Time           `json:"createdAt"`
}
