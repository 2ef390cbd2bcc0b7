package domain

import (
	"time"

	id "profile-service/pkg/domain"
)

type AuditAction string

const (
	AuditCreate AuditAction = "create"
	AuditUpdate AuditAction = "update"
	AuditVerify AuditAction = "verify"
	AuditEnrich AuditAction = "enrich"
	AuditDelete AuditAction = "delete"
)

func (a AuditAction) IsValid() bool {
	switch a {
	case AuditCreate, AuditUpdate, AuditVerify, AuditEnrich, AuditDelete:
		return true
	}
	return false
}

// AuditEntry is an immutable record of one change to a profile or one of its
// children. Entries reference the profile by ID only and outlive it.
type AuditEntry struct {
	ID            id.AuditEntryID `json:"id"`
	Sequence      uint64          `json:"sequence"`
	ProfileID     id.ProfileID    `json:"profile_id"`
	Action        AuditAction     `json:"action"`
	ActorID       string          `json:"actor_id"`
	ActorRole     string          `json:"actor_role"`
	FieldName     string          `json:"field_name,omitempty"`
	FromValue     any             `json:"from_value,omitempty"`
	ToValue       any             `json:"to_value,omitempty"`
	Reason        string          `json:"reason,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}
