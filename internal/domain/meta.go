// Package domain defines the customer profile aggregate: the Profile root and
// the Address, KYCWorkflow, Document, Consent, Enrichment and AuditEntry
// records it owns or is referenced by.
//
// Entities carry their own transition rules (Can*/Apply* pairs). Stores persist
// them; services sequence them.
package domain

import "time"

// Meta holds bookkeeping timestamps shared by every mutable entity.
type Meta struct {
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Metadata exposes the embedded Meta to the store.
func (m *Meta) Metadata() *Meta {
	return m
}

// IsDeleted reports whether the entity has been soft-deleted.
func (m Meta) IsDeleted() bool {
	return m.DeletedAt != nil
}

// Actor roles recorded on audit entries.
const (
	ActorCustomer = "customer"
	ActorSystem   = "system"
	ActorMaker    = "maker"
	ActorChecker  = "checker"
	ActorOfficer  = "officer"
)
