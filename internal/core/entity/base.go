// Package entity provides base types shared by tenant documents.
package entity

import (
	"context"
	"time"

	"procura/internal/core/id"
)

// Validatable is implemented by entities that check their own invariants
// without database access.
type Validatable interface {
	Validate(ctx context.Context) error
}

// BaseDocument carries identity, audit fields and the optimistic
// concurrency counter shared by all documents.
type BaseDocument struct {
	ID id.ID `db:"id" json:"id"`

	// DocVersion is compared in every UPDATE predicate and only ever increases.
	DocVersion int `db:"doc_version" json:"doc_version"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
	CreatedBy string    `db:"created_by" json:"created_by,omitempty"`
	UpdatedBy string    `db:"updated_by" json:"updated_by,omitempty"`
}

// NewBaseDocument creates a BaseDocument with a fresh UUIDv7 and timestamps.
func NewBaseDocument(userID string) BaseDocument {
	now := time.Now().UTC()
	return BaseDocument{
		ID:         id.New(),
		DocVersion: 1,
		CreatedAt:  now,
		UpdatedAt:  now,
		CreatedBy:  userID,
		UpdatedBy:  userID,
	}
}

// Touch records a modification by userID and bumps the version.
func (b *BaseDocument) Touch(userID string) {
	b.UpdatedAt = time.Now().UTC()
	b.UpdatedBy = userID
	b.DocVersion++
}
