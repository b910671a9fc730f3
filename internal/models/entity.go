package models

import (
	"time"
)

// Entity is the base shape every stored resource embeds: identity assigned
// by the database, create/update timestamps, owning user and a soft-delete
// flag. Mutation always goes through the stamping methods so handlers can
// never smuggle an id, owner or timestamp in from a request body.
type Entity struct {
	ID      uint      `gorm:"primaryKey" json:"id"`
	Created time.Time `gorm:"index" json:"created"`
	Updated time.Time `json:"updated"`
	UserID  uint      `gorm:"not null;index" json:"user_id"`
	Deleted bool      `gorm:"not null;default:false" json:"-"`
}

// Now returns the stamping clock value. Truncated to microseconds so the
// updated timestamp survives a round-trip through drivers that don't keep
// nanoseconds — it doubles as the optimistic concurrency token.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// StampForCreate prepares the entity for insertion: identity cleared so the
// store assigns a fresh one, timestamps set, owner taken from the trusted
// caller identity, soft-delete cleared.
func (e *Entity) StampForCreate(ownerID uint) {
	now := Now()
	e.ID = 0
	e.Created = now
	e.Updated = now
	e.UserID = ownerID
	e.Deleted = false
}

// StampForUpdate targets an existing row and refreshes Updated. The owner is
// re-asserted from the caller identity; a PUT body can never reassign it.
func (e *Entity) StampForUpdate(id, ownerID uint) {
	e.ID = id
	e.Updated = Now()
	e.UserID = ownerID
}

// Normalize is the type-specific canonicalization point (trimming,
// sanitizing). The base entity has nothing to canonicalize.
func (e *Entity) Normalize() {}

func (e *Entity) EntityID() uint       { return e.ID }
func (e *Entity) OwnerID() uint        { return e.UserID }
func (e *Entity) UpdatedAt() time.Time { return e.Updated }
func (e *Entity) IsDeleted() bool      { return e.Deleted }
