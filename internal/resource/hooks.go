package resource

import (
	"time"

	"gorm.io/gorm"
)

// Caller is the acting principal, supplied explicitly on every operation.
// It comes from the identity boundary (session middleware), never from a
// request payload.
type Caller struct {
	UserID        uint
	Authenticated bool
}

// Anonymous is the caller used for unauthenticated reads.
var Anonymous = Caller{}

// Entity is what a resource type must expose to the service: the stamping
// lifecycle plus read access to the stamped fields. models.Entity provides
// all of it through embedding; types override Normalize (and stamping) as
// needed.
type Entity interface {
	StampForCreate(ownerID uint)
	StampForUpdate(id, ownerID uint)
	Normalize()
	EntityID() uint
	OwnerID() uint
	UpdatedAt() time.Time
	IsDeleted() bool
}

// Outcome is the result of an authorization hook: allowed or not, with a
// caller-visible reason on denial.
type Outcome struct {
	Allowed bool
	Reason  string
}

func Allow() Outcome {
	return Outcome{Allowed: true}
}

func Deny(reason string) Outcome {
	return Outcome{Allowed: false, Reason: reason}
}

// Hooks is the single authorization seam of the framework. Every resource
// type implements one Hooks; all business rules (ownership, visibility,
// rate limits) live here, never inside the service.
//
// OnRead additionally receives the proposed query and may return a
// narrowed or rewritten one; returning nil denies the read regardless of
// the outcome.
type Hooks[T any, PT EntityPtr[T]] interface {
	OnCreate(caller Caller, entity PT) Outcome
	OnRead(caller Caller, query *gorm.DB, id *uint) (Outcome, *gorm.DB)
	OnUpdate(caller Caller, id uint, entity PT) Outcome
	OnDelete(caller Caller, id uint) Outcome
}

// EntityPtr constrains PT to be *T implementing Entity.
type EntityPtr[T any] interface {
	*T
	Entity
}

// Base is the fail-closed default hook set: everything is denied unless
// AllowAllByDefault is flipped, so a concrete resource type has to opt in
// per operation explicitly.
type Base[T any, PT EntityPtr[T]] struct {
	AllowAllByDefault bool
}

func (b Base[T, PT]) outcome() Outcome {
	if b.AllowAllByDefault {
		return Allow()
	}
	return Deny("operation not permitted")
}

func (b Base[T, PT]) OnCreate(Caller, PT) Outcome { return b.outcome() }

func (b Base[T, PT]) OnRead(_ Caller, query *gorm.DB, _ *uint) (Outcome, *gorm.DB) {
	out := b.outcome()
	if !out.Allowed {
		return out, nil
	}
	return out, query
}

func (b Base[T, PT]) OnUpdate(Caller, uint, PT) Outcome { return b.outcome() }

func (b Base[T, PT]) OnDelete(Caller, uint) Outcome { return b.outcome() }

// OwnedBy reports whether the caller owns any row of the given id in table.
// Helper for hooks implementing ownership rules, mirroring the usual
// "may only touch your own rows" policy.
func OwnedBy(db *gorm.DB, table string, id, userID uint) bool {
	var n int64
	db.Table(table).Where("id = ? AND user_id = ?", id, userID).Count(&n)
	return n > 0
}

// FilterToOwned narrows a query to rows owned by the caller.
func FilterToOwned(query *gorm.DB, caller Caller) *gorm.DB {
	return query.Where("user_id = ?", caller.UserID)
}
