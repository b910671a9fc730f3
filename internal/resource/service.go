// Package resource implements the generic resource service: create, read,
// update and delete for any entity type, composed from lifecycle stamping,
// a per-type authorization hook set and a transactional gorm store. The
// service owns no state of its own; every mutation is a single commit
// attempt against the store, serialized by the updated-timestamp
// concurrency token rather than application locks.
package resource

import (
	"errors"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"restkit/internal/models"
	"restkit/internal/shape"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Config is the per-resource configuration.
type Config struct {
	// Name of the resource, used for logging.
	Name string
	// SoftDelete flags rows instead of removing them on Delete.
	SoftDelete bool
	// HideDeleted excludes soft-deleted rows from reads.
	HideDeleted bool
	// Fields is the shaping whitelist for list reads.
	Fields shape.Fields
	// MutableFields are the columns Update persists when the caller does
	// not narrow them further. Identity, owner and created are never
	// mutable regardless of this list.
	MutableFields []string

	DefaultPageSize int
	MaxPageSize     int
}

// Page is a list read result plus its pagination metadata.
type Page[T any] struct {
	Items []T `json:"items"`
	Page  int `json:"page"`
	Size  int `json:"size"`
}

// Service orchestrates CRUD for one resource type.
type Service[T any, PT EntityPtr[T]] struct {
	db    *gorm.DB
	hooks Hooks[T, PT]
	cfg   Config
	log   *logrus.Logger
}

func NewService[T any, PT EntityPtr[T]](db *gorm.DB, hooks Hooks[T, PT], cfg Config, log *logrus.Logger) *Service[T, PT] {
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = defaultPageSize
	}
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = maxPageSize
	}
	return &Service[T, PT]{db: db, hooks: hooks, cfg: cfg, log: log}
}

// DB exposes the underlying store for subsystems built on top of the
// service (comments, reactions) that need to compose extra writes into the
// same transaction.
func (s *Service[T, PT]) DB() *gorm.DB { return s.db }

// Config returns the resource configuration.
func (s *Service[T, PT]) Config() Config { return s.cfg }

// Create stamps and normalizes the payload, consults the OnCreate hook and
// persists in one transaction. The stored entity (with its fresh identity)
// is left in entity.
func (s *Service[T, PT]) Create(caller Caller, entity PT) *Error {
	entity.StampForCreate(caller.UserID)
	entity.Normalize()

	if out := s.hooks.OnCreate(caller, entity); !out.Allowed {
		return Forbidden(out.Reason)
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(entity).Error
	})
	if rerr := ClassifyCommit(err); rerr != nil {
		s.logError("create", rerr)
		return rerr
	}
	return nil
}

// Get reads a single entity by id, or NotFound if no row is visible to the
// caller.
func (s *Service[T, PT]) Get(caller Caller, id uint) (PT, *Error) {
	q := s.ReadQuery().Where("id = ?", id)

	out, q := s.hooks.OnRead(caller, q, &id)
	if !out.Allowed || q == nil {
		return nil, Forbidden(denyReason(out))
	}

	row := PT(new(T))
	err := q.First(row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, NotFound("no such resource")
	case err != nil:
		rerr := Fatal(err)
		s.logError("get", rerr)
		return nil, rerr
	}
	return row, nil
}

// List reads a shaped page: hook-rewritten base query, then filter and
// sort, then pagination, in that order.
func (s *Service[T, PT]) List(caller Caller, req shape.Request) (*Page[T], *Error) {
	q := s.ReadQuery()

	out, q := s.hooks.OnRead(caller, q, nil)
	if !out.Allowed || q == nil {
		return nil, Forbidden(denyReason(out))
	}

	q, serr := shape.ApplyFilterAndSort(req, s.cfg.Fields, q)
	if serr != nil {
		return nil, BadRequest(serr.Error())
	}

	page, size := shape.ClampPage(req, s.cfg.DefaultPageSize, s.cfg.MaxPageSize)
	q = shape.ApplyPagination(req, s.cfg.DefaultPageSize, s.cfg.MaxPageSize, q)

	var items []T
	if err := q.Find(&items).Error; err != nil {
		rerr := Fatal(err)
		s.logError("list", rerr)
		return nil, rerr
	}
	return &Page[T]{Items: items, Page: page, Size: size}, nil
}

// Update re-stamps the payload against the target id and trusted caller,
// consults OnUpdate and commits a partial write of the mutable columns
// guarded by the concurrency token. The token is the updated timestamp the
// client last saw, echoed back in the payload; a mismatch means the row
// changed (or vanished) underneath and yields Gone.
func (s *Service[T, PT]) Update(caller Caller, id uint, entity PT, fields ...string) *Error {
	expected := entity.UpdatedAt()
	entity.StampForUpdate(id, caller.UserID)
	entity.Normalize()

	if out := s.hooks.OnUpdate(caller, id, entity); !out.Allowed {
		return Forbidden(out.Reason)
	}

	cols := fields
	if len(cols) == 0 {
		cols = s.cfg.MutableFields
	}
	cols = append([]string{"updated"}, cols...)

	var rerr *Error
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if s.cfg.SoftDelete {
			var deleted int64
			if err := tx.Model(PT(new(T))).Where("id = ? AND deleted = ?", id, true).Count(&deleted).Error; err != nil {
				return err
			}
			if deleted > 0 {
				rerr = Gone("resource deleted")
				return errHalt
			}
		}

		res := tx.Model(PT(new(T))).
			Select(cols).
			Where("id = ? AND updated = ?", id, expected).
			Updates(entity)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			rerr = Gone("resource changed or no longer exists")
			return errHalt
		}
		return nil
	})
	return s.finishCommit("update", err, rerr)
}

// Delete removes the row, or flags it under soft-delete configuration.
// Deleting an already soft-deleted (or missing) row is Gone, never a
// success and never NotFound: the id once referred to a writable row.
func (s *Service[T, PT]) Delete(caller Caller, id uint) *Error {
	if out := s.hooks.OnDelete(caller, id); !out.Allowed {
		return Forbidden(out.Reason)
	}

	var rerr *Error
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var res *gorm.DB
		if s.cfg.SoftDelete {
			res = tx.Model(PT(new(T))).
				Where("id = ? AND deleted = ?", id, false).
				Updates(map[string]any{"deleted": true, "updated": models.Now()})
		} else {
			res = tx.Where("id = ?", id).Delete(PT(new(T)))
		}
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			rerr = Gone("resource already gone")
			return errHalt
		}
		return nil
	})
	return s.finishCommit("delete", err, rerr)
}

// ReadQuery is the base read query: the resource table, minus soft-deleted
// rows when the resource hides them.
func (s *Service[T, PT]) ReadQuery() *gorm.DB {
	q := s.db.Model(PT(new(T)))
	if s.cfg.HideDeleted {
		q = q.Where("deleted = ?", false)
	}
	return q
}

// denyReason guarantees a denied read still carries a caller-visible
// reason, including the hook-returned-no-query case.
func denyReason(out Outcome) string {
	if out.Reason != "" {
		return out.Reason
	}
	return "read denied"
}

// errHalt aborts a transaction whose outcome is already decided as a typed
// error rather than a store failure.
var errHalt = errors.New("resource: halt")

func (s *Service[T, PT]) finishCommit(op string, err error, rerr *Error) *Error {
	if errors.Is(err, errHalt) {
		return rerr
	}
	if cerr := ClassifyCommit(err); cerr != nil {
		s.logError(op, cerr)
		return cerr
	}
	return nil
}

func (s *Service[T, PT]) logError(op string, rerr *Error) {
	if rerr.Kind != KindFatal || s.log == nil {
		return
	}
	s.log.WithError(rerr.Err).WithFields(logrus.Fields{
		"resource": s.cfg.Name,
		"op":       op,
	}).Error("store failure")
}
