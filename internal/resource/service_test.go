package resource_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"restkit/internal/models"
	"restkit/internal/resource"
	"restkit/internal/shape"
	"restkit/internal/testutil"
)

// note is a minimal resource type exercising the service without dragging
// in any concrete resource's policies.
type note struct {
	models.Entity
	Title string `gorm:"size:120"`
	Slug  string `gorm:"size:120;uniqueIndex"`
	Body  string
}

// allowAll opts into every operation; policy tests swap in stricter hooks.
var allowAll = resource.Base[note, *note]{AllowAllByDefault: true}

// ownedNotes narrows reads to the caller's rows and denies writes on rows
// the caller does not own.
type ownedNotes struct {
	resource.Base[note, *note]
	db *gorm.DB
}

func (h *ownedNotes) OnCreate(resource.Caller, *note) resource.Outcome {
	return resource.Allow()
}

func (h *ownedNotes) OnRead(caller resource.Caller, query *gorm.DB, _ *uint) (resource.Outcome, *gorm.DB) {
	return resource.Allow(), resource.FilterToOwned(query, caller)
}

func (h *ownedNotes) OnUpdate(caller resource.Caller, id uint, _ *note) resource.Outcome {
	return h.ownerOnly(caller, id)
}

func (h *ownedNotes) OnDelete(caller resource.Caller, id uint) resource.Outcome {
	return h.ownerOnly(caller, id)
}

func (h *ownedNotes) ownerOnly(caller resource.Caller, id uint) resource.Outcome {
	if !resource.OwnedBy(h.db, "notes", id, caller.UserID) {
		return resource.Deny("not your note")
	}
	return resource.Allow()
}

func noteConfig() resource.Config {
	return resource.Config{
		Name:          "notes",
		SoftDelete:    true,
		HideDeleted:   true,
		MutableFields: []string{"title", "body"},
		Fields: shape.Fields{
			"title":   {Column: "title", Kind: shape.String, Filter: true, Sort: true},
			"created": {Column: "created", Kind: shape.Time, Filter: true, Sort: true},
		},
	}
}

func newNoteService(t *testing.T, hooks resource.Hooks[note, *note], cfg resource.Config) (*gorm.DB, *resource.Service[note, *note]) {
	t.Helper()
	gdb := testutil.OpenDB(t)
	require.NoError(t, gdb.AutoMigrate(&note{}))
	return gdb, resource.NewService[note](gdb, hooks, cfg, testutil.Logger())
}

func mustCreate(t *testing.T, svc *resource.Service[note, *note], caller resource.Caller, n *note) *note {
	t.Helper()
	require.Nil(t, svc.Create(caller, n))
	return n
}

func TestCreateAssignsFreshIdentity(t *testing.T) {
	_, svc := newNoteService(t, allowAll, noteConfig())
	caller := resource.Caller{UserID: 1, Authenticated: true}

	// Everything identity-like in the payload must be overwritten.
	n := &note{
		Entity: models.Entity{ID: 999, UserID: 777, Deleted: true},
		Title:  "first",
		Slug:   "first",
	}
	mustCreate(t, svc, caller, n)

	assert.NotZero(t, n.ID)
	assert.NotEqual(t, uint(999), n.ID)
	assert.Equal(t, uint(1), n.UserID)
	assert.False(t, n.Deleted)
	assert.True(t, n.Created.Equal(n.Updated))

	got, rerr := svc.Get(caller, n.ID)
	require.Nil(t, rerr)
	assert.Equal(t, "first", got.Title)
	assert.Equal(t, uint(1), got.UserID)
}

func TestEverythingDeniedByDefault(t *testing.T) {
	_, svc := newNoteService(t, resource.Base[note, *note]{}, noteConfig())
	caller := resource.Caller{UserID: 1, Authenticated: true}

	rerr := svc.Create(caller, &note{Title: "x", Slug: "x"})
	require.NotNil(t, rerr)
	assert.Equal(t, resource.KindForbidden, rerr.Kind)
	assert.NotEmpty(t, rerr.Reason)

	_, rerr = svc.Get(caller, 1)
	require.NotNil(t, rerr)
	assert.Equal(t, resource.KindForbidden, rerr.Kind)
	assert.NotEmpty(t, rerr.Reason, "a denied read still carries a reason")

	_, rerr = svc.List(caller, shape.Request{})
	require.NotNil(t, rerr)
	assert.Equal(t, resource.KindForbidden, rerr.Kind)

	rerr = svc.Update(caller, 1, &note{Title: "x"})
	require.NotNil(t, rerr)
	assert.Equal(t, resource.KindForbidden, rerr.Kind)

	rerr = svc.Delete(caller, 1)
	require.NotNil(t, rerr)
	assert.Equal(t, resource.KindForbidden, rerr.Kind)
}

func TestCreateDuplicateIsConflict(t *testing.T) {
	_, svc := newNoteService(t, allowAll, noteConfig())
	caller := resource.Caller{UserID: 1, Authenticated: true}

	mustCreate(t, svc, caller, &note{Title: "a", Slug: "same"})

	rerr := svc.Create(caller, &note{Title: "b", Slug: "same"})
	require.NotNil(t, rerr)
	assert.Equal(t, resource.KindConflict, rerr.Kind)
}

func TestGetMissingIsNotFound(t *testing.T) {
	_, svc := newNoteService(t, allowAll, noteConfig())

	_, rerr := svc.Get(resource.Anonymous, 4242)
	require.NotNil(t, rerr)
	assert.Equal(t, resource.KindNotFound, rerr.Kind)
}

func TestUpdateWritesOnlyMutableColumns(t *testing.T) {
	_, svc := newNoteService(t, allowAll, noteConfig())
	caller := resource.Caller{UserID: 1, Authenticated: true}

	n := mustCreate(t, svc, caller, &note{Title: "old", Slug: "keep-me", Body: "old body"})
	time.Sleep(2 * time.Millisecond) // so the new token is strictly later

	payload := &note{
		Entity: models.Entity{Updated: n.Updated, UserID: 999},
		Title:  "new",
		Slug:   "smuggled",
		Body:   "new body",
	}
	require.Nil(t, svc.Update(caller, n.ID, payload))

	got, rerr := svc.Get(caller, n.ID)
	require.Nil(t, rerr)
	assert.Equal(t, "new", got.Title)
	assert.Equal(t, "new body", got.Body)
	assert.Equal(t, "keep-me", got.Slug, "immutable column must survive the update")
	assert.Equal(t, uint(1), got.UserID, "ownership must survive the update")
	assert.True(t, got.Updated.After(n.Updated), "token must advance on every write")
	assert.True(t, got.Created.Equal(n.Created))
}

func TestUpdateExplicitFieldListNarrowsFurther(t *testing.T) {
	_, svc := newNoteService(t, allowAll, noteConfig())
	caller := resource.Caller{UserID: 1, Authenticated: true}

	n := mustCreate(t, svc, caller, &note{Title: "old", Slug: "s", Body: "old body"})

	payload := &note{Entity: models.Entity{Updated: n.Updated}, Title: "new", Body: "new body"}
	require.Nil(t, svc.Update(caller, n.ID, payload, "title"))

	got, rerr := svc.Get(caller, n.ID)
	require.Nil(t, rerr)
	assert.Equal(t, "new", got.Title)
	assert.Equal(t, "old body", got.Body)
}

func TestUpdateStaleTokenIsGone(t *testing.T) {
	_, svc := newNoteService(t, allowAll, noteConfig())
	caller := resource.Caller{UserID: 1, Authenticated: true}

	n := mustCreate(t, svc, caller, &note{Title: "v1", Slug: "s"})
	time.Sleep(2 * time.Millisecond) // so the winning write rotates the token

	// First writer wins.
	fresh := &note{Entity: models.Entity{Updated: n.Updated}, Title: "v2"}
	require.Nil(t, svc.Update(caller, n.ID, fresh))

	// Second writer still holds the v1 token.
	stale := &note{Entity: models.Entity{Updated: n.Updated}, Title: "v3"}
	rerr := svc.Update(caller, n.ID, stale)
	require.NotNil(t, rerr)
	assert.Equal(t, resource.KindGone, rerr.Kind)

	got, gerr := svc.Get(caller, n.ID)
	require.Nil(t, gerr)
	assert.Equal(t, "v2", got.Title, "the stale write must not land")
}

func TestSoftDeletedRowsAreGoneForWrites(t *testing.T) {
	_, svc := newNoteService(t, allowAll, noteConfig())
	caller := resource.Caller{UserID: 1, Authenticated: true}

	n := mustCreate(t, svc, caller, &note{Title: "t", Slug: "s"})
	require.Nil(t, svc.Delete(caller, n.ID))

	rerr := svc.Update(caller, n.ID, &note{Entity: models.Entity{Updated: n.Updated}, Title: "t2"})
	require.NotNil(t, rerr)
	assert.Equal(t, resource.KindGone, rerr.Kind)

	rerr = svc.Delete(caller, n.ID)
	require.NotNil(t, rerr)
	assert.Equal(t, resource.KindGone, rerr.Kind, "repeated delete is gone, not idempotent success")

	_, rerr = svc.Get(caller, n.ID)
	require.NotNil(t, rerr)
	assert.Equal(t, resource.KindNotFound, rerr.Kind, "hidden rows read as missing")
}

func TestHardDelete(t *testing.T) {
	cfg := noteConfig()
	cfg.SoftDelete = false
	cfg.HideDeleted = false
	gdb, svc := newNoteService(t, allowAll, cfg)
	caller := resource.Caller{UserID: 1, Authenticated: true}

	n := mustCreate(t, svc, caller, &note{Title: "t", Slug: "s"})
	require.Nil(t, svc.Delete(caller, n.ID))

	var count int64
	gdb.Model(&note{}).Where("id = ?", n.ID).Count(&count)
	assert.Zero(t, count, "hard delete removes the row")

	rerr := svc.Delete(caller, n.ID)
	require.NotNil(t, rerr)
	assert.Equal(t, resource.KindGone, rerr.Kind)
}

func TestListBadShapingIsBadRequest(t *testing.T) {
	_, svc := newNoteService(t, allowAll, noteConfig())

	_, rerr := svc.List(resource.Anonymous, shape.Request{Filters: "nope==1"})
	require.NotNil(t, rerr)
	assert.Equal(t, resource.KindBadRequest, rerr.Kind)
	assert.NotEmpty(t, rerr.Reason)
}

func TestListShapesAndPaginates(t *testing.T) {
	_, svc := newNoteService(t, allowAll, noteConfig())
	caller := resource.Caller{UserID: 1, Authenticated: true}

	for _, title := range []string{"cherry", "apple", "banana"} {
		mustCreate(t, svc, caller, &note{Title: title, Slug: title})
	}

	page, rerr := svc.List(resource.Anonymous, shape.Request{Sorts: "title", Page: 1, Size: 2})
	require.Nil(t, rerr)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "apple", page.Items[0].Title)
	assert.Equal(t, "banana", page.Items[1].Title)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 2, page.Size)

	page, rerr = svc.List(resource.Anonymous, shape.Request{Sorts: "title", Page: 2, Size: 2})
	require.Nil(t, rerr)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "cherry", page.Items[0].Title)
}

func TestReadHookNarrowsQuery(t *testing.T) {
	gdb := testutil.OpenDB(t)
	require.NoError(t, gdb.AutoMigrate(&note{}))
	svc := resource.NewService[note](gdb, &ownedNotes{db: gdb}, noteConfig(), testutil.Logger())

	alice := resource.Caller{UserID: 1, Authenticated: true}
	bob := resource.Caller{UserID: 2, Authenticated: true}

	mustCreate(t, svc, alice, &note{Title: "mine", Slug: "mine"})
	theirs := mustCreate(t, svc, bob, &note{Title: "theirs", Slug: "theirs"})

	page, rerr := svc.List(alice, shape.Request{})
	require.Nil(t, rerr)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "mine", page.Items[0].Title)

	_, rerr = svc.Get(alice, theirs.ID)
	require.NotNil(t, rerr)
	assert.Equal(t, resource.KindNotFound, rerr.Kind, "rows outside the narrowed query read as missing")
}

func TestWriteHookDenialSurfacesReason(t *testing.T) {
	gdb := testutil.OpenDB(t)
	require.NoError(t, gdb.AutoMigrate(&note{}))
	svc := resource.NewService[note](gdb, &ownedNotes{db: gdb}, noteConfig(), testutil.Logger())

	alice := resource.Caller{UserID: 1, Authenticated: true}
	bob := resource.Caller{UserID: 2, Authenticated: true}

	n := mustCreate(t, svc, alice, &note{Title: "mine", Slug: "mine"})

	rerr := svc.Update(bob, n.ID, &note{Entity: models.Entity{Updated: n.Updated}, Title: "stolen"})
	require.NotNil(t, rerr)
	assert.Equal(t, resource.KindForbidden, rerr.Kind)
	assert.Equal(t, "not your note", rerr.Reason)

	rerr = svc.Delete(bob, n.ID)
	require.NotNil(t, rerr)
	assert.Equal(t, resource.KindForbidden, rerr.Kind)
}

func TestUpdateAdvancesTokenMonotonically(t *testing.T) {
	_, svc := newNoteService(t, allowAll, noteConfig())
	caller := resource.Caller{UserID: 1, Authenticated: true}

	n := mustCreate(t, svc, caller, &note{Title: "v1", Slug: "s"})

	token := n.Updated
	for i, title := range []string{"v2", "v3", "v4"} {
		time.Sleep(2 * time.Millisecond)
		payload := &note{Entity: models.Entity{Updated: token}, Title: title}
		require.Nil(t, svc.Update(caller, n.ID, payload), "round %d", i)

		got, rerr := svc.Get(caller, n.ID)
		require.Nil(t, rerr)
		assert.Equal(t, title, got.Title)
		assert.True(t, got.Updated.After(token))
		token = got.Updated
	}
}
