package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/herbcart/internal/category/domain"
	"github.com/smallbiznis/herbcart/internal/category/repository"
	"github.com/smallbiznis/herbcart/internal/clock"
	"github.com/smallbiznis/herbcart/internal/config"
	"github.com/smallbiznis/herbcart/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (domain.Service, *gorm.DB) {
	t.Helper()

	dbConn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, dbConn.AutoMigrate(&domain.Category{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(Params{
		DB:    dbConn,
		Log:   zap.NewNop(),
		Cfg:   config.Config{MaxCategoryDepth: 5},
		GenID: node,
		Clock: clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
		Repo:  repository.Provide(),
	})
	return svc, dbConn
}

func mustCreate(t *testing.T, svc domain.Service, name string, parentID *snowflake.ID) *domain.Category {
	t.Helper()

	cat, err := svc.Create(context.Background(), domain.CreateRequest{Name: name, ParentID: parentID})
	require.NoError(t, err)
	return cat
}

func TestCreateNestedPaths(t *testing.T) {
	svc, _ := newTestService(t)

	root := mustCreate(t, svc, "Skincare", nil)
	assert.Equal(t, 0, root.Level)
	assert.Equal(t, "skincare", root.FullPath)

	child := mustCreate(t, svc, "Moisturizers", &root.ID)
	assert.Equal(t, 1, child.Level)
	assert.Equal(t, "skincare/moisturizers", child.FullPath)
}

func TestCreateDepthLimit(t *testing.T) {
	svc, _ := newTestService(t)

	parent := mustCreate(t, svc, "Level Zero", nil)
	for i := 1; i < 5; i++ {
		parent = mustCreate(t, svc, "Level "+string(rune('0'+i)), &parent.ID)
	}
	assert.Equal(t, 4, parent.Level)

	_, err := svc.Create(context.Background(), domain.CreateRequest{Name: "Too Deep", ParentID: &parent.ID})
	assert.ErrorIs(t, err, domain.ErrDepthExceeded)
}

func TestReparentDepthLimitCoversDescendants(t *testing.T) {
	svc, dbConn := newTestService(t)

	parent := mustCreate(t, svc, "Level Zero", nil)
	for i := 1; i < 4; i++ {
		parent = mustCreate(t, svc, "Level "+string(rune('0'+i)), &parent.ID)
	}
	require.Equal(t, 3, parent.Level)

	moved := mustCreate(t, svc, "Moved", nil)
	child := mustCreate(t, svc, "Tagalong", &moved.ID)

	// The moved node itself would sit at level 4, but its child would
	// land on level 5.
	_, err := svc.Update(context.Background(), moved.ID, domain.UpdateRequest{ParentID: &parent.ID})
	assert.ErrorIs(t, err, domain.ErrDepthExceeded)

	var got domain.Category
	require.NoError(t, dbConn.First(&got, "id = ?", child.ID).Error)
	assert.Equal(t, 1, got.Level)
	assert.Equal(t, "moved/tagalong", got.FullPath)

	// A shallower target that keeps the whole subtree in bounds works.
	shallow := mustCreate(t, svc, "Shallow", nil)
	_, err = svc.Update(context.Background(), moved.ID, domain.UpdateRequest{ParentID: &shallow.ID})
	require.NoError(t, err)
	require.NoError(t, dbConn.First(&got, "id = ?", child.ID).Error)
	assert.Equal(t, 2, got.Level)
	assert.Equal(t, "shallow/moved/tagalong", got.FullPath)
}

func TestCreateParentNotFound(t *testing.T) {
	svc, _ := newTestService(t)

	missing := snowflake.ID(424242)
	_, err := svc.Create(context.Background(), domain.CreateRequest{Name: "Orphan", ParentID: &missing})
	assert.ErrorIs(t, err, domain.ErrParentNotFound)
}

func TestReparentUnderOwnDescendantRejected(t *testing.T) {
	svc, _ := newTestService(t)

	a := mustCreate(t, svc, "A", nil)
	b := mustCreate(t, svc, "B", &a.ID)
	c := mustCreate(t, svc, "C", &b.ID)

	_, err := svc.Update(context.Background(), a.ID, domain.UpdateRequest{ParentID: &c.ID})
	assert.ErrorIs(t, err, domain.ErrCircularReference)

	_, err = svc.Update(context.Background(), a.ID, domain.UpdateRequest{ParentID: &a.ID})
	assert.ErrorIs(t, err, domain.ErrCircularReference)
}

func TestReparentRewritesSubtree(t *testing.T) {
	svc, dbConn := newTestService(t)

	teas := mustCreate(t, svc, "Teas", nil)
	herbal := mustCreate(t, svc, "Herbal", &teas.ID)
	sleep := mustCreate(t, svc, "Sleep", &herbal.ID)
	wellness := mustCreate(t, svc, "Wellness", nil)

	_, err := svc.Update(context.Background(), herbal.ID, domain.UpdateRequest{ParentID: &wellness.ID})
	require.NoError(t, err)

	var moved domain.Category
	require.NoError(t, dbConn.First(&moved, "id = ?", herbal.ID).Error)
	assert.Equal(t, "wellness/herbal", moved.FullPath)
	assert.Equal(t, 1, moved.Level)

	var descendant domain.Category
	require.NoError(t, dbConn.First(&descendant, "id = ?", sleep.ID).Error)
	assert.Equal(t, "wellness/herbal/sleep", descendant.FullPath)
	assert.Equal(t, 2, descendant.Level)
}

func TestClearParentMovesToRoot(t *testing.T) {
	svc, dbConn := newTestService(t)

	root := mustCreate(t, svc, "Root", nil)
	child := mustCreate(t, svc, "Child", &root.ID)

	updated, err := svc.Update(context.Background(), child.ID, domain.UpdateRequest{ClearParent: true})
	require.NoError(t, err)
	assert.Nil(t, updated.ParentID)
	assert.Equal(t, 0, updated.Level)
	assert.Equal(t, "child", updated.FullPath)

	var got domain.Category
	require.NoError(t, dbConn.First(&got, "id = ?", child.ID).Error)
	assert.Equal(t, "child", got.FullPath)
}

func TestDeleteWithChildrenRejected(t *testing.T) {
	svc, dbConn := newTestService(t)

	root := mustCreate(t, svc, "Root", nil)
	leaf := mustCreate(t, svc, "Leaf", &root.ID)

	assert.ErrorIs(t, svc.Delete(context.Background(), root.ID), domain.ErrHasChildren)

	require.NoError(t, svc.Delete(context.Background(), leaf.ID))
	var got domain.Category
	require.NoError(t, dbConn.First(&got, "id = ?", leaf.ID).Error)
	assert.False(t, got.IsActive)
}

func TestTreeShape(t *testing.T) {
	svc, _ := newTestService(t)

	root := mustCreate(t, svc, "Root", nil)
	childA := mustCreate(t, svc, "Alpha", &root.ID)
	mustCreate(t, svc, "Beta", &root.ID)
	mustCreate(t, svc, "Nested", &childA.ID)

	tree, err := svc.Tree(context.Background())
	require.NoError(t, err)
	require.Len(t, tree, 1)
	assert.Len(t, tree[0].Children, 2)
}

func TestReorderSkipsUnknownIDs(t *testing.T) {
	svc, dbConn := newTestService(t)

	a := mustCreate(t, svc, "A", nil)
	b := mustCreate(t, svc, "B", nil)

	err := svc.Reorder(context.Background(), []domain.ReorderItem{
		{ID: a.ID, SortOrder: 5},
		{ID: b.ID, SortOrder: 2},
		{ID: snowflake.ID(999999), SortOrder: 1},
	})
	require.NoError(t, err)

	var got domain.Category
	require.NoError(t, dbConn.First(&got, "id = ?", a.ID).Error)
	assert.Equal(t, 5, got.SortOrder)
}

func TestSubtreeIDs(t *testing.T) {
	svc, _ := newTestService(t)

	root := mustCreate(t, svc, "Root", nil)
	child := mustCreate(t, svc, "Child", &root.ID)
	grand := mustCreate(t, svc, "Grand", &child.ID)
	mustCreate(t, svc, "Sibling", nil)

	ids, err := svc.SubtreeIDs(context.Background(), root.Slug)
	require.NoError(t, err)
	assert.Len(t, ids, 3)
	assert.Contains(t, ids, root.ID)
	assert.Contains(t, ids, child.ID)
	assert.Contains(t, ids, grand.ID)
}
