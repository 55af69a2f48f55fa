package service

import (
	"context"
	"sort"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/herbcart/internal/category/domain"
	"github.com/smallbiznis/herbcart/internal/clock"
	"github.com/smallbiznis/herbcart/internal/config"
	"github.com/smallbiznis/herbcart/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Cfg   config.Config
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	maxDepth int
}

func New(p Params) domain.Service {
	maxDepth := p.Cfg.MaxCategoryDepth
	if maxDepth < 1 {
		maxDepth = 5
	}
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("category.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		maxDepth: maxDepth,
	}
}

// Slugify collapses a name to a URL slug; an empty result (all-symbol
// names) falls back to a random identifier so the unique index holds.
func Slugify(name string) string {
	s := slug.Make(name)
	if s == "" {
		return uuid.NewString()
	}
	return s
}

func (s *Service) List(ctx context.Context) ([]domain.Category, error) {
	return s.repo.ListActive(ctx, s.db)
}

// Tree materializes the hierarchy from the flat active set: an adjacency
// map keyed by parent id, roots returned with children attached
// recursively. Rows already arrive ordered by sort_order then name.
func (s *Service) Tree(ctx context.Context) ([]*domain.TreeNode, error) {
	cats, err := s.repo.ListActive(ctx, s.db)
	if err != nil {
		return nil, err
	}

	nodes := make(map[snowflake.ID]*domain.TreeNode, len(cats))
	for i := range cats {
		nodes[cats[i].ID] = &domain.TreeNode{Category: cats[i], Children: []*domain.TreeNode{}}
	}

	roots := make([]*domain.TreeNode, 0)
	for i := range cats {
		node := nodes[cats[i].ID]
		if cats[i].ParentID != nil {
			if parent, ok := nodes[*cats[i].ParentID]; ok {
				parent.Children = append(parent.Children, node)
				continue
			}
		}
		roots = append(roots, node)
	}
	return roots, nil
}

func (s *Service) GetBySlug(ctx context.Context, slugValue string) (*domain.Category, error) {
	cat, err := s.repo.FindBySlug(ctx, s.db, strings.TrimSpace(slugValue))
	if err != nil {
		return nil, err
	}
	if cat == nil || !cat.IsActive {
		return nil, domain.ErrNotFound
	}
	return cat, nil
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Category, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	var parentPath string
	if req.ParentID != nil {
		parent, err := s.repo.FindByID(ctx, s.db, *req.ParentID)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			return nil, domain.ErrParentNotFound
		}
		if parent.Level+1 >= s.maxDepth {
			return nil, domain.ErrDepthExceeded
		}
		parentPath = parent.FullPath
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	ownSlug := Slugify(name)
	level, fullPath := domain.ComputePath(parentPath, ownSlug)

	now := s.clock.Now()
	cat := &domain.Category{
		ID:              s.genID.Generate(),
		Name:            name,
		Slug:            ownSlug,
		Description:     req.Description,
		ParentID:        req.ParentID,
		ImageURL:        req.ImageURL,
		MetaTitle:       req.MetaTitle,
		MetaDescription: req.MetaDescription,
		IsActive:        active,
		SortOrder:       req.SortOrder,
		Level:           level,
		FullPath:        fullPath,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.Create(ctx, s.db, cat); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrDuplicateSlug
		}
		return nil, err
	}
	return cat, nil
}

func (s *Service) Update(ctx context.Context, id snowflake.ID, req domain.UpdateRequest) (*domain.Category, error) {
	cat, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if cat == nil {
		return nil, domain.ErrNotFound
	}

	pathChanged := false

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, domain.ErrInvalidName
		}
		if name != cat.Name {
			cat.Name = name
			cat.Slug = Slugify(name)
			pathChanged = true
		}
	}
	if req.Description != nil {
		cat.Description = req.Description
	}
	if req.ImageURL != nil {
		cat.ImageURL = req.ImageURL
	}
	if req.MetaTitle != nil {
		cat.MetaTitle = req.MetaTitle
	}
	if req.MetaDescription != nil {
		cat.MetaDescription = req.MetaDescription
	}
	if req.IsActive != nil {
		cat.IsActive = *req.IsActive
	}
	if req.SortOrder != nil {
		cat.SortOrder = *req.SortOrder
	}

	var parentPath string
	reparented := false
	switch {
	case req.ClearParent:
		if cat.ParentID != nil {
			cat.ParentID = nil
			reparented = true
		}
	case req.ParentID != nil && (cat.ParentID == nil || *cat.ParentID != *req.ParentID):
		parent, err := s.validateParent(ctx, cat.ID, *req.ParentID)
		if err != nil {
			return nil, err
		}
		cat.ParentID = req.ParentID
		parentPath = parent.FullPath
		reparented = true
	case cat.ParentID != nil:
		parent, err := s.repo.FindByID(ctx, s.db, *cat.ParentID)
		if err != nil {
			return nil, err
		}
		if parent != nil {
			parentPath = parent.FullPath
		}
	}

	if !pathChanged && !reparented {
		cat.UpdatedAt = s.clock.Now()
		if err := s.repo.Update(ctx, s.db, cat); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return nil, domain.ErrDuplicateSlug
			}
			return nil, err
		}
		return cat, nil
	}

	oldPath := cat.FullPath
	oldLevel := cat.Level
	cat.Level, cat.FullPath = domain.ComputePath(parentPath, cat.Slug)
	if cat.Level >= s.maxDepth {
		return nil, domain.ErrDepthExceeded
	}
	// The depth bound holds for the whole subtree, not just the moved
	// node: a move pushing any descendant past the limit is rejected
	// before anything is written.
	levelDelta := cat.Level - oldLevel
	if levelDelta > 0 {
		subtree, err := s.repo.ListSubtree(ctx, s.db, oldPath)
		if err != nil {
			return nil, err
		}
		for i := range subtree {
			if !strings.HasPrefix(subtree[i].FullPath, oldPath+"/") {
				continue
			}
			if subtree[i].Level+levelDelta >= s.maxDepth {
				return nil, domain.ErrDepthExceeded
			}
		}
	}
	cat.UpdatedAt = s.clock.Now()

	// Rewriting the node's path invalidates every descendant's
	// materialized path; all rows move in the same transaction.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Update(ctx, tx, cat); err != nil {
			return err
		}
		return s.rewriteSubtree(ctx, tx, oldPath, cat.FullPath, levelDelta)
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrDuplicateSlug
		}
		return nil, err
	}
	return cat, nil
}

// Delete refuses while children exist and soft-deactivates otherwise, so
// historical product associations stay resolvable.
func (s *Service) Delete(ctx context.Context, id snowflake.ID) error {
	cat, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return err
	}
	if cat == nil {
		return domain.ErrNotFound
	}
	hasChildren, err := s.repo.HasChildren(ctx, s.db, id)
	if err != nil {
		return err
	}
	if hasChildren {
		return domain.ErrHasChildren
	}
	cat.IsActive = false
	cat.UpdatedAt = s.clock.Now()
	return s.repo.Update(ctx, s.db, cat)
}

// Reorder applies new sort orders in one pass; ids with no matching row
// are skipped rather than failing the batch.
func (s *Service) Reorder(ctx context.Context, items []domain.ReorderItem) error {
	if len(items) == 0 {
		return nil
	}
	ids := make([]snowflake.ID, 0, len(items))
	orders := make(map[snowflake.ID]int, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
		orders[item.ID] = item.SortOrder
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cats, err := s.repo.ListByIDs(ctx, tx, ids)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		for i := range cats {
			cats[i].SortOrder = orders[cats[i].ID]
			cats[i].UpdatedAt = now
			if err := s.repo.Update(ctx, tx, &cats[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// SubtreeIDs resolves a slug to the ids of the category and all its
// descendants, for path-prefix product listings.
func (s *Service) SubtreeIDs(ctx context.Context, slugValue string) ([]snowflake.ID, error) {
	cat, err := s.GetBySlug(ctx, slugValue)
	if err != nil {
		return nil, err
	}
	subtree, err := s.repo.ListSubtree(ctx, s.db, cat.FullPath)
	if err != nil {
		return nil, err
	}
	ids := make([]snowflake.ID, 0, len(subtree))
	for _, c := range subtree {
		ids = append(ids, c.ID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// validateParent walks the proposed parent's ancestor chain; finding the
// target's own id there means the move would create a cycle.
func (s *Service) validateParent(ctx context.Context, id, parentID snowflake.ID) (*domain.Category, error) {
	if parentID == id {
		return nil, domain.ErrCircularReference
	}
	parent, err := s.repo.FindByID(ctx, s.db, parentID)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, domain.ErrParentNotFound
	}

	cursor := parent
	for cursor.ParentID != nil {
		if *cursor.ParentID == id {
			return nil, domain.ErrCircularReference
		}
		cursor, err = s.repo.FindByID(ctx, s.db, *cursor.ParentID)
		if err != nil {
			return nil, err
		}
		if cursor == nil {
			break
		}
	}
	return parent, nil
}

func (s *Service) rewriteSubtree(ctx context.Context, tx *gorm.DB, oldPath, newPath string, levelDelta int) error {
	descendants, err := s.repo.ListSubtree(ctx, tx, oldPath)
	if err != nil {
		return err
	}
	now := s.clock.Now()
	for i := range descendants {
		d := &descendants[i]
		if d.FullPath == newPath {
			// the node itself, already rewritten
			continue
		}
		if !strings.HasPrefix(d.FullPath, oldPath+"/") {
			continue
		}
		d.FullPath = newPath + strings.TrimPrefix(d.FullPath, oldPath)
		d.Level += levelDelta
		d.UpdatedAt = now
		if err := s.repo.Update(ctx, tx, d); err != nil {
			return err
		}
	}
	return nil
}
