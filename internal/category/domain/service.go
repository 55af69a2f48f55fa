package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	List(ctx context.Context) ([]Category, error)
	Tree(ctx context.Context) ([]*TreeNode, error)
	GetBySlug(ctx context.Context, slug string) (*Category, error)
	Create(ctx context.Context, req CreateRequest) (*Category, error)
	Update(ctx context.Context, id snowflake.ID, req UpdateRequest) (*Category, error)
	Delete(ctx context.Context, id snowflake.ID) error
	Reorder(ctx context.Context, items []ReorderItem) error
	SubtreeIDs(ctx context.Context, slug string) ([]snowflake.ID, error)
}

type CreateRequest struct {
	Name            string        `json:"name"`
	Description     *string       `json:"description"`
	ParentID        *snowflake.ID `json:"parent_id"`
	ImageURL        *string       `json:"image_url"`
	MetaTitle       *string       `json:"meta_title"`
	MetaDescription *string       `json:"meta_description"`
	IsActive        *bool         `json:"is_active"`
	SortOrder       int           `json:"sort_order"`
}

type UpdateRequest struct {
	Name            *string       `json:"name"`
	Description     *string       `json:"description"`
	ParentID        *snowflake.ID `json:"parent_id"`
	ClearParent     bool          `json:"clear_parent"`
	ImageURL        *string       `json:"image_url"`
	MetaTitle       *string       `json:"meta_title"`
	MetaDescription *string       `json:"meta_description"`
	IsActive        *bool         `json:"is_active"`
	SortOrder       *int          `json:"sort_order"`
}

type ReorderItem struct {
	ID        snowflake.ID `json:"id"`
	SortOrder int          `json:"sort_order"`
}

var (
	ErrNotFound          = errors.New("not_found")
	ErrInvalidName       = errors.New("invalid_name")
	ErrParentNotFound    = errors.New("parent_not_found")
	ErrCircularReference = errors.New("circular_reference")
	ErrDepthExceeded     = errors.New("depth_exceeded")
	ErrHasChildren       = errors.New("has_children")
	ErrDuplicateSlug     = errors.New("duplicate_slug")
)
