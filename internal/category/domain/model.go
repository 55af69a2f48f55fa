package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Category is a node in the self-referential tree. Level and FullPath are
// materialized: level equals the number of ancestors, full_path is the
// slash-joined slugs from root to self.
type Category struct {
	ID              snowflake.ID  `json:"id" gorm:"primaryKey"`
	Name            string        `json:"name" gorm:"type:text;not null"`
	Slug            string        `json:"slug" gorm:"type:text;not null;uniqueIndex:ux_categories_slug"`
	Description     *string       `json:"description,omitempty" gorm:"type:text"`
	ParentID        *snowflake.ID `json:"parent_id,omitempty" gorm:"index"`
	ImageURL        *string       `json:"image_url,omitempty" gorm:"type:text"`
	MetaTitle       *string       `json:"meta_title,omitempty" gorm:"type:text"`
	MetaDescription *string       `json:"meta_description,omitempty" gorm:"type:text"`
	IsActive        bool          `json:"is_active" gorm:"not null;default:true"`
	SortOrder       int           `json:"sort_order" gorm:"not null;default:0"`
	Level           int           `json:"level" gorm:"not null;default:0"`
	FullPath        string        `json:"full_path" gorm:"type:text;not null"`
	CreatedAt       time.Time     `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time     `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Category) TableName() string { return "categories" }

// TreeNode is a category with its children attached, built per tree read
// from an adjacency map rather than live object pointers.
type TreeNode struct {
	Category
	Children []*TreeNode `json:"children"`
}

// ComputePath derives the materialized level and path for a node. A node
// without a parent is a root: level 0, path equal to its own slug.
func ComputePath(parentPath, slug string) (int, string) {
	if parentPath == "" {
		return 0, slug
	}
	return strings.Count(parentPath, "/") + 1, parentPath + "/" + slug
}
