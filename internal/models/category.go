package models

// UncategorizedName is the category tasks fall back to when theirs is deleted.
const UncategorizedName = "Uncategorized"

// Category is a named, user-owned grouping of tasks
type Category struct {
	ID     string `json:"_id"`
	UserID string `json:"uid,omitempty"`
	Name   string `json:"name"`
	Icon   string `json:"icon,omitempty"`
}
