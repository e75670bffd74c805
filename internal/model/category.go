package model

import "time"

// Category represents a spending category owned by the transaction store.
type Category struct {
	CreatedAt   time.Time
	Name        string
	Description string
	ID          int
	IsActive    bool
}

// CategoryMap is an immutable lookup of live categories by id and by name.
// Build one per snapshot of the store; never mutate it after construction.
type CategoryMap struct {
	byID   map[int]Category
	byName map[string]Category
	order  []Category
}

// NewCategoryMap indexes categories by id and by exact name.
// Later duplicates of an id or name are ignored.
func NewCategoryMap(categories []Category) CategoryMap {
	m := CategoryMap{
		byID:   make(map[int]Category, len(categories)),
		byName: make(map[string]Category, len(categories)),
		order:  make([]Category, 0, len(categories)),
	}
	for _, cat := range categories {
		if _, dup := m.byID[cat.ID]; dup {
			continue
		}
		if _, dup := m.byName[cat.Name]; dup {
			continue
		}
		m.byID[cat.ID] = cat
		m.byName[cat.Name] = cat
		m.order = append(m.order, cat)
	}
	return m
}

// ByName returns the category with the given name.
func (m CategoryMap) ByName(name string) (Category, bool) {
	cat, ok := m.byName[name]
	return cat, ok
}

// ByID returns the category with the given id.
func (m CategoryMap) ByID(id int) (Category, bool) {
	cat, ok := m.byID[id]
	return cat, ok
}

// NameOf returns the category name for id, or "" when unknown.
func (m CategoryMap) NameOf(id int) string {
	return m.byID[id].Name
}

// All returns the categories in the order they were supplied.
func (m CategoryMap) All() []Category {
	out := make([]Category, len(m.order))
	copy(out, m.order)
	return out
}

// Len returns the number of categories.
func (m CategoryMap) Len() int {
	return len(m.order)
}
