package model

import "time"

// Item is the single resource managed by the service.
type Item struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	Price       *float64  `json:"price"`
	Quantity    int64     `json:"quantity"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewItem holds the values for a record about to be inserted.
// A nil Quantity is stored as 0; nil Description and Price stay unset.
type NewItem struct {
	Name        string
	Description *string
	Price       *float64
	Quantity    *int64
}

// ItemPatch describes a partial update. Only fields that are Set are written.
type ItemPatch struct {
	Name        Field[string]
	Description Field[string]
	Price       Field[float64]
	Quantity    Field[int64]
}

// Empty reports whether the patch carries no fields at all.
func (p ItemPatch) Empty() bool {
	return !p.Name.Set && !p.Description.Set && !p.Price.Set && !p.Quantity.Set
}
