package store

import (
	"context"
	"fmt"

	"github.com/erazemk/integration-api/internal/model"
)

// SampleItems is the demo inventory inserted by Seed.
func SampleItems() []model.NewItem {
	item := func(name, description string, price float64, quantity int64) model.NewItem {
		return model.NewItem{Name: name, Description: &description, Price: &price, Quantity: &quantity}
	}
	return []model.NewItem{
		item("Laptop", "Gaming laptop", 1500, 5),
		item("Mouse", "Gaming mouse", 50, 20),
		item("Keyboard", "Mechanical keyboard", 100, 15),
		item("Monitor", "27-inch 4K monitor", 400, 8),
	}
}

// Seed inserts the given items in order and returns the created records.
func (s *Items) Seed(ctx context.Context, items []model.NewItem) ([]model.Item, error) {
	created := make([]model.Item, 0, len(items))
	for _, in := range items {
		item, err := s.Create(ctx, in)
		if err != nil {
			return created, fmt.Errorf("seeding %q: %w", in.Name, err)
		}
		created = append(created, *item)
	}
	return created, nil
}
