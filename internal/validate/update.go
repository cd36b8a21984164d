package validate

import (
	"strings"

	"github.com/erazemk/integration-api/internal/model"
)

// UpdateItemRequest is a checked partial update. Absent fields are left
// untouched; explicit null clears description and price.
type UpdateItemRequest struct {
	Patch model.ItemPatch
}

// updateChecks holds the present, non-null values of an update body.
type updateChecks struct {
	Name        *string  `json:"name" validate:"omitnil,min=1,max=100"`
	Description *string  `json:"description" validate:"omitnil,max=500"`
	Price       *float64 `json:"price" validate:"omitnil,gte=0"`
	Quantity    *int64   `json:"quantity" validate:"omitnil,gte=0"`
}

// ParseUpdate decodes and validates an update body. An object with no known
// fields is valid and yields an empty patch.
func ParseUpdate(body []byte) (UpdateItemRequest, error) {
	raw, errs := fields(body)
	if errs != nil {
		return UpdateItemRequest{}, errs
	}

	var patch model.ItemPatch
	n, ok := raw["name"]
	decodeField(&patch.Name, "name", n, ok, decodeString, "a string", &errs)
	d, ok := raw["description"]
	decodeField(&patch.Description, "description", d, ok, decodeString, "a string", &errs)
	p, ok := raw["price"]
	decodeField(&patch.Price, "price", p, ok, decodeNumber, "a number", &errs)
	q, ok := raw["quantity"]
	decodeField(&patch.Quantity, "quantity", q, ok, decodeInteger, "an integer", &errs)

	if patch.Name.Null {
		errs = append(errs, Violation{Field: "name", Reason: "may not be null"})
	}
	if patch.Quantity.Null {
		errs = append(errs, Violation{Field: "quantity", Reason: "may not be null"})
	}
	if len(errs) > 0 {
		return UpdateItemRequest{}, errs
	}

	if patch.Name.Set {
		patch.Name.Value = strings.TrimSpace(patch.Name.Value)
	}

	if errs := check(updateChecks{
		Name:        patch.Name.Ptr(),
		Description: patch.Description.Ptr(),
		Price:       patch.Price.Ptr(),
		Quantity:    patch.Quantity.Ptr(),
	}); errs != nil {
		return UpdateItemRequest{}, errs
	}

	return UpdateItemRequest{Patch: patch}, nil
}
