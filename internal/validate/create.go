package validate

import (
	"strings"

	"github.com/erazemk/integration-api/internal/model"
)

// CreateItemRequest is a checked body for creating an item.
type CreateItemRequest struct {
	Name        string   `json:"name" validate:"min=1,max=100"`
	Description *string  `json:"description" validate:"omitnil,max=500"`
	Price       *float64 `json:"price" validate:"omitnil,gte=0"`
	Quantity    *int64   `json:"quantity" validate:"omitnil,gte=0"`
}

// ParseCreate decodes and validates a creation body. Name is trimmed of
// surrounding whitespace before its length is checked.
func ParseCreate(body []byte) (CreateItemRequest, error) {
	var req CreateItemRequest

	raw, errs := fields(body)
	if errs != nil {
		return req, errs
	}

	var name, description model.Field[string]
	var price model.Field[float64]
	var quantity model.Field[int64]

	nameRaw, ok := raw["name"]
	if !ok {
		errs = append(errs, Violation{Field: "name", Reason: "field required"})
	}
	decodeField(&name, "name", nameRaw, ok, decodeString, "a string", &errs)
	if name.Null {
		errs = append(errs, Violation{Field: "name", Reason: "may not be null"})
	}

	d, ok := raw["description"]
	decodeField(&description, "description", d, ok, decodeString, "a string", &errs)
	p, ok := raw["price"]
	decodeField(&price, "price", p, ok, decodeNumber, "a number", &errs)
	q, ok := raw["quantity"]
	decodeField(&quantity, "quantity", q, ok, decodeInteger, "an integer", &errs)

	if len(errs) > 0 {
		return req, errs
	}

	req = CreateItemRequest{
		Name:        strings.TrimSpace(name.Value),
		Description: description.Ptr(),
		Price:       price.Ptr(),
		Quantity:    quantity.Ptr(),
	}
	if errs := check(req); errs != nil {
		return CreateItemRequest{}, errs
	}
	return req, nil
}

// NewItem converts the request into store input.
func (r CreateItemRequest) NewItem() model.NewItem {
	return model.NewItem{
		Name:        r.Name,
		Description: r.Description,
		Price:       r.Price,
		Quantity:    r.Quantity,
	}
}
