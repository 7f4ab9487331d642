package catalog

import (
	"io"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	maxTextLen = 255
	priceScale = 2
)

var maxPrice = decimal.RequireFromString("99999999.99")

// Optional marks a patch field as present or absent independently of its value.
type Optional[T any] struct {
	Value T
	Set   bool
}

func Some[T any](v T) Optional[T] {
	return Optional[T]{Value: v, Set: true}
}

func (o Optional[T]) Get() (T, bool) {
	return o.Value, o.Set
}

type Upload struct {
	Filename string
	Size     int64
	Content  io.Reader
}

type CreateInput struct {
	Name        string
	Author      string
	Description *string
	Price       string
	Image       *Upload
}

// Patch carries the fields of an update. Unset fields keep their stored value;
// a nil Image keeps the stored asset.
type Patch struct {
	Name        Optional[string]
	Author      Optional[string]
	Description Optional[string]
	Price       Optional[string]
	Image       *Upload
}

type validatedCreate struct {
	name        string
	author      string
	description *string
	price       decimal.Decimal
}

type validatedPatch struct {
	name        *string
	author      *string
	description Optional[*string]
	price       *decimal.Decimal
}

func (s *Service) validateCreate(in CreateInput) (validatedCreate, error) {
	verr := &ValidationError{}
	out := validatedCreate{
		name:        validateText(verr, "name", in.Name),
		author:      validateText(verr, "author", in.Author),
		description: normalizeDescription(in.Description),
	}

	if strings.TrimSpace(in.Price) == "" {
		verr.add("price", "required", "price is required")
	} else if p, ok := validatePrice(verr, in.Price); ok {
		out.price = p
	}

	s.validateUpload(verr, in.Image)
	return out, verr.orNil()
}

func (s *Service) validatePatch(p Patch) (validatedPatch, error) {
	verr := &ValidationError{}
	var out validatedPatch

	if v, ok := p.Name.Get(); ok {
		name := validateText(verr, "name", v)
		out.name = &name
	}
	if v, ok := p.Author.Get(); ok {
		author := validateText(verr, "author", v)
		out.author = &author
	}
	if v, ok := p.Description.Get(); ok {
		out.description = Some(normalizeDescription(&v))
	}
	if v, ok := p.Price.Get(); ok {
		if price, valid := validatePrice(verr, v); valid {
			out.price = &price
		}
	}

	s.validateUpload(verr, p.Image)
	return out, verr.orNil()
}

func (s *Service) validateUpload(verr *ValidationError, up *Upload) {
	if up == nil {
		return
	}
	if up.Content == nil {
		verr.add("image", "required", "image content is missing")
		return
	}
	if s.maxUploadBytes > 0 && up.Size > s.maxUploadBytes {
		verr.add("image", "max", "image is too large")
	}
}

func validateText(verr *ValidationError, field, v string) string {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		verr.add(field, "required", field+" is required")
	case len([]rune(v)) > maxTextLen:
		verr.add(field, "max", field+" must be at most 255 characters")
	}
	return v
}

func validatePrice(verr *ValidationError, raw string) (decimal.Decimal, bool) {
	p, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		verr.add("price", "numeric", "price must be a number")
		return decimal.Zero, false
	}
	if p.IsNegative() {
		verr.add("price", "min", "price must not be negative")
		return decimal.Zero, false
	}
	p = p.Round(priceScale)
	if p.GreaterThan(maxPrice) {
		verr.add("price", "max", "price must be at most 99999999.99")
		return decimal.Zero, false
	}
	return p, true
}

func normalizeDescription(d *string) *string {
	if d == nil || strings.TrimSpace(*d) == "" {
		return nil
	}
	v := *d
	return &v
}
