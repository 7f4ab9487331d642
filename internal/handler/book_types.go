package handler

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/snnyvrz/book-catalog/internal/model"
)

// formValue is a text field that also accepts a JSON number, so clients may
// send {"price": 12.5} as well as {"price": "12.50"}.
type formValue string

func (v *formValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = formValue(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return errors.New("must be a string or a number")
	}
	*v = formValue(n.String())
	return nil
}

func (v *formValue) ptr() *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

type CreateBookRequest struct {
	Name        formValue  `json:"name" form:"name" binding:"required" swaggertype:"string" example:"Dune"`
	Author      formValue  `json:"author" form:"author" binding:"required" swaggertype:"string" example:"Frank Herbert"`
	Description *formValue `json:"description" form:"description" swaggertype:"string" example:"Science fiction classic"`
	Price       formValue  `json:"price" form:"price" binding:"required" swaggertype:"string" example:"12.50"`
}

type UpdateBookRequest struct {
	Name        *formValue `json:"name" form:"name" swaggertype:"string" example:"Dune"`
	Author      *formValue `json:"author" form:"author" swaggertype:"string" example:"Frank Herbert"`
	Description *formValue `json:"description" form:"description" swaggertype:"string" example:"Science fiction classic"`
	Price       *formValue `json:"price" form:"price" swaggertype:"string" example:"14.00"`
}

type Book struct {
	ID          uint            `json:"id"`
	Name        string          `json:"name"`
	Author      string          `json:"author"`
	Description *string         `json:"description"`
	Price       json.Number     `json:"price" swaggertype:"number" example:"12.50"`
	Image       *string         `json:"image" example:"/uploads/1700000000000_cover.png"`
	CreatedAt   model.Timestamp `json:"created_at" swaggertype:"string" example:"2025-11-24T10:00:00Z"`
	UpdatedAt   model.Timestamp `json:"updated_at" swaggertype:"string" example:"2025-11-24T10:00:00Z"`
	ImageURL    *string         `json:"imageUrl" example:"http://localhost:8080/uploads/1700000000000_cover.png"`
}

type DeleteBookResponse struct {
	Success bool `json:"success"`
}
