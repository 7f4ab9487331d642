package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Book struct {
	ID          uint            `gorm:"primaryKey;autoIncrement"`
	Name        string          `gorm:"size:255;not null"`
	Author      string          `gorm:"size:255;not null"`
	Description *string         `gorm:"type:text"`
	Price       decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Image       *string         `gorm:"size:500"`
	CreatedAt   time.Time       `gorm:"index"`
	UpdatedAt   time.Time
}

func (Book) TableName() string {
	return "books"
}

// HasImage reports whether the book references a stored asset.
func (b *Book) HasImage() bool {
	return b.Image != nil && *b.Image != ""
}
