package repository

import (
	"context"
	"errors"

	"github.com/snnyvrz/book-catalog/internal/model"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("book not found")

type BookRepository interface {
	Create(ctx context.Context, book *model.Book) error
	List(ctx context.Context) ([]model.Book, error)
	FindByID(ctx context.Context, id uint) (*model.Book, error)
	Update(ctx context.Context, book *model.Book) error
	Delete(ctx context.Context, id uint) (bool, error)
}

type GormBookRepository struct {
	db *gorm.DB
}

func NewGormBookRepository(db *gorm.DB) *GormBookRepository {
	return &GormBookRepository{db: db}
}

func (r *GormBookRepository) Create(ctx context.Context, book *model.Book) error {
	return r.db.WithContext(ctx).Create(book).Error
}

// List returns every book, newest first.
func (r *GormBookRepository) List(ctx context.Context) ([]model.Book, error) {
	books := make([]model.Book, 0)
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Find(&books).Error; err != nil {

		return nil, err
	}
	return books, nil
}

func (r *GormBookRepository) FindByID(ctx context.Context, id uint) (*model.Book, error) {
	var book model.Book
	if err := r.db.WithContext(ctx).First(&book, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &book, nil
}

// Update replaces every mutable column of the row identified by book.ID and
// reloads book from the database. ErrNotFound is returned when no row matches.
func (r *GormBookRepository) Update(ctx context.Context, book *model.Book) error {
	result := r.db.WithContext(ctx).
		Model(&model.Book{}).
		Where("id = ?", book.ID).
		Updates(map[string]any{
			"name":        book.Name,
			"author":      book.Author,
			"description": book.Description,
			"price":       book.Price,
			"image":       book.Image,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}

	updated, err := r.FindByID(ctx, book.ID)
	if err != nil {
		return err
	}
	*book = *updated
	return nil
}

// Delete reports whether a row was removed.
func (r *GormBookRepository) Delete(ctx context.Context, id uint) (bool, error) {
	result := r.db.WithContext(ctx).Delete(&model.Book{}, "id = ?", id)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
