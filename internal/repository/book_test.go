package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/snnyvrz/book-catalog/internal/model"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:testdb_" + uuid.New().String() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}

	if err := db.AutoMigrate(&model.Book{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB from gorm: %v", err)
	}

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}

func strPtr(s string) *string { return &s }

func seedBooks(t *testing.T, db *gorm.DB) []model.Book {
	t.Helper()

	now := time.Now()

	books := []model.Book{
		{
			Name:      "Clean Code",
			Author:    "Robert Martin",
			Price:     decimal.RequireFromString("32.10"),
			CreatedAt: now.Add(-3 * time.Hour),
		},
		{
			Name:      "Clean Architecture",
			Author:    "Robert Martin",
			Price:     decimal.RequireFromString("28.00"),
			CreatedAt: now.Add(-2 * time.Hour),
		},
		{
			Name:        "Domain-Driven Design",
			Author:      "Eric Evans",
			Description: strPtr("Tackling complexity"),
			Price:       decimal.RequireFromString("54.99"),
			CreatedAt:   now.Add(-1 * time.Hour),
		},
	}

	for i := range books {
		if err := db.Create(&books[i]).Error; err != nil {
			t.Fatalf("failed to seed book %q: %v", books[i].Name, err)
		}
	}

	return books
}

func TestGormBookRepository_CreateAssignsUniqueIDs(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormBookRepository(db)
	ctx := context.Background()

	seen := map[uint]bool{}
	for i := 0; i < 5; i++ {
		b := model.Book{Name: "Dune", Author: "Herbert", Price: decimal.RequireFromString("12.50")}
		if err := repo.Create(ctx, &b); err != nil {
			t.Fatalf("create: %v", err)
		}
		if b.ID == 0 {
			t.Fatalf("expected id to be assigned")
		}
		if seen[b.ID] {
			t.Fatalf("duplicate id %d", b.ID)
		}
		seen[b.ID] = true
		if b.CreatedAt.IsZero() || b.UpdatedAt.IsZero() {
			t.Errorf("expected timestamps to be set")
		}
	}
}

func TestGormBookRepository_RoundTrip(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormBookRepository(db)
	ctx := context.Background()

	in := model.Book{
		Name:        "Dune",
		Author:      "Herbert",
		Description: strPtr("Spice"),
		Price:       decimal.RequireFromString("12.50"),
		Image:       strPtr("/uploads/1_dune.png"),
	}
	if err := repo.Create(ctx, &in); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.FindByID(ctx, in.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}

	if got.Name != in.Name || got.Author != in.Author {
		t.Errorf("unexpected name/author: %+v", got)
	}
	if got.Description == nil || *got.Description != "Spice" {
		t.Errorf("unexpected description: %v", got.Description)
	}
	if !got.Price.Equal(in.Price) {
		t.Errorf("expected price %s, got %s", in.Price, got.Price)
	}
	if got.Image == nil || *got.Image != *in.Image {
		t.Errorf("unexpected image: %v", got.Image)
	}
}

func TestGormBookRepository_FindByIDNotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormBookRepository(db)

	_, err := repo.FindByID(context.Background(), 9999)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGormBookRepository_ListNewestFirst(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormBookRepository(db)
	seedBooks(t, db)

	books, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(books) != 3 {
		t.Fatalf("expected 3 books, got %d", len(books))
	}

	want := []string{"Domain-Driven Design", "Clean Architecture", "Clean Code"}
	for i, name := range want {
		if books[i].Name != name {
			t.Errorf("position %d: expected %q, got %q", i, name, books[i].Name)
		}
	}
}

func TestGormBookRepository_ListEmpty(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormBookRepository(db)

	books, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if books == nil || len(books) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", books)
	}
}

func TestGormBookRepository_UpdateReplacesFields(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormBookRepository(db)
	ctx := context.Background()
	seeded := seedBooks(t, db)

	target := seeded[2]
	target.Name = "DDD"
	target.Description = nil
	target.Price = decimal.RequireFromString("10.00")
	target.Image = strPtr("/uploads/2_ddd.png")

	if err := repo.Update(ctx, &target); err != nil {
		t.Fatalf("update: %v", err)
	}

	if target.Name != "DDD" {
		t.Errorf("expected reloaded name DDD, got %q", target.Name)
	}
	if target.Description != nil {
		t.Errorf("expected description cleared, got %v", *target.Description)
	}
	if !target.Price.Equal(decimal.RequireFromString("10")) {
		t.Errorf("unexpected price %s", target.Price)
	}
	if target.Image == nil || *target.Image != "/uploads/2_ddd.png" {
		t.Errorf("unexpected image %v", target.Image)
	}

	untouched, err := repo.FindByID(ctx, seeded[0].ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if untouched.Name != "Clean Code" {
		t.Errorf("update leaked into another row: %+v", untouched)
	}
}

func TestGormBookRepository_UpdateMissingRow(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormBookRepository(db)

	b := model.Book{ID: 9999, Name: "Ghost", Author: "Nobody", Price: decimal.Zero}
	err := repo.Update(context.Background(), &b)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	var count int64
	db.Model(&model.Book{}).Count(&count)
	if count != 0 {
		t.Fatalf("update must not create rows, found %d", count)
	}
}

func TestGormBookRepository_Delete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormBookRepository(db)
	ctx := context.Background()
	seeded := seedBooks(t, db)

	deleted, err := repo.Delete(ctx, seeded[0].ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !deleted {
		t.Fatalf("expected delete to report true")
	}

	deleted, err = repo.Delete(ctx, seeded[0].ID)
	if err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if deleted {
		t.Fatalf("expected second delete to report false")
	}

	if _, err := repo.FindByID(ctx, seeded[0].ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}
