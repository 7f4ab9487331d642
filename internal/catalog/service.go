package catalog

import (
	"context"
	"errors"
	"log/slog"

	"github.com/snnyvrz/book-catalog/internal/asset"
	"github.com/snnyvrz/book-catalog/internal/logging"
	"github.com/snnyvrz/book-catalog/internal/model"
	"github.com/snnyvrz/book-catalog/internal/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	reasonSuperseded = "superseded"
	reasonDeleted    = "deleted"
	reasonOrphaned   = "orphaned"
)

// Cleaner removes assets in the background. Failures never reach the caller.
type Cleaner interface {
	Schedule(ctx context.Context, ref, reason string)
}

// Service keeps book records and their cover assets consistent. There is no
// transaction spanning both stores, so every mutation follows a fixed order:
// validate, write the new asset, write the record, and only then schedule
// removal of the asset the record no longer references.
type Service struct {
	repo           repository.BookRepository
	assets         asset.Store
	cleaner        Cleaner
	logger         *slog.Logger
	tracer         trace.Tracer
	maxUploadBytes int64
	compensate     bool
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithMaxUploadBytes(n int64) Option {
	return func(s *Service) { s.maxUploadBytes = n }
}

// WithOrphanCompensation schedules removal of an asset stored during a
// request whose record write then failed.
func WithOrphanCompensation(on bool) Option {
	return func(s *Service) { s.compensate = on }
}

func NewService(repo repository.BookRepository, assets asset.Store, cleaner Cleaner, opts ...Option) *Service {
	s := &Service{
		repo:    repo,
		assets:  assets,
		cleaner: cleaner,
		logger:  slog.Default(),
		tracer:  otel.Tracer("github.com/snnyvrz/book-catalog/internal/catalog"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Create(ctx context.Context, in CreateInput) (book *model.Book, err error) {
	ctx, span := s.tracer.Start(ctx, "catalog.Create")
	defer func() { endSpan(span, err) }()

	v, err := s.validateCreate(in)
	if err != nil {
		return nil, err
	}

	var ref *string
	if in.Image != nil {
		stored, err := s.assets.Store(ctx, in.Image.Content, in.Image.Size, in.Image.Filename)
		if err != nil {
			return nil, s.storageError(ctx, "create", err)
		}
		ref = &stored
		span.SetAttributes(attribute.String("asset.ref", stored))
	}

	b := &model.Book{
		Name:        v.name,
		Author:      v.author,
		Description: v.description,
		Price:       v.price,
		Image:       ref,
	}
	if err := s.repo.Create(ctx, b); err != nil {
		s.handleOrphan(ctx, ref)
		return nil, s.storageError(ctx, "create", err)
	}

	span.SetAttributes(attribute.Int64("book.id", int64(b.ID)))
	return b, nil
}

func (s *Service) List(ctx context.Context) (books []model.Book, err error) {
	ctx, span := s.tracer.Start(ctx, "catalog.List")
	defer func() { endSpan(span, err) }()

	books, err = s.repo.List(ctx)
	if err != nil {
		return nil, s.storageError(ctx, "list", err)
	}
	span.SetAttributes(attribute.Int("book.count", len(books)))
	return books, nil
}

func (s *Service) Get(ctx context.Context, id uint) (book *model.Book, err error) {
	ctx, span := s.tracer.Start(ctx, "catalog.Get", trace.WithAttributes(attribute.Int64("book.id", int64(id))))
	defer func() { endSpan(span, err) }()

	return s.find(ctx, "get", id)
}

// Update applies p to the book identified by id. A superseded asset is only
// scheduled for removal after the record references the new one.
func (s *Service) Update(ctx context.Context, id uint, p Patch) (book *model.Book, err error) {
	ctx, span := s.tracer.Start(ctx, "catalog.Update", trace.WithAttributes(attribute.Int64("book.id", int64(id))))
	defer func() { endSpan(span, err) }()

	existing, err := s.find(ctx, "update", id)
	if err != nil {
		return nil, err
	}

	v, err := s.validatePatch(p)
	if err != nil {
		return nil, err
	}

	oldRef := existing.Image
	var newRef *string
	if p.Image != nil {
		stored, err := s.assets.Store(ctx, p.Image.Content, p.Image.Size, p.Image.Filename)
		if err != nil {
			return nil, s.storageError(ctx, "update", err)
		}
		newRef = &stored
		span.SetAttributes(attribute.String("asset.ref", stored))
	}

	next := *existing
	if v.name != nil {
		next.Name = *v.name
	}
	if v.author != nil {
		next.Author = *v.author
	}
	if d, ok := v.description.Get(); ok {
		next.Description = d
	}
	if v.price != nil {
		next.Price = *v.price
	}
	if newRef != nil {
		next.Image = newRef
	}

	if err := s.repo.Update(ctx, &next); err != nil {
		s.handleOrphan(ctx, newRef)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, s.storageError(ctx, "update", err)
	}

	if newRef != nil && oldRef != nil && *oldRef != "" && *oldRef != *newRef {
		s.cleaner.Schedule(ctx, *oldRef, reasonSuperseded)
	}

	return &next, nil
}

// Delete removes the record and, once that is confirmed, its asset.
func (s *Service) Delete(ctx context.Context, id uint) (err error) {
	ctx, span := s.tracer.Start(ctx, "catalog.Delete", trace.WithAttributes(attribute.Int64("book.id", int64(id))))
	defer func() { endSpan(span, err) }()

	existing, err := s.find(ctx, "delete", id)
	if err != nil {
		return err
	}

	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return s.storageError(ctx, "delete", err)
	}
	if !deleted {
		return ErrNotFound
	}

	if existing.HasImage() {
		s.cleaner.Schedule(ctx, *existing.Image, reasonDeleted)
	}
	return nil
}

func (s *Service) find(ctx context.Context, op string, id uint) (*model.Book, error) {
	b, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, s.storageError(ctx, op, err)
	}
	return b, nil
}

// handleOrphan deals with an asset stored earlier in a request whose record
// write failed. Without compensation the asset is left on disk and logged.
func (s *Service) handleOrphan(ctx context.Context, ref *string) {
	if ref == nil {
		return
	}
	if s.compensate {
		s.cleaner.Schedule(ctx, *ref, reasonOrphaned)
		return
	}
	logging.FromContext(ctx, s.logger).WarnContext(ctx, "asset orphaned after failed record write",
		slog.String("asset_ref", *ref),
	)
}

func (s *Service) storageError(ctx context.Context, op string, err error) error {
	logging.FromContext(ctx, s.logger).ErrorContext(ctx, "book storage failure",
		slog.String("op", op),
		slog.Any("error", err),
	)
	return &StorageError{Op: op, Err: err}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		var verr *ValidationError
		switch {
		case errors.Is(err, ErrNotFound), errors.As(err, &verr):
			span.SetAttributes(attribute.String("catalog.outcome", err.Error()))
		default:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.End()
}
