package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ogvapps/biblioclasificador/internal/dto"
	"github.com/ogvapps/biblioclasificador/internal/models"
	appErrors "github.com/ogvapps/biblioclasificador/pkg/errors"
)

type bookRepository interface {
	List(ctx context.Context, filter models.BookFilter) ([]models.Book, int, error)
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Book, error)
	Create(ctx context.Context, book *models.Book) error
	Update(ctx context.Context, book *models.Book) error
	Delete(ctx context.Context, id string) error
}

// ShelfLayout is the physical placement grid of the library room.
type ShelfLayout struct {
	TotalColumns     int
	ShelvesPerColumn int
}

// BookService provides catalog use cases.
type BookService struct {
	repo      bookRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	layout    ShelfLayout
}

// NewBookService constructs a BookService instance.
func NewBookService(repo bookRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger, layout ShelfLayout) *BookService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if layout.TotalColumns <= 0 {
		layout.TotalColumns = 12
	}
	if layout.ShelvesPerColumn <= 0 {
		layout.ShelvesPerColumn = 9
	}
	return &BookService{repo: repo, cache: cache, validator: validate, logger: logger, layout: layout}
}

// List returns books matching the filter with pagination info.
func (s *BookService) List(ctx context.Context, filter models.BookFilter) ([]models.Book, *models.Pagination, error) {
	books, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list books")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 24
	}
	return books, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get fetches a single book.
func (s *BookService) Get(ctx context.Context, id string) (*models.Book, error) {
	book, err := s.repo.FindByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "book not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load book")
	}
	return book, nil
}

// Create registers a catalog entry. Stage and genre must be recognized
// values; corrupt classifications only ever arrive through old data, never
// through this path.
func (s *BookService) Create(ctx context.Context, req dto.CreateBookRequest) (*models.Book, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid book payload")
	}
	stage := models.ParseStage(req.Stage)
	if stage == models.StageUnknown {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown educational stage")
	}
	genre := models.ParseGenre(req.Genre)
	if genre == models.GenreUnknown {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown literary genre")
	}
	if err := s.validatePlacement(req.Column, req.Shelf); err != nil {
		return nil, err
	}

	book := &models.Book{
		Title:      req.Title,
		Author:     req.Author,
		Stage:      stage,
		Genre:      genre,
		Age:        req.Age,
		CoverImage: req.CoverImage,
		Column:     req.Column,
		Shelf:      req.Shelf,
		Synopsis:   req.Synopsis,
	}
	if err := s.repo.Create(ctx, book); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create book")
	}

	s.invalidateDashboards(ctx)
	s.logger.Info("book registered", zap.String("book_id", book.ID), zap.String("title", book.Title))
	return book, nil
}

// Update modifies the descriptive fields of a catalog entry.
func (s *BookService) Update(ctx context.Context, id string, req dto.UpdateBookRequest) (*models.Book, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid book payload")
	}

	book, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		book.Title = *req.Title
	}
	if req.Author != nil {
		book.Author = *req.Author
	}
	if req.Stage != nil {
		stage := models.ParseStage(*req.Stage)
		if stage == models.StageUnknown {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown educational stage")
		}
		book.Stage = stage
	}
	if req.Genre != nil {
		genre := models.ParseGenre(*req.Genre)
		if genre == models.GenreUnknown {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown literary genre")
		}
		book.Genre = genre
	}
	if req.Age != nil {
		book.Age = *req.Age
	}
	if req.CoverImage != nil {
		book.CoverImage = req.CoverImage
	}
	if req.Column != nil {
		book.Column = req.Column
	}
	if req.Shelf != nil {
		book.Shelf = req.Shelf
	}
	if req.Synopsis != nil {
		book.Synopsis = req.Synopsis
	}
	if err := s.validatePlacement(book.Column, book.Shelf); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, book); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update book")
	}

	s.invalidateDashboards(ctx)
	return book, nil
}

// Delete removes a catalog entry. An active loan on the book stays in the
// ledger with its title snapshot and is closed normally later.
func (s *BookService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete book")
	}

	s.invalidateDashboards(ctx)
	s.logger.Info("book deleted", zap.String("book_id", id))
	return nil
}

func (s *BookService) validatePlacement(column, shelf *int) error {
	if column != nil && (*column < 1 || *column > s.layout.TotalColumns) {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("column must be between 1 and %d", s.layout.TotalColumns))
	}
	if shelf != nil && (*shelf < 1 || *shelf > s.layout.ShelvesPerColumn) {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("shelf must be between 1 and %d", s.layout.ShelvesPerColumn))
	}
	return nil
}

func (s *BookService) invalidateDashboards(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, "dashboard:*"); err != nil {
		s.logger.Warn("dashboard cache invalidation failed", zap.Error(err))
	}
}
