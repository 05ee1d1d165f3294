package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/shelftrack/apiserver/internal/mq"
	"github.com/shelftrack/apiserver/internal/storage"
	"github.com/shelftrack/apiserver/internal/store"
	"github.com/shelftrack/apiserver/types"
)

// BookRepository defines persistence operations for books.
type BookRepository interface {
	ListByUser(ctx context.Context, userID int) ([]types.Book, error)
	Get(ctx context.Context, userID, id int) (types.Book, error)
	GetByISBN(ctx context.Context, userID int, isbn string) (types.Book, error)
	Create(ctx context.Context, book types.Book) (types.Book, error)
	Update(ctx context.Context, book types.Book) (types.Book, error)
	Delete(ctx context.Context, userID, id int) error
	Search(ctx context.Context, userID int, query string) ([]types.Book, error)
}

// DuplicateISBNError reports that the user already holds a record with
// the requested ISBN. Existing carries the conflicting record so the
// caller can show it; it is always the requesting user's own data.
type DuplicateISBNError struct {
	Existing types.Book
}

func (e *DuplicateISBNError) Error() string {
	return fmt.Sprintf("isbn %s is already in your inventory", e.Existing.ISBN)
}

// BookFields is the caller-supplied portion of a book record.
type BookFields struct {
	Title         string
	Author        string
	ISBN          string
	DatePurchased *time.Time
	Publisher     string
	Notes         string
}

// BookUpdate carries a partial update. Nil fields leave the stored
// value unchanged; updates are a field-wise merge, not a row replace.
type BookUpdate struct {
	Title         *string
	Author        *string
	ISBN          *string
	DatePurchased *time.Time
	Publisher     *string
	Notes         *string
}

// BookService encapsulates inventory use-cases. The events and covers
// collaborators are optional; when nil, event publishing is skipped and
// cover endpoints report storage as disabled.
type BookService struct {
	repo   BookRepository
	events *mq.MQ
	covers *storage.Storage
	logger *slog.Logger
}

func NewBookService(repo BookRepository, events *mq.MQ, covers *storage.Storage, logger *slog.Logger) *BookService {
	if logger == nil {
		logger = slog.Default()
	}
	return &BookService{
		repo:   repo,
		events: events,
		covers: covers,
		logger: logger,
	}
}

// List returns the user's books, newest created first.
func (s *BookService) List(ctx context.Context, userID int) ([]types.Book, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Get returns a single owned record.
func (s *BookService) Get(ctx context.Context, userID, id int) (types.Book, error) {
	return s.repo.Get(ctx, userID, id)
}

// Add creates a record after validating the required fields. A
// duplicate ISBN under the same user fails with DuplicateISBNError; the
// same ISBN under another user is unaffected.
func (s *BookService) Add(ctx context.Context, userID int, fields BookFields) (types.Book, error) {
	fields = trimBookFields(fields)
	if err := validateBookFields(fields); err != nil {
		return types.Book{}, err
	}

	created, err := s.repo.Create(ctx, types.Book{
		UserID:        userID,
		Title:         fields.Title,
		Author:        fields.Author,
		ISBN:          fields.ISBN,
		DatePurchased: fields.DatePurchased,
		Publisher:     fields.Publisher,
		Notes:         fields.Notes,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return types.Book{}, s.duplicateISBN(ctx, userID, fields.ISBN)
		}
		return types.Book{}, err
	}

	s.publishEvent(ctx, types.BookEventAdded, created)
	return created, nil
}

// Update merges the supplied fields into the owner's record. A record
// that is absent or owned by someone else fails as store.ErrNotFound.
func (s *BookService) Update(ctx context.Context, userID, id int, update BookUpdate) (types.Book, error) {
	book, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return types.Book{}, err
	}

	if update.Title != nil {
		book.Title = strings.TrimSpace(*update.Title)
	}
	if update.Author != nil {
		book.Author = strings.TrimSpace(*update.Author)
	}
	if update.ISBN != nil {
		book.ISBN = strings.TrimSpace(*update.ISBN)
	}
	if update.DatePurchased != nil {
		book.DatePurchased = update.DatePurchased
	}
	if update.Publisher != nil {
		book.Publisher = strings.TrimSpace(*update.Publisher)
	}
	if update.Notes != nil {
		book.Notes = *update.Notes
	}

	if err := validateBookFields(BookFields{Title: book.Title, Author: book.Author, ISBN: book.ISBN}); err != nil {
		return types.Book{}, err
	}

	updated, err := s.repo.Update(ctx, book)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return types.Book{}, s.duplicateISBN(ctx, userID, book.ISBN)
		}
		return types.Book{}, err
	}

	s.publishEvent(ctx, types.BookEventUpdated, updated)
	return updated, nil
}

// Delete removes the owner's record. Deleting an absent, foreign-owned
// or already-deleted record fails as store.ErrNotFound.
func (s *BookService) Delete(ctx context.Context, userID, id int) error {
	book, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return err
	}

	if s.covers != nil && book.CoverKey != "" {
		if err := s.covers.Delete(ctx, book.CoverKey); err != nil {
			s.logger.Warn("failed to delete cover object", "key", book.CoverKey, "error", err)
		}
	}

	s.publishEvent(ctx, types.BookEventRemoved, book)
	return nil
}

// Search returns the user's books matching the query as a
// case-insensitive substring of title, author or ISBN. An empty query
// is rejected; callers fall back to List instead.
func (s *BookService) Search(ctx context.Context, userID int, query string) ([]types.Book, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidInput)
	}
	return s.repo.Search(ctx, userID, query)
}

// UploadCover stores a cover image for the owner's record and records
// the object key on the row.
func (s *BookService) UploadCover(ctx context.Context, userID, id int, r io.Reader, size int64, contentType string) error {
	if s.covers == nil {
		return ErrCoverStorageDisabled
	}

	book, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return err
	}

	key := storage.CoverKey(userID, id)
	if err := s.covers.Put(ctx, key, r, size, contentType); err != nil {
		return err
	}

	if book.CoverKey != key {
		book.CoverKey = key
		if _, err := s.repo.Update(ctx, book); err != nil {
			return err
		}
	}
	return nil
}

// GetCover opens the stored cover image for the owner's record.
// A record without a cover fails as store.ErrNotFound.
func (s *BookService) GetCover(ctx context.Context, userID, id int) (io.ReadCloser, error) {
	if s.covers == nil {
		return nil, ErrCoverStorageDisabled
	}

	book, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if book.CoverKey == "" {
		return nil, store.ErrNotFound
	}
	return s.covers.Get(ctx, book.CoverKey)
}

func (s *BookService) duplicateISBN(ctx context.Context, userID int, isbn string) error {
	existing, err := s.repo.GetByISBN(ctx, userID, isbn)
	if err != nil {
		// The conflicting row vanished between the violation and the
		// lookup; report the conflict without the record.
		return &DuplicateISBNError{Existing: types.Book{ISBN: isbn, UserID: userID}}
	}
	return &DuplicateISBNError{Existing: existing}
}

func (s *BookService) publishEvent(ctx context.Context, action types.BookEventAction, book types.Book) {
	if s.events == nil {
		return
	}

	event := types.BookEvent{
		Action:     action,
		UserID:     book.UserID,
		Book:       book,
		OccurredAt: time.Now(),
	}
	if _, err := s.events.PublishJSON(ctx, mq.BookEventsChannel, event, map[string]string{
		"action": string(action),
	}); err != nil {
		s.logger.Warn("failed to publish book event", "action", action, "book_id", book.ID, "error", err)
	}
}

func trimBookFields(fields BookFields) BookFields {
	fields.Title = strings.TrimSpace(fields.Title)
	fields.Author = strings.TrimSpace(fields.Author)
	fields.ISBN = strings.TrimSpace(fields.ISBN)
	fields.Publisher = strings.TrimSpace(fields.Publisher)
	return fields
}

func validateBookFields(fields BookFields) error {
	if fields.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if fields.Author == "" {
		return fmt.Errorf("%w: author is required", ErrInvalidInput)
	}
	if fields.ISBN == "" {
		return fmt.Errorf("%w: isbn is required", ErrInvalidInput)
	}
	return nil
}
