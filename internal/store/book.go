package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shelftrack/apiserver/types"
)

// BookRepository handles persistence for books. Every query is scoped
// to the owning user; a record that exists under a different owner is
// indistinguishable from one that does not exist.
type BookRepository struct {
	db *sql.DB
}

func NewBookRepository(db *sql.DB) *BookRepository {
	return &BookRepository{db: db}
}

const bookColumns = `id, user_id, title, author, isbn, date_purchased, publisher, notes, cover_key, created_at, updated_at`

func scanBook(scanner interface{ Scan(...any) error }) (types.Book, error) {
	var book types.Book
	var datePurchased sql.NullTime
	err := scanner.Scan(
		&book.ID,
		&book.UserID,
		&book.Title,
		&book.Author,
		&book.ISBN,
		&datePurchased,
		&book.Publisher,
		&book.Notes,
		&book.CoverKey,
		&book.CreatedAt,
		&book.UpdatedAt,
	)
	if err != nil {
		return types.Book{}, err
	}
	if datePurchased.Valid {
		t := datePurchased.Time
		book.DatePurchased = &t
	}
	return book, nil
}

// ListByUser returns the user's books, newest created first.
func (r *BookRepository) ListByUser(ctx context.Context, userID int) ([]types.Book, error) {
	const query = `
		SELECT ` + bookColumns + `
		FROM books
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	books := make([]types.Book, 0)
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return books, nil
}

func (r *BookRepository) Get(ctx context.Context, userID, id int) (types.Book, error) {
	const query = `
		SELECT ` + bookColumns + `
		FROM books
		WHERE id = $1 AND user_id = $2`
	book, err := scanBook(r.db.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Book{}, ErrNotFound
		}
		return types.Book{}, err
	}
	return book, nil
}

// GetByISBN looks up the user's record for an ISBN, used to surface the
// conflicting record on a duplicate add.
func (r *BookRepository) GetByISBN(ctx context.Context, userID int, isbn string) (types.Book, error) {
	const query = `
		SELECT ` + bookColumns + `
		FROM books
		WHERE user_id = $1 AND isbn = $2`
	book, err := scanBook(r.db.QueryRowContext(ctx, query, userID, isbn))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Book{}, ErrNotFound
		}
		return types.Book{}, err
	}
	return book, nil
}

// Create inserts a new book. The books_user_isbn_key constraint
// enforces per-user ISBN uniqueness even under concurrent adds; a
// violation surfaces as ErrDuplicate.
func (r *BookRepository) Create(ctx context.Context, book types.Book) (types.Book, error) {
	now := time.Now()
	book.CreatedAt = now
	book.UpdatedAt = now

	const query = `
		INSERT INTO books (user_id, title, author, isbn, date_purchased, publisher, notes, cover_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		book.UserID,
		book.Title,
		book.Author,
		book.ISBN,
		book.DatePurchased,
		book.Publisher,
		book.Notes,
		book.CoverKey,
		book.CreatedAt,
		book.UpdatedAt,
	).Scan(&book.ID); err != nil {
		if isUniqueViolation(err) {
			return types.Book{}, ErrDuplicate
		}
		return types.Book{}, err
	}
	return book, nil
}

// Update writes the full row back for the owner's record. Changing the
// ISBN to one the user already holds surfaces as ErrDuplicate.
func (r *BookRepository) Update(ctx context.Context, book types.Book) (types.Book, error) {
	book.UpdatedAt = time.Now()

	const query = `
		UPDATE books
		SET title = $1,
			author = $2,
			isbn = $3,
			date_purchased = $4,
			publisher = $5,
			notes = $6,
			cover_key = $7,
			updated_at = $8
		WHERE id = $9 AND user_id = $10`
	result, err := r.db.ExecContext(
		ctx,
		query,
		book.Title,
		book.Author,
		book.ISBN,
		book.DatePurchased,
		book.Publisher,
		book.Notes,
		book.CoverKey,
		book.UpdatedAt,
		book.ID,
		book.UserID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return types.Book{}, ErrDuplicate
		}
		return types.Book{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Book{}, err
	}
	if affected == 0 {
		return types.Book{}, ErrNotFound
	}
	return book, nil
}

func (r *BookRepository) Delete(ctx context.Context, userID, id int) error {
	const query = `DELETE FROM books WHERE id = $1 AND user_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Search returns the user's books whose title, author or ISBN contains
// the query as a case-insensitive substring.
func (r *BookRepository) Search(ctx context.Context, userID int, query string) ([]types.Book, error) {
	const searchQuery = `
		SELECT ` + bookColumns + `
		FROM books
		WHERE user_id = $1
		  AND (title ILIKE '%' || $2 || '%'
			OR author ILIKE '%' || $2 || '%'
			OR isbn ILIKE '%' || $2 || '%')`
	rows, err := r.db.QueryContext(ctx, searchQuery, userID, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	books := make([]types.Book, 0)
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return books, nil
}
