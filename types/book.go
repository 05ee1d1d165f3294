package types

import "time"

// Book represents a single owned book in a user's inventory.
// Every book belongs to exactly one user; ownership never transfers.
type Book struct {
	// ID is the unique identifier of the book record.
	ID int `json:"id" db:"id"`

	// UserID identifies the user who owns this record.
	UserID int `json:"user_id" db:"user_id"`

	// Title is the book's title.
	Title string `json:"title" db:"title"`

	// Author is the book's author.
	Author string `json:"author" db:"author"`

	// ISBN is the book's ISBN. A user may not hold two records with the
	// same ISBN; the same ISBN may appear under different users.
	ISBN string `json:"isbn" db:"isbn"`

	// DatePurchased is the date the user bought the book, if known.
	DatePurchased *time.Time `json:"date_purchased,omitempty" db:"date_purchased"`

	// Publisher is the book's publisher, if known.
	Publisher string `json:"publisher,omitempty" db:"publisher"`

	// Notes holds free-form notes about the copy.
	Notes string `json:"notes,omitempty" db:"notes"`

	// CoverKey is the object-storage key of the uploaded cover image,
	// empty when no cover has been uploaded.
	CoverKey string `json:"-" db:"cover_key"`

	// CreatedAt is the timestamp when the record was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the record.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
