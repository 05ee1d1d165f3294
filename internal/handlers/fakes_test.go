package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/shelftrack/apiserver/internal/store"
	"github.com/shelftrack/apiserver/types"
)

// In-memory repositories mirroring the store layer's contracts,
// including owner scoping and uniqueness behavior.

type fakeUserRepo struct {
	nextID int
	users  map[string]types.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{nextID: 1, users: make(map[string]types.User)}
}

func (r *fakeUserRepo) GetByID(_ context.Context, id int) (types.User, error) {
	for _, u := range r.users {
		if u.ID == id {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (types.User, error) {
	u, ok := r.users[email]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) Create(_ context.Context, user types.User) (types.User, error) {
	if _, ok := r.users[user.Email]; ok {
		return types.User{}, store.ErrDuplicate
	}
	user.ID = r.nextID
	r.nextID++
	r.users[user.Email] = user
	return user, nil
}

type fakeBookRepo struct {
	nextID int
	books  map[int]types.Book
}

func newFakeBookRepo() *fakeBookRepo {
	return &fakeBookRepo{nextID: 1, books: make(map[int]types.Book)}
}

func (r *fakeBookRepo) ListByUser(_ context.Context, userID int) ([]types.Book, error) {
	books := make([]types.Book, 0)
	for id := r.nextID - 1; id >= 1; id-- {
		if book, ok := r.books[id]; ok && book.UserID == userID {
			books = append(books, book)
		}
	}
	return books, nil
}

func (r *fakeBookRepo) Get(_ context.Context, userID, id int) (types.Book, error) {
	book, ok := r.books[id]
	if !ok || book.UserID != userID {
		return types.Book{}, store.ErrNotFound
	}
	return book, nil
}

func (r *fakeBookRepo) GetByISBN(_ context.Context, userID int, isbn string) (types.Book, error) {
	for _, book := range r.books {
		if book.UserID == userID && book.ISBN == isbn {
			return book, nil
		}
	}
	return types.Book{}, store.ErrNotFound
}

func (r *fakeBookRepo) Create(ctx context.Context, book types.Book) (types.Book, error) {
	if _, err := r.GetByISBN(ctx, book.UserID, book.ISBN); err == nil {
		return types.Book{}, store.ErrDuplicate
	}
	now := time.Now()
	book.ID = r.nextID
	book.CreatedAt = now
	book.UpdatedAt = now
	r.nextID++
	r.books[book.ID] = book
	return book, nil
}

func (r *fakeBookRepo) Update(ctx context.Context, book types.Book) (types.Book, error) {
	existing, ok := r.books[book.ID]
	if !ok || existing.UserID != book.UserID {
		return types.Book{}, store.ErrNotFound
	}
	if other, err := r.GetByISBN(ctx, book.UserID, book.ISBN); err == nil && other.ID != book.ID {
		return types.Book{}, store.ErrDuplicate
	}
	book.UpdatedAt = time.Now()
	r.books[book.ID] = book
	return book, nil
}

func (r *fakeBookRepo) Delete(_ context.Context, userID, id int) error {
	book, ok := r.books[id]
	if !ok || book.UserID != userID {
		return store.ErrNotFound
	}
	delete(r.books, id)
	return nil
}

func (r *fakeBookRepo) Search(_ context.Context, userID int, query string) ([]types.Book, error) {
	query = strings.ToLower(query)
	books := make([]types.Book, 0)
	for _, book := range r.books {
		if book.UserID != userID {
			continue
		}
		if strings.Contains(strings.ToLower(book.Title), query) ||
			strings.Contains(strings.ToLower(book.Author), query) ||
			strings.Contains(strings.ToLower(book.ISBN), query) {
			books = append(books, book)
		}
	}
	return books, nil
}
