package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shelftrack/apiserver/internal/auth"
	"github.com/shelftrack/apiserver/internal/services"
	"github.com/shelftrack/apiserver/types"
)

// newTestAPI wires the book routes behind RequireAuth exactly as the
// server does, backed by the in-memory repository.
func newTestAPI(t *testing.T) (http.Handler, *fakeBookRepo) {
	t.Helper()
	repo := newFakeBookRepo()
	svc := services.NewBookService(repo, nil, nil, nil)
	handler := NewBookHandler(svc, nil)

	router := chi.NewRouter()
	router.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(RequireAuth(testSecret))
			BookRouter(r, handler)
		})
	})
	return router, repo
}

func tokenFor(t *testing.T, userID int) string {
	t.Helper()
	token, err := auth.IssueToken(userID, fmt.Sprintf("user%d@example.com", userID), []byte(testSecret), time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func doJSON(t *testing.T, handler http.Handler, method, target, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func addBook(t *testing.T, handler http.Handler, token, body string) types.Book {
	t.Helper()
	rec := doJSON(t, handler, http.MethodPost, "/api/books", token, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add book: status = %d: %s", rec.Code, rec.Body)
	}
	var book types.Book
	if err := json.Unmarshal(rec.Body.Bytes(), &book); err != nil {
		t.Fatalf("decode book: %v", err)
	}
	return book
}

func TestBooksRequireToken(t *testing.T) {
	api, _ := newTestAPI(t)

	rec := doJSON(t, api, http.MethodGet, "/api/books", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestCreateAndListRoundTrip(t *testing.T) {
	api, _ := newTestAPI(t)
	token := tokenFor(t, 1)

	created := addBook(t, api, token, `{
		"title": "Dune",
		"author": "Frank Herbert",
		"isbn": "9780441013593",
		"date_purchased": "2024-03-01",
		"publisher": "Ace",
		"notes": "gift"
	}`)
	if created.ID == 0 {
		t.Error("expected generated id")
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Error("expected generated timestamps")
	}
	if created.DatePurchased == nil || created.DatePurchased.Format("2006-01-02") != "2024-03-01" {
		t.Errorf("date_purchased = %v, want 2024-03-01", created.DatePurchased)
	}

	rec := doJSON(t, api, http.MethodGet, "/api/books", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status = %d", rec.Code)
	}
	var books []types.Book
	if err := json.Unmarshal(rec.Body.Bytes(), &books); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(books) != 1 {
		t.Fatalf("list returned %d books, want 1", len(books))
	}
	got := books[0]
	if got.Title != "Dune" || got.Author != "Frank Herbert" || got.ISBN != "9780441013593" ||
		got.Publisher != "Ace" || got.Notes != "gift" {
		t.Errorf("listed book does not match submitted fields: %+v", got)
	}
}

func TestListIsScopedToOwner(t *testing.T) {
	api, _ := newTestAPI(t)
	alice := tokenFor(t, 1)
	bob := tokenFor(t, 2)

	addBook(t, api, alice, `{"title":"Dune","author":"Herbert","isbn":"1"}`)

	rec := doJSON(t, api, http.MethodGet, "/api/books", bob, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status = %d", rec.Code)
	}
	var books []types.Book
	if err := json.Unmarshal(rec.Body.Bytes(), &books); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(books) != 0 {
		t.Errorf("another user's list leaked %d books", len(books))
	}
}

func TestCreateMissingFields(t *testing.T) {
	api, _ := newTestAPI(t)
	token := tokenFor(t, 1)

	rec := doJSON(t, api, http.MethodPost, "/api/books", token, `{"title":"Dune"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestCreateDuplicateISBNReturnsConflictWithBook(t *testing.T) {
	api, _ := newTestAPI(t)
	token := tokenFor(t, 1)

	created := addBook(t, api, token, `{"title":"Dune","author":"Herbert","isbn":"9780441013593"}`)

	rec := doJSON(t, api, http.MethodPost, "/api/books", token, `{"title":"Dune copy","author":"Herbert","isbn":"9780441013593"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusConflict, rec.Body)
	}

	var resp ConflictResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode conflict: %v", err)
	}
	if resp.Book.ID != created.ID {
		t.Errorf("conflict carries book %d, want the existing record %d", resp.Book.ID, created.ID)
	}
	if resp.Message == "" {
		t.Error("conflict response has no message")
	}
}

func TestUpdatePartialMerge(t *testing.T) {
	api, _ := newTestAPI(t)
	token := tokenFor(t, 1)

	created := addBook(t, api, token, `{"title":"Dune","author":"Frank Herbert","isbn":"1","publisher":"Ace"}`)

	rec := doJSON(t, api, http.MethodPut, fmt.Sprintf("/api/books/%d", created.ID), token, `{"title":"Dune Messiah"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}

	var updated types.Book
	if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decode book: %v", err)
	}
	if updated.Title != "Dune Messiah" {
		t.Errorf("title = %q, want %q", updated.Title, "Dune Messiah")
	}
	if updated.Author != "Frank Herbert" || updated.Publisher != "Ace" {
		t.Errorf("fields absent from the payload changed: %+v", updated)
	}
}

func TestUpdateForeignBookIsNotFound(t *testing.T) {
	api, _ := newTestAPI(t)
	alice := tokenFor(t, 1)
	bob := tokenFor(t, 2)

	created := addBook(t, api, alice, `{"title":"Dune","author":"Herbert","isbn":"1"}`)

	rec := doJSON(t, api, http.MethodPut, fmt.Sprintf("/api/books/%d", created.ID), bob, `{"title":"mine now"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestDeleteBook(t *testing.T) {
	api, _ := newTestAPI(t)
	token := tokenFor(t, 1)

	created := addBook(t, api, token, `{"title":"Dune","author":"Herbert","isbn":"1"}`)

	rec := doJSON(t, api, http.MethodDelete, fmt.Sprintf("/api/books/%d", created.ID), token, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("expected empty body, got %q", rec.Body)
	}

	rec = doJSON(t, api, http.MethodDelete, fmt.Sprintf("/api/books/%d", created.ID), token, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete: status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestDeleteForeignBookIsNotFound(t *testing.T) {
	api, repo := newTestAPI(t)
	alice := tokenFor(t, 1)
	bob := tokenFor(t, 2)

	created := addBook(t, api, alice, `{"title":"Dune","author":"Herbert","isbn":"1"}`)

	rec := doJSON(t, api, http.MethodDelete, fmt.Sprintf("/api/books/%d", created.ID), bob, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	if _, ok := repo.books[created.ID]; !ok {
		t.Error("foreign delete removed the record")
	}
}

func TestSearchMissingQuery(t *testing.T) {
	api, _ := newTestAPI(t)
	token := tokenFor(t, 1)

	rec := doJSON(t, api, http.MethodGet, "/api/search", token, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestSearchScopedSubstringMatch(t *testing.T) {
	api, _ := newTestAPI(t)
	alice := tokenFor(t, 1)
	bob := tokenFor(t, 2)

	addBook(t, api, alice, `{"title":"Dune","author":"Frank Herbert","isbn":"9780441013593"}`)
	addBook(t, api, alice, `{"title":"Neuromancer","author":"William Gibson","isbn":"0000000000"}`)
	addBook(t, api, bob, `{"title":"Dune","author":"Frank Herbert","isbn":"9780441013593"}`)

	rec := doJSON(t, api, http.MethodGet, "/api/search?query=978", alice, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var books []types.Book
	if err := json.Unmarshal(rec.Body.Bytes(), &books); err != nil {
		t.Fatalf("decode results: %v", err)
	}
	if len(books) != 1 || books[0].ISBN != "9780441013593" {
		t.Fatalf("unexpected results: %+v", books)
	}
	if books[0].UserID != 1 {
		t.Errorf("search leaked a record owned by user %d", books[0].UserID)
	}

	rec = doJSON(t, api, http.MethodGet, "/api/search?query=zzz", alice, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("no-match search must be 200, got %d", rec.Code)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("no-match search body = %q, want empty array", body)
	}
}

func TestCoverEndpointsWithoutStorage(t *testing.T) {
	api, _ := newTestAPI(t)
	token := tokenFor(t, 1)

	created := addBook(t, api, token, `{"title":"Dune","author":"Herbert","isbn":"1"}`)

	rec := doJSON(t, api, http.MethodGet, fmt.Sprintf("/api/books/%d/cover", created.ID), token, "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}
