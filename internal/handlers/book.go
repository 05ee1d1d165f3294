package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shelftrack/apiserver/internal/services"
	"github.com/shelftrack/apiserver/internal/store"
	"github.com/shelftrack/apiserver/types"
)

const (
	maxCoverBytes      = 8 << 20
	maxMultipartMemory = 8 << 20
	formFieldCover     = "cover"
)

// BookHandler provides HTTP handlers for the book inventory.
type BookHandler struct {
	bookService *services.BookService
	logger      *slog.Logger
}

// NewBookHandler constructs a handler with the provided service.
func NewBookHandler(bookService *services.BookService, logger *slog.Logger) *BookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BookHandler{
		bookService: bookService,
		logger:      logger,
	}
}

// BookRouter registers the inventory routes on the given router. The
// caller is expected to have applied RequireAuth already.
func BookRouter(r chi.Router, handler *BookHandler) {
	r.Get("/books", handler.ListBooks)
	r.Post("/books", handler.CreateBook)
	r.Route("/books/{bookID}", func(r chi.Router) {
		r.Put("/", handler.UpdateBook)
		r.Delete("/", handler.DeleteBook)
		r.Put("/cover", handler.UploadCover)
		r.Get("/cover", handler.GetCover)
	})
	r.Get("/search", handler.SearchBooks)
}

func (h *BookHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	books, err := h.bookService.List(r.Context(), identity.UserID)
	if err != nil {
		h.logger.Error("list books failed", "user_id", identity.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list books")
		return
	}

	writeJSON(w, http.StatusOK, books)
}

func (h *BookHandler) CreateBook(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req BookCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	datePurchased, err := parseDate(req.DatePurchased)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date_purchased")
		return
	}

	created, err := h.bookService.Add(r.Context(), identity.UserID, services.BookFields{
		Title:         req.Title,
		Author:        req.Author,
		ISBN:          req.ISBN,
		DatePurchased: datePurchased,
		Publisher:     req.Publisher,
		Notes:         req.Notes,
	})
	if err != nil {
		h.writeBookError(w, identity.UserID, err, "failed to create book")
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (h *BookHandler) UpdateBook(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	id, err := parseBookID(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "book not found")
		return
	}

	var req BookUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	update := services.BookUpdate{
		Title:     req.Title,
		Author:    req.Author,
		ISBN:      req.ISBN,
		Publisher: req.Publisher,
		Notes:     req.Notes,
	}
	if req.DatePurchased != nil {
		datePurchased, err := parseDate(req.DatePurchased)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date_purchased")
			return
		}
		update.DatePurchased = datePurchased
	}

	updated, err := h.bookService.Update(r.Context(), identity.UserID, id, update)
	if err != nil {
		h.writeBookError(w, identity.UserID, err, "failed to update book")
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (h *BookHandler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	id, err := parseBookID(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "book not found")
		return
	}

	if err := h.bookService.Delete(r.Context(), identity.UserID, id); err != nil {
		h.writeBookError(w, identity.UserID, err, "failed to delete book")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *BookHandler) SearchBooks(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	query := r.URL.Query().Get("query")
	books, err := h.bookService.Search(r.Context(), identity.UserID, query)
	if err != nil {
		h.writeBookError(w, identity.UserID, err, "failed to search books")
		return
	}

	writeJSON(w, http.StatusOK, books)
}

func (h *BookHandler) UploadCover(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	id, err := parseBookID(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "book not found")
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	files := r.MultipartForm.File[formFieldCover]
	if len(files) != 1 {
		writeError(w, http.StatusBadRequest, "exactly one cover file is required")
		return
	}

	fileHeader := files[0]
	file, err := fileHeader.Open()
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read cover file")
		return
	}
	data, err := readFileLimited(file, maxCoverBytes)
	_ = file.Close()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	err = h.bookService.UploadCover(r.Context(), identity.UserID, id, bytes.NewReader(data), int64(len(data)), contentType)
	if err != nil {
		h.writeBookError(w, identity.UserID, err, "failed to store cover")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *BookHandler) GetCover(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	id, err := parseBookID(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "book not found")
		return
	}

	reader, err := h.bookService.GetCover(r.Context(), identity.UserID, id)
	if err != nil {
		h.writeBookError(w, identity.UserID, err, "failed to load cover")
		return
	}
	defer reader.Close()

	// Sniff the content type from the first bytes of the object.
	head := make([]byte, 512)
	n, err := io.ReadFull(reader, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		h.logger.Error("read cover failed", "user_id", identity.UserID, "book_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load cover")
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(head[:n]))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(head[:n])
	_, _ = io.Copy(w, reader)
}

func (h *BookHandler) writeBookError(w http.ResponseWriter, userID int, err error, fallback string) {
	var duplicate *services.DuplicateISBNError
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &duplicate):
		writeJSON(w, http.StatusConflict, ConflictResponse{
			Message: duplicate.Error(),
			Book:    duplicate.Existing,
		})
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "book not found")
	case errors.Is(err, services.ErrCoverStorageDisabled):
		writeError(w, http.StatusServiceUnavailable, "cover storage is not available")
	default:
		h.logger.Error(fallback, "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

// BookCreateRequest is the JSON payload for creating a book.
type BookCreateRequest struct {
	Title         string  `json:"title"`
	Author        string  `json:"author"`
	ISBN          string  `json:"isbn"`
	DatePurchased *string `json:"date_purchased"`
	Publisher     string  `json:"publisher"`
	Notes         string  `json:"notes"`
}

// BookUpdateRequest is the JSON payload for a partial update; absent
// fields leave the stored values unchanged.
type BookUpdateRequest struct {
	Title         *string `json:"title"`
	Author        *string `json:"author"`
	ISBN          *string `json:"isbn"`
	DatePurchased *string `json:"date_purchased"`
	Publisher     *string `json:"publisher"`
	Notes         *string `json:"notes"`
}

// ConflictResponse is the 409 payload carrying the conflicting record.
// The record always belongs to the requesting user.
type ConflictResponse struct {
	Message string     `json:"message"`
	Book    types.Book `json:"book"`
}

func parseBookID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "bookID")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, errors.New("invalid book id")
	}
	return id, nil
}

func parseDate(raw *string) (*time.Time, error) {
	if raw == nil {
		return nil, nil
	}
	value := strings.TrimSpace(*raw)
	if value == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return &t, nil
		}
	}
	return nil, errors.New("invalid date")
}

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	limited := io.LimitReader(reader, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, errors.New("failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, errors.New("uploaded file too large")
	}
	return data, nil
}
