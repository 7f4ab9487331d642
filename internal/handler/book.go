package handler

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/netip"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/snnyvrz/book-catalog/internal/catalog"
	"github.com/snnyvrz/book-catalog/internal/model"
	"github.com/snnyvrz/book-catalog/internal/validation"
)

// bodyOverhead is the allowance for form fields on top of the image size limit.
const bodyOverhead = 1 << 20

type BookService interface {
	Create(ctx context.Context, in catalog.CreateInput) (*model.Book, error)
	List(ctx context.Context) ([]model.Book, error)
	Get(ctx context.Context, id uint) (*model.Book, error)
	Update(ctx context.Context, id uint, p catalog.Patch) (*model.Book, error)
	Delete(ctx context.Context, id uint) error
}

type BookHandler struct {
	svc            BookService
	maxUploadBytes int64
	trustedProxies []netip.Prefix
}

func NewBookHandler(svc BookService, maxUploadBytes int64, trustedProxies []netip.Prefix) *BookHandler {
	return &BookHandler{svc: svc, maxUploadBytes: maxUploadBytes, trustedProxies: trustedProxies}
}

func (h *BookHandler) RegisterRoutes(r *gin.RouterGroup) {
	books := r.Group("/books")
	{
		books.POST("", h.CreateBook)
		books.GET("", h.ListBooks)
		books.GET("/:id", h.GetBookByID)
		books.PUT("/:id", h.UpdateBook)
		books.DELETE("/:id", h.DeleteBook)
	}
}

// CreateBook godoc
// @Summary      Create a book
// @Description  Create a book from form fields with an optional cover image
// @Tags         books
// @Accept       multipart/form-data
// @Accept       x-www-form-urlencoded
// @Accept       json
// @Produce      json
// @Param        name         formData  string  true   "Book name"
// @Param        author       formData  string  true   "Author"
// @Param        description  formData  string  false  "Description"
// @Param        price        formData  string  true   "Price, up to 2 decimals"
// @Param        image        formData  file    false  "Cover image"
// @Success      201  {object}  Book
// @Failure      400  {object}  validation.ErrorResponse   "Validation error"
// @Failure      500  {object}  validation.ErrorResponse   "Internal server error"
// @Router       /books [post]
func (h *BookHandler) CreateBook(c *gin.Context) {
	h.limitBody(c)

	var req CreateBookRequest
	if !validation.BindAndValidate(c, &req) {
		return
	}

	image, closeImage, ok := h.readImage(c)
	if !ok {
		return
	}
	defer closeImage()

	book, err := h.svc.Create(c.Request.Context(), catalog.CreateInput{
		Name:        string(req.Name),
		Author:      string(req.Author),
		Description: req.Description.ptr(),
		Price:       string(req.Price),
		Image:       image,
	})
	if err != nil {
		writeServiceError(c, err, "BOOK_CREATE_FAILED")
		return
	}

	c.JSON(http.StatusCreated, toBookResponse(c, *book, requestScheme(c, h.trustedProxies)))
}

// ListBooks godoc
// @Summary      List books
// @Description  Get all books, newest first
// @Tags         books
// @Produce      json
// @Success      200  {array}   Book
// @Failure      500  {object}  validation.ErrorResponse   "Internal server error"
// @Router       /books [get]
func (h *BookHandler) ListBooks(c *gin.Context) {
	books, err := h.svc.List(c.Request.Context())
	if err != nil {
		writeServiceError(c, err, "BOOK_LIST_FAILED")
		return
	}

	c.JSON(http.StatusOK, toBookListResponse(c, books, requestScheme(c, h.trustedProxies)))
}

// GetBookByID godoc
// @Summary      Get a book by ID
// @Tags         books
// @Produce      json
// @Param        id   path      int  true  "Book ID"
// @Success      200  {object}  Book
// @Failure      404  {object}  validation.ErrorResponse   "Book not found"
// @Failure      500  {object}  validation.ErrorResponse   "Internal server error"
// @Router       /books/{id} [get]
func (h *BookHandler) GetBookByID(c *gin.Context) {
	id, ok := parseBookID(c)
	if !ok {
		writeNotFound(c)
		return
	}

	book, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err, "BOOK_FETCH_FAILED")
		return
	}

	c.JSON(http.StatusOK, toBookResponse(c, *book, requestScheme(c, h.trustedProxies)))
}

// UpdateBook godoc
// @Summary      Update a book
// @Description  Replace the supplied fields of a book. Omitted fields keep their value; a new image replaces the old one.
// @Tags         books
// @Accept       multipart/form-data
// @Accept       x-www-form-urlencoded
// @Accept       json
// @Produce      json
// @Param        id           path      int     true   "Book ID"
// @Param        name         formData  string  false  "Book name"
// @Param        author       formData  string  false  "Author"
// @Param        description  formData  string  false  "Description, empty clears it"
// @Param        price        formData  string  false  "Price, up to 2 decimals"
// @Param        image        formData  file    false  "Cover image"
// @Success      200  {object}  Book
// @Failure      400  {object}  validation.ErrorResponse   "Validation error"
// @Failure      404  {object}  validation.ErrorResponse   "Book not found"
// @Failure      500  {object}  validation.ErrorResponse   "Internal server error"
// @Router       /books/{id} [put]
func (h *BookHandler) UpdateBook(c *gin.Context) {
	id, ok := parseBookID(c)
	if !ok {
		writeNotFound(c)
		return
	}

	h.limitBody(c)

	var req UpdateBookRequest
	if resp, ok := validation.Bind(c, &req); !ok {
		// an unknown id wins over a malformed body
		if _, err := h.svc.Get(c.Request.Context(), id); errors.Is(err, catalog.ErrNotFound) {
			writeNotFound(c)
			return
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, resp)
		return
	}

	image, closeImage, ok := h.readImage(c)
	if !ok {
		return
	}
	defer closeImage()

	book, err := h.svc.Update(c.Request.Context(), id, catalog.Patch{
		Name:        optional(req.Name),
		Author:      optional(req.Author),
		Description: optional(req.Description),
		Price:       optional(req.Price),
		Image:       image,
	})
	if err != nil {
		writeServiceError(c, err, "BOOK_UPDATE_FAILED")
		return
	}

	c.JSON(http.StatusOK, toBookResponse(c, *book, requestScheme(c, h.trustedProxies)))
}

// DeleteBook godoc
// @Summary      Delete a book
// @Description  Delete a book and its cover image
// @Tags         books
// @Produce      json
// @Param        id   path      int  true  "Book ID"
// @Success      200  {object}  DeleteBookResponse
// @Failure      404  {object}  validation.ErrorResponse   "Book not found"
// @Failure      500  {object}  validation.ErrorResponse   "Internal server error"
// @Router       /books/{id} [delete]
func (h *BookHandler) DeleteBook(c *gin.Context) {
	id, ok := parseBookID(c)
	if !ok {
		writeNotFound(c)
		return
	}

	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		writeServiceError(c, err, "BOOK_DELETE_FAILED")
		return
	}

	c.JSON(http.StatusOK, DeleteBookResponse{Success: true})
}

func (h *BookHandler) limitBody(c *gin.Context) {
	if h.maxUploadBytes > 0 && c.Request.Body != nil {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+bodyOverhead)
	}
}

// readImage returns the uploaded "image" file, if any, and a func that
// releases it.
func (h *BookHandler) readImage(c *gin.Context) (*catalog.Upload, func(), bool) {
	noop := func() {}

	if !strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		return nil, noop, true
	}

	fh, err := c.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, noop, true
	}
	if err != nil {
		writeError(c, http.StatusBadRequest,
			validation.CodeInvalidRequest,
			"invalid image upload",
		)
		return nil, noop, false
	}

	var f multipart.File
	if f, err = fh.Open(); err != nil {
		writeError(c, http.StatusBadRequest,
			validation.CodeInvalidRequest,
			"invalid image upload",
		)
		return nil, noop, false
	}

	return &catalog.Upload{
		Filename: fh.Filename,
		Size:     fh.Size,
		Content:  f,
	}, func() { _ = f.Close() }, true
}

func optional(v *formValue) catalog.Optional[string] {
	if v == nil {
		return catalog.Optional[string]{}
	}
	return catalog.Some(string(*v))
}
