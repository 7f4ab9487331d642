package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/snnyvrz/book-catalog/internal/asset"
	"github.com/snnyvrz/book-catalog/internal/catalog"
	"github.com/snnyvrz/book-catalog/internal/cleanup"
	"github.com/snnyvrz/book-catalog/internal/logging"
	"github.com/snnyvrz/book-catalog/internal/model"
	"github.com/snnyvrz/book-catalog/internal/repository"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testMaxUpload = 1 << 20

type testApp struct {
	db     *gorm.DB
	pool   *cleanup.Pool
	router *gin.Engine
}

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

func setupTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := setupTestDB(t)
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB from gorm: %v", err)
	}

	store, err := asset.NewLocalStore(t.TempDir(), "/uploads")
	if err != nil {
		t.Fatalf("failed to create asset store: %v", err)
	}

	logger := logging.Discard()
	pool := cleanup.NewPool(store, logger, 1)
	t.Cleanup(func() { _ = pool.Close(context.Background()) })

	svc := catalog.NewService(
		repository.NewGormBookRepository(db),
		store,
		pool,
		catalog.WithLogger(logger),
		catalog.WithMaxUploadBytes(testMaxUpload),
	)

	router, err := NewRouter(RouterConfig{
		Logger:         logger,
		Books:          svc,
		Assets:         store,
		DB:             sqlDB,
		AssetsPrefix:   "/uploads",
		MaxUploadBytes: testMaxUpload,
		ServiceName:    "books-api",
		Version:        "test",
		StartTime:      time.Now(),
	})
	if err != nil {
		t.Fatalf("failed to build router: %v", err)
	}

	return &testApp{db: db, pool: pool, router: router}
}

func setupRouterWithService(t *testing.T, svc BookService) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := asset.NewLocalStore(t.TempDir(), "/uploads")
	if err != nil {
		t.Fatalf("failed to create asset store: %v", err)
	}

	router, err := NewRouter(RouterConfig{
		Logger:       logging.Discard(),
		Books:        svc,
		Assets:       store,
		DB:           pingerFunc(func(context.Context) error { return nil }),
		AssetsPrefix: "/uploads",
		ServiceName:  "books-api",
		StartTime:    time.Now(),
	})
	if err != nil {
		t.Fatalf("failed to build router: %v", err)
	}
	return router
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) PingContext(ctx context.Context) error { return f(ctx) }

type formFile struct {
	field    string
	filename string
	content  []byte
}

func multipartRequest(t *testing.T, method, target string, fields map[string]string, files ...formFile) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	for _, f := range files {
		fw, err := mw.CreateFormFile(f.field, f.filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := fw.Write(f.content); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest(method, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func jsonRequest(t *testing.T, method, target string, payload any) *http.Request {
	t.Helper()

	b, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func (a *testApp) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decodeBook(t *testing.T, w *httptest.ResponseRecorder) Book {
	t.Helper()

	var b Book
	if err := json.Unmarshal(w.Body.Bytes(), &b); err != nil {
		t.Fatalf("failed to unmarshal response: %v, body=%s", err, w.Body.String())
	}
	return b
}

// fetchURL requests the path of an absolute URL returned by the API.
func (a *testApp) fetchURL(t *testing.T, raw string) *httptest.ResponseRecorder {
	t.Helper()

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("invalid url %q: %v", raw, err)
	}
	req := httptest.NewRequest(http.MethodGet, u.RequestURI(), nil)
	return a.do(req)
}

func readAll(t *testing.T, r io.Reader) []byte {
	t.Helper()
	b, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return b
}
