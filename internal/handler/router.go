package handler

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/snnyvrz/book-catalog/internal/asset"
	"github.com/snnyvrz/book-catalog/internal/middleware"
)

var defaultTrustedProxies = []string{"127.0.0.1", "::1"}

type RouterConfig struct {
	Logger           *slog.Logger
	Books            BookService
	Assets           asset.Store
	DB               Pinger
	AssetsPrefix     string
	MaxUploadBytes   int64
	CORSAllowOrigins []string
	// TrustedProxies may set forwarding headers. Nil means loopback only.
	TrustedProxies []string
	ServiceName    string
	Version        string
	StartTime      time.Time
}

// NewRouter wires middleware and every route except the API document.
func NewRouter(cfg RouterConfig) (*gin.Engine, error) {
	proxies := cfg.TrustedProxies
	if proxies == nil {
		proxies = defaultTrustedProxies
	}
	trusted, err := parseTrustedProxies(proxies)
	if err != nil {
		return nil, err
	}

	e := gin.New()
	if err := e.SetTrustedProxies(proxies); err != nil {
		return nil, err
	}
	e.Use(
		gin.Recovery(),
		middleware.RequestID(cfg.Logger),
		middleware.RequestLog(),
		middleware.CORS(cfg.CORSAllowOrigins),
	)
	e.MaxMultipartMemory = 8 << 20

	NewHealthHandler(cfg.DB, cfg.StartTime, cfg.Version, cfg.ServiceName).RegisterRoutes(e)
	NewAssetHandler(cfg.Assets, cfg.AssetsPrefix).RegisterRoutes(e)

	api := e.Group("/api")
	{
		NewBookHandler(cfg.Books, cfg.MaxUploadBytes, trusted).RegisterRoutes(api)
	}

	return e, nil
}
