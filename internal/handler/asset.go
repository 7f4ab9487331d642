package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/snnyvrz/book-catalog/internal/asset"
	"github.com/snnyvrz/book-catalog/internal/logging"
)

// AssetHandler serves stored assets read-only under the public prefix.
type AssetHandler struct {
	store  asset.Store
	prefix string
}

func NewAssetHandler(store asset.Store, prefix string) *AssetHandler {
	return &AssetHandler{store: store, prefix: "/" + strings.Trim(prefix, "/")}
}

func (h *AssetHandler) RegisterRoutes(e *gin.Engine) {
	assets := e.Group(h.prefix)
	{
		assets.GET("/*filepath", h.ServeAsset)
		assets.HEAD("/*filepath", h.ServeAsset)
	}
}

func (h *AssetHandler) ServeAsset(c *gin.Context) {
	name := strings.Trim(c.Param("filepath"), "/")
	if name == "" || strings.Contains(name, "/") {
		h.notFound(c)
		return
	}

	ctx := c.Request.Context()

	obj, err := h.store.Open(ctx, h.prefix+"/"+name)
	if err != nil {
		if errors.Is(err, asset.ErrNotExist) {
			h.notFound(c)
			return
		}
		logging.FromContext(ctx).ErrorContext(ctx, "asset open failed",
			slog.String("asset", name),
			slog.Any("error", err),
		)
		writeError(c, http.StatusInternalServerError,
			"ASSET_FETCH_FAILED",
			internalErrorMessage,
		)
		return
	}
	defer obj.Content.Close()

	if obj.ContentType != "" {
		c.Header("Content-Type", obj.ContentType)
	}

	if rs, ok := obj.Content.(io.ReadSeeker); ok {
		http.ServeContent(c.Writer, c.Request, obj.Name, obj.ModTime, rs)
		return
	}

	c.DataFromReader(http.StatusOK, obj.Size, obj.ContentType, obj.Content, nil)
}

func (h *AssetHandler) notFound(c *gin.Context) {
	writeError(c, http.StatusNotFound,
		"ASSET_NOT_FOUND",
		"Asset not found",
	)
}
