package handler

import (
	"encoding/json"
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/snnyvrz/book-catalog/internal/asset"
	"github.com/snnyvrz/book-catalog/internal/model"
)

// parseBookID accepts positive decimal ids only.
func parseBookID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 0)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// requestScheme honors X-Forwarded-Proto only when the peer is one of the
// trusted proxies.
func requestScheme(c *gin.Context, trusted []netip.Prefix) string {
	if c.Request.TLS != nil {
		return "https"
	}
	if !fromTrustedProxy(c.RemoteIP(), trusted) {
		return "http"
	}
	switch proto := strings.ToLower(c.GetHeader("X-Forwarded-Proto")); proto {
	case "http", "https":
		return proto
	}
	return "http"
}

func fromTrustedProxy(remote string, trusted []netip.Prefix) bool {
	addr, err := netip.ParseAddr(remote)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// parseTrustedProxies accepts the same entries as gin's SetTrustedProxies:
// single addresses or CIDR ranges.
func parseTrustedProxies(entries []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if strings.Contains(e, "/") {
			p, err := netip.ParsePrefix(e)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", e, err)
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(e)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", e, err)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

func toBookResponse(c *gin.Context, b model.Book, scheme string) Book {
	return Book{
		ID:          b.ID,
		Name:        b.Name,
		Author:      b.Author,
		Description: b.Description,
		Price:       json.Number(b.Price.StringFixed(2)),
		Image:       b.Image,
		CreatedAt:   model.Timestamp{Time: b.CreatedAt},
		UpdatedAt:   model.Timestamp{Time: b.UpdatedAt},
		ImageURL:    asset.ResolveURL(b.Image, scheme, c.Request.Host),
	}
}

func toBookListResponse(c *gin.Context, books []model.Book, scheme string) []Book {
	out := make([]Book, 0, len(books))
	for _, b := range books {
		out = append(out, toBookResponse(c, b, scheme))
	}
	return out
}
