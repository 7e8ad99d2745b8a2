package imagerender

import (
	"fmt"
	"sync"
)

// Cache memoizes RenderRange results per (document, range, dpi). Reuse is an
// optimization only; a miss always falls through to the wrapped Rasterizer.
// Unbounded by design: the key space is the set of ranges of one small
// document and the cache lives no longer than its session.
type Cache struct {
	inner Rasterizer
	mu    sync.Mutex
	pages map[string][]Page
}

// NewCache wraps a Rasterizer with memoization.
func NewCache(inner Rasterizer) *Cache {
	return &Cache{inner: inner, pages: make(map[string][]Page)}
}

func cacheKey(pdfPath string, start, end, dpi int) string {
	return fmt.Sprintf("%s:%d:%d:%d", pdfPath, start, end, dpi)
}

// RenderRange returns the stored result for the same key, or renders and
// stores. Errors are never cached.
func (c *Cache) RenderRange(pdfPath string, start, end int, opts Options) ([]Page, error) {
	key := cacheKey(pdfPath, start, end, opts.DPI)

	c.mu.Lock()
	if pages, ok := c.pages[key]; ok {
		c.mu.Unlock()
		return pages, nil
	}
	c.mu.Unlock()

	pages, err := c.inner.RenderRange(pdfPath, start, end, opts)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.pages[key] = pages
	c.mu.Unlock()
	return pages, nil
}
