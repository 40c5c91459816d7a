package service

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const defaultImageName = "default.png"

// preferred image extensions, best first
var imageExtensions = []string{".webp", ".png"}

// ImageResolver maps a product to the public URL of its picture.
type ImageResolver interface {
	Resolve(ctx context.Context, productID int, name string) string
}

// ImageSource lists the product image files of one storage backend.
type ImageSource interface {
	List(ctx context.Context) ([]string, error)
	URL(file string) string
}

// ImageBaseName is the file name, without extension, expected for a product.
func ImageBaseName(productID int, name string) string {
	return fmt.Sprintf("%d_%s", productID, strings.ReplaceAll(name, " ", "_"))
}

// ImageCatalog is an in-memory index of product images built from a source
// on first use. Rebuild refreshes it after images are uploaded.
type ImageCatalog struct {
	source     ImageSource
	defaultURL string

	mu     sync.RWMutex
	index  map[string]string
	loaded bool
}

// NewImageCatalog constructs a catalog over source.
func NewImageCatalog(source ImageSource) *ImageCatalog {
	return &ImageCatalog{
		source:     source,
		defaultURL: source.URL(defaultImageName),
	}
}

// Resolve returns the product's image URL or the default image.
func (c *ImageCatalog) Resolve(ctx context.Context, productID int, name string) string {
	c.ensure(ctx)

	c.mu.RLock()
	defer c.mu.RUnlock()
	if u, ok := c.index[ImageBaseName(productID, name)]; ok {
		return u
	}
	return c.defaultURL
}

// Rebuild re-reads the source and replaces the index.
func (c *ImageCatalog) Rebuild(ctx context.Context) (int, error) {
	start := time.Now()
	files, err := c.source.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list images: %w", err)
	}

	index := buildImageIndex(files, c.source.URL)

	c.mu.Lock()
	c.index = index
	c.loaded = true
	c.mu.Unlock()

	log.Info().Int("images", len(index)).Dur("duration", time.Since(start)).Msg("Image catalog rebuilt")
	return len(index), nil
}

func (c *ImageCatalog) ensure(ctx context.Context) {
	c.mu.RLock()
	loaded := c.loaded
	c.mu.RUnlock()
	if loaded {
		return
	}

	if _, err := c.Rebuild(ctx); err != nil {
		log.Warn().Err(err).Msg("Image catalog unavailable, serving default images")
		c.mu.Lock()
		if !c.loaded {
			c.index = map[string]string{}
			c.loaded = true
		}
		c.mu.Unlock()
	}
}

// buildImageIndex keys files by their decoded base name. A .webp file wins
// over a .png file with the same base name.
func buildImageIndex(files []string, urlFor func(string) string) map[string]string {
	rank := make(map[string]int, len(files))
	index := make(map[string]string, len(files))
	for _, f := range files {
		ext := strings.ToLower(path.Ext(f))
		pref := -1
		for i, e := range imageExtensions {
			if ext == e {
				pref = i
				break
			}
		}
		if pref < 0 {
			continue
		}

		base := strings.TrimSuffix(f, path.Ext(f))
		if decoded, err := url.PathUnescape(base); err == nil {
			base = decoded
		}
		if cur, ok := rank[base]; ok && cur <= pref {
			continue
		}
		rank[base] = pref
		index[base] = urlFor(f)
	}
	return index
}

// LocalDirSource serves images from a directory exposed under /assets.
type LocalDirSource struct {
	dir     string
	baseURL string
}

// NewLocalDirSource constructs a LocalDirSource.
func NewLocalDirSource(dir, baseURL string) *LocalDirSource {
	return &LocalDirSource{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}
}

// List returns the file names in the image directory.
func (s *LocalDirSource) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		files = append(files, e.Name())
	}
	return files, nil
}

// URL returns the public URL of a file in the directory.
func (s *LocalDirSource) URL(file string) string {
	return s.baseURL + "/assets/images/products/" + url.PathEscape(file)
}
