package overlay

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/dudu/augcam/internal/geometry"
	_ "golang.org/x/image/webp"
)

// ImageProvider supplies the picture drawn over the eyes. rect is the
// display-space eyes rect; a nil image means nothing is drawn.
type ImageProvider interface {
	ImageForEyes(rect geometry.Rect) image.Image
}

// Item is one catalog entry.
type Item struct {
	Name  string
	Image image.Image
}

// Catalog is an ordered set of overlay images with a selection cursor that
// wraps around at both ends. It is safe for concurrent use.
type Catalog struct {
	mu    sync.RWMutex
	items []Item
	index int
}

// NewCatalog creates a catalog selecting the first item.
func NewCatalog(items ...Item) *Catalog {
	return &Catalog{items: items}
}

// LoadCatalog reads every png, jpeg and webp file in dir, sorted by name.
func LoadCatalog(dir string) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read overlay directory: %w", err)
	}

	var items []Item
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".jpg", ".jpeg", ".webp":
		default:
			continue
		}
		img, err := loadImage(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		items = append(items, Item{Name: strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())), Image: img})
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("no overlay images in %s", dir)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return NewCatalog(items...), nil
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open overlay image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return img, nil
}

// Len returns the number of items.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Index returns the selected position.
func (c *Catalog) Index() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.index
}

// Current returns the selected item. ok is false for an empty catalog.
func (c *Catalog) Current() (item Item, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.items) == 0 {
		return Item{}, false
	}
	return c.items[c.index], true
}

// Select moves the cursor to i. A negative index selects the last item and
// an index past the end selects the first.
func (c *Catalog) Select(i int) Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selectLocked(i)
}

// Next selects the following item.
func (c *Catalog) Next() Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selectLocked(c.index + 1)
}

// Prev selects the preceding item.
func (c *Catalog) Prev() Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selectLocked(c.index - 1)
}

func (c *Catalog) selectLocked(i int) Item {
	if len(c.items) == 0 {
		return Item{}
	}
	switch {
	case i < 0:
		i = len(c.items) - 1
	case i >= len(c.items):
		i = 0
	}
	c.index = i
	return c.items[i]
}

// ImageForEyes returns the selected image.
func (c *Catalog) ImageForEyes(geometry.Rect) image.Image {
	item, ok := c.Current()
	if !ok {
		return nil
	}
	return item.Image
}
