package render

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

var (
	// ErrMissingPageContext means owner, repo, base or head cannot be read yet.
	ErrMissingPageContext = errors.New("page context not available")
	// ErrMissingDOMTarget means none of the insertion selectors matched.
	ErrMissingDOMTarget = errors.New("no insertion target found")
)

// PageContext is what the page tells us about the pull request being viewed.
type PageContext struct {
	Owner string `json:"owner"`
	Repo  string `json:"repo"`
	Base  string `json:"base"`
	Head  string `json:"head"`
}

// Complete reports whether every field is present.
func (p PageContext) Complete() bool {
	return p.Owner != "" && p.Repo != "" && p.Base != "" && p.Head != ""
}

// Extractor reads the page context from a live page. It returns an error
// wrapping ErrMissingPageContext while the page is still loading.
type Extractor interface {
	Extract() (PageContext, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func() (PageContext, error)

// Extract calls f.
func (f ExtractorFunc) Extract() (PageContext, error) {
	return f()
}

// Anchor identifies an insertion point found by a selector.
type Anchor string

// Document is the externally owned page the controller reconciles against.
type Document interface {
	URL() string
	Extract() (PageContext, error)
	Find(selector string) (Anchor, bool)
	// Count returns the number of indicator nodes carrying marker.
	Count(marker string) int
	// RemoveMarked removes every indicator node carrying marker.
	RemoveMarked(marker string) int
	// Insert mounts ind at anchor.
	Insert(anchor Anchor, ind *Indicator) error
}

type node struct {
	indicator *Indicator
	anchor    Anchor
}

// MemoryDocument is an in-process Document. The terminal front end and the
// tests use it as the page.
type MemoryDocument struct {
	extractor Extractor
	onChange  func()
	anchors   map[string]Anchor
	url       string
	nodes     []node
	mu        sync.Mutex
}

// NewMemoryDocument creates a document at url whose context comes from extractor.
func NewMemoryDocument(url string, extractor Extractor) *MemoryDocument {
	return &MemoryDocument{
		url:       url,
		extractor: extractor,
		anchors:   make(map[string]Anchor),
	}
}

// OnChange registers fn to be called after every change to indicator nodes.
func (d *MemoryDocument) OnChange(fn func()) {
	d.mu.Lock()
	d.onChange = fn
	d.mu.Unlock()
}

// URL returns the current page URL.
func (d *MemoryDocument) URL() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.url
}

// SetURL simulates an in-place navigation. Inserted nodes stay until their
// owner removes them.
func (d *MemoryDocument) SetURL(url string) {
	d.mu.Lock()
	d.url = url
	d.mu.Unlock()
}

// SetExtractor replaces the source of page context.
func (d *MemoryDocument) SetExtractor(extractor Extractor) {
	d.mu.Lock()
	d.extractor = extractor
	d.mu.Unlock()
}

// Extract returns the current page context.
func (d *MemoryDocument) Extract() (PageContext, error) {
	d.mu.Lock()
	extractor := d.extractor
	d.mu.Unlock()

	if extractor == nil {
		return PageContext{}, ErrMissingPageContext
	}
	pc, err := extractor.Extract()
	if err != nil {
		if errors.Is(err, ErrMissingPageContext) {
			return PageContext{}, err
		}
		return PageContext{}, fmt.Errorf("%w: %w", ErrMissingPageContext, err)
	}
	if !pc.Complete() {
		return PageContext{}, fmt.Errorf("%w: incomplete context %+v", ErrMissingPageContext, pc)
	}
	return pc, nil
}

// AddAnchor makes selector match.
func (d *MemoryDocument) AddAnchor(selector string) {
	d.mu.Lock()
	d.anchors[selector] = Anchor(selector)
	d.mu.Unlock()
}

// RemoveAnchor makes selector stop matching and drops nodes mounted on it,
// as a page re-render would.
func (d *MemoryDocument) RemoveAnchor(selector string) {
	d.mu.Lock()
	delete(d.anchors, selector)
	removed := 0
	d.nodes = slices.DeleteFunc(d.nodes, func(n node) bool {
		if n.anchor == Anchor(selector) {
			removed++
			return true
		}
		return false
	})
	fn := d.onChange
	d.mu.Unlock()

	if removed > 0 && fn != nil {
		fn()
	}
}

// Find returns the anchor for selector if it matches.
func (d *MemoryDocument) Find(selector string) (Anchor, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.anchors[selector]
	return a, ok
}

// Count returns the number of indicator nodes carrying marker.
func (d *MemoryDocument) Count(marker string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, nd := range d.nodes {
		if nd.indicator.Marker == marker {
			n++
		}
	}
	return n
}

// Indicators returns the mounted indicators carrying marker.
func (d *MemoryDocument) Indicators(marker string) []*Indicator {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*Indicator
	for _, nd := range d.nodes {
		if nd.indicator.Marker == marker {
			out = append(out, nd.indicator)
		}
	}
	return out
}

// RemoveMarked removes every indicator node carrying marker.
func (d *MemoryDocument) RemoveMarked(marker string) int {
	d.mu.Lock()
	before := len(d.nodes)
	d.nodes = slices.DeleteFunc(d.nodes, func(n node) bool {
		return n.indicator.Marker == marker
	})
	removed := before - len(d.nodes)
	fn := d.onChange
	d.mu.Unlock()

	if removed > 0 && fn != nil {
		fn()
	}
	return removed
}

// Insert mounts ind at anchor.
func (d *MemoryDocument) Insert(anchor Anchor, ind *Indicator) error {
	if ind == nil {
		return errors.New("nil indicator")
	}
	d.mu.Lock()
	if _, ok := d.anchors[string(anchor)]; !ok {
		d.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrMissingDOMTarget, anchor)
	}
	d.nodes = append(d.nodes, node{anchor: anchor, indicator: ind})
	fn := d.onChange
	d.mu.Unlock()

	if fn != nil {
		fn()
	}
	return nil
}
