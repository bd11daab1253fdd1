package translation

import (
	"sync"

	"github.com/pkg/errors"

	"gitlab.com/akita/simtexec/kernels"
)

type cacheKey struct {
	entry kernels.EntryID
	width int
}

type funcTranslation struct {
	hb    Hyperblock
	width int
}

func (t *funcTranslation) Entry() kernels.EntryID {
	return t.hb.Entry
}

func (t *funcTranslation) Width() int {
	return t.width
}

func (t *funcTranslation) LiveValues() int {
	return t.hb.LiveIn
}

func (t *funcTranslation) Execute(warp []*kernels.ThreadContext) {
	if t.hb.Warp != nil {
		t.hb.Warp(warp)
		return
	}

	for _, ctx := range warp {
		t.hb.Thread(ctx)
	}
}

// FuncCache compiles the hyperblocks of a Program. It may be shared by
// several executives; each executive still keeps its own lookup table.
type FuncCache struct {
	sync.Mutex

	program      *Program
	translations map[cacheKey]*funcTranslation
	compilations int
}

// NewFuncCache creates a cache over the given program.
func NewFuncCache(p *Program) *FuncCache {
	return &FuncCache{
		program:      p,
		translations: make(map[cacheKey]*funcTranslation),
	}
}

// LookupOrCompile returns the translation of entry at the widest width the
// hyperblock supports, up to width.
func (c *FuncCache) LookupOrCompile(
	entry kernels.EntryID,
	width int,
) (Translation, error) {
	if width <= 0 {
		return nil, &CompilationError{
			Entry: entry,
			Width: width,
			Err:   errors.New("warp width must be positive"),
		}
	}

	c.Lock()
	defer c.Unlock()

	key := cacheKey{entry: entry, width: width}
	if t, found := c.translations[key]; found {
		return t, nil
	}

	hb, found := c.program.Lookup(entry)
	if !found {
		return nil, &CompilationError{
			Entry: entry,
			Width: width,
			Err:   errors.Errorf("no hyperblock in program %s", c.program.Name),
		}
	}

	supported := width
	if hb.MaxWidth > 0 && hb.MaxWidth < supported {
		supported = hb.MaxWidth
	}

	t := &funcTranslation{hb: hb, width: supported}
	c.translations[key] = t
	c.compilations++

	return t, nil
}

// Compilations returns how many translations were compiled so far.
func (c *FuncCache) Compilations() int {
	c.Lock()
	defer c.Unlock()
	return c.compilations
}
