package world

import (
	"errors"
	"fmt"
	"sync"

	"github.com/udisondev/urnpatch/internal/model"
)

// ID ranges of a plugin (convention):
//
//	0x000000 - 0x0007FF: Reserved by the engine
//	0x000800 - 0xFFFFFF: Records created by the plugin (16M IDs)
const (
	FirstFormID uint32 = 0x000800
	LastFormID  uint32 = 0xFFFFFF
)

var (
	// ErrFormIDsExhausted is returned when the plugin has no free IDs left.
	ErrFormIDsExhausted = errors.New("form id space exhausted")
	// ErrFormIDConflict is returned by Reserve for a key that contradicts an
	// earlier reservation.
	ErrFormIDConflict = errors.New("conflicting form id reservation")
)

// recordKey identifies a region record independently of its form ID.
type recordKey struct {
	worldspace model.FormKey
	editorID   string
}

// FormIDAllocator hands out form keys of one plugin. A (worldspace, editor ID)
// pair always gets the same key: keys reserved from a previous run are
// reused, new names get IDs above every reserved one.
// Safe for concurrent use.
type FormIDAllocator struct {
	mod string

	mu       sync.Mutex
	next     uint32
	assigned map[recordKey]model.FormKey
	owners   map[uint32]recordKey
}

// NewFormIDAllocator creates an allocator for mod. last is the highest ID the
// plugin already uses outside of reserved records (0 if none).
func NewFormIDAllocator(mod string, last uint32) *FormIDAllocator {
	start := FirstFormID
	if last >= FirstFormID {
		start = last + 1
	}
	return &FormIDAllocator{
		mod:      mod,
		next:     start,
		assigned: make(map[recordKey]model.FormKey),
		owners:   make(map[uint32]recordKey),
	}
}

// Mod returns the plugin the allocator issues keys for.
func (a *FormIDAllocator) Mod() string { return a.mod }

// Reserve records that editorID of worldspace already owns key, so
// FormKeyFor returns it instead of allocating a new one.
func (a *FormIDAllocator) Reserve(worldspace model.FormKey, editorID string, key model.FormKey) error {
	if key.Mod != a.mod {
		return fmt.Errorf("%w: %s belongs to %s, not %s", ErrFormIDConflict, key, key.Mod, a.mod)
	}
	if key.ID < FirstFormID || key.ID > LastFormID {
		return fmt.Errorf("%w: %s outside %06X-%06X", ErrFormIDConflict, key, FirstFormID, LastFormID)
	}

	rk := recordKey{worldspace: worldspace, editorID: editorID}

	a.mu.Lock()
	defer a.mu.Unlock()

	if prev, ok := a.assigned[rk]; ok && prev != key {
		return fmt.Errorf("%w: %s in %s has %s, got %s", ErrFormIDConflict, editorID, worldspace, prev, key)
	}
	if owner, ok := a.owners[key.ID]; ok && owner != rk {
		return fmt.Errorf("%w: %s already owned by %s in %s", ErrFormIDConflict, key, owner.editorID, owner.worldspace)
	}

	a.assigned[rk] = key
	a.owners[key.ID] = rk
	if key.ID >= a.next {
		a.next = key.ID + 1
	}
	return nil
}

// FormKeyFor returns the key of editorID in worldspace, allocating the next
// free ID the first time the pair is seen.
func (a *FormIDAllocator) FormKeyFor(worldspace model.FormKey, editorID string) (model.FormKey, error) {
	rk := recordKey{worldspace: worldspace, editorID: editorID}

	a.mu.Lock()
	defer a.mu.Unlock()

	if key, ok := a.assigned[rk]; ok {
		return key, nil
	}

	key, err := a.nextLocked()
	if err != nil {
		return model.NullFormKey, err
	}
	a.assigned[rk] = key
	a.owners[key.ID] = rk
	return key, nil
}

// NextFormKey returns an unused key not bound to any record.
func (a *FormIDAllocator) NextFormKey() (model.FormKey, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.nextLocked()
}

func (a *FormIDAllocator) nextLocked() (model.FormKey, error) {
	if a.next > LastFormID {
		return model.NullFormKey, fmt.Errorf("%w: %s", ErrFormIDsExhausted, a.mod)
	}
	key := model.NewFormKey(a.next, a.mod)
	a.next++
	return key, nil
}

// Peek returns the ID the next allocation will use.
func (a *FormIDAllocator) Peek() uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.next
}
