package transcript

import (
	"slices"
	"sync"
	"time"

	"github.com/jinzhu/copier"
	"github.com/koscakluka/ema-transcript/core/items"
)

// itemStore keeps transcript items in creation order. Every item id maps to
// exactly one entry and entries are never removed, only cleared all at once
// when a new session starts.
type itemStore struct {
	mu sync.RWMutex

	order []*items.Item
	byID  map[string]*items.Item

	// gen is bumped on every clear so that late asynchronous writes belonging
	// to a previous session can be discarded.
	gen uint64
}

func newItemStore() *itemStore {
	return &itemStore{byID: map[string]*items.Item{}}
}

// upsert applies update to the item with id, creating it first with the
// given observation time if absent. The position and timestamp of an
// existing item are preserved unless update changes the timestamp itself.
func (s *itemStore) upsert(id string, at time.Time, update func(*items.Item)) items.Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.getOrCreate(id, at)
	if update != nil {
		update(item)
	}
	return cloneItem(*item)
}

// insertIfAbsent creates the item with init applied. An existing item is
// returned untouched.
func (s *itemStore) insertIfAbsent(id string, at time.Time, init func(*items.Item)) (items.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item, ok := s.byID[id]; ok {
		return cloneItem(*item), false
	}

	item := s.getOrCreate(id, at)
	if init != nil {
		init(item)
	}
	return cloneItem(*item), true
}

// appendContent appends part to the item content. init is only applied when
// the item is created by this call.
func (s *itemStore) appendContent(id string, at time.Time, part items.ContentPart, init func(*items.Item)) items.Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, existed := s.byID[id]
	item := s.getOrCreate(id, at)
	if !existed && init != nil {
		init(item)
	}
	item.Content = append(item.Content, part)
	return cloneItem(*item)
}

func (s *itemStore) getOrCreate(id string, at time.Time) *items.Item {
	if item, ok := s.byID[id]; ok {
		return item
	}

	item := &items.Item{ID: id, Timestamp: at}
	s.order = append(s.order, item)
	s.byID[id] = item
	return item
}

func (s *itemStore) get(id string) (items.Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.byID[id]
	if !ok {
		return items.Item{}, false
	}
	return cloneItem(*item), true
}

func (s *itemStore) findByCallID(callID string, kind items.Kind) (items.Item, bool) {
	if callID == "" {
		return items.Item{}, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, item := range s.order {
		if item.Kind == kind && item.CallID == callID {
			return cloneItem(*item), true
		}
	}
	return items.Item{}, false
}

// completeCalls marks every function call with callID completed and returns
// the items that changed.
func (s *itemStore) completeCalls(callID string) []items.Item {
	if callID == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var completed []items.Item
	for _, item := range s.order {
		if item.Kind != items.KindFunctionCall || item.CallID != callID || item.IsCompleted() {
			continue
		}
		item.Status = items.StatusCompleted
		completed = append(completed, cloneItem(*item))
	}
	return completed
}

// mutate applies fn to an existing item only while the store still belongs
// to generation. fn reports whether it changed the item.
func (s *itemStore) mutate(generation uint64, id string, fn func(*items.Item) bool) (items.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen != generation {
		return items.Item{}, false
	}
	item, ok := s.byID[id]
	if !ok {
		return items.Item{}, false
	}
	if !fn(item) {
		return cloneItem(*item), false
	}
	return cloneItem(*item), true
}

// clear drops all items and starts a new generation.
func (s *itemStore) clear() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.order = nil
	s.byID = map[string]*items.Item{}
	s.gen++
	return s.gen
}

func (s *itemStore) generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

func (s *itemStore) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// snapshot returns deep copies of all items in creation order.
func (s *itemStore) snapshot() []items.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make([]items.Item, 0, len(s.order))
	for _, item := range s.order {
		snapshot = append(snapshot, cloneItem(*item))
	}
	return snapshot
}

// cloneItem copies the item value and deep copies its slices so snapshots
// never alias store state.
func cloneItem(item items.Item) items.Item {
	clone := item
	clone.Content = cloneSlice(item.ID, item.Content)
	clone.Annotations = cloneSlice(item.ID, item.Annotations)
	return clone
}

var deepCopy = copier.CopyWithOption

// cloneSlice deep copies src. Both element types hold only values, so a
// shallow clone is a complete copy when copier fails.
func cloneSlice[T any](itemID string, src []T) []T {
	if len(src) == 0 {
		return nil
	}

	var dst []T
	if err := deepCopy(&dst, &src, copier.Option{DeepCopy: true}); err != nil || len(dst) != len(src) {
		logger.Warn("Failed to deep copy item, using shallow clone", "item_id", itemID, "error", err)
		return slices.Clone(src)
	}
	return dst
}
