package storage

import "container/list"

// lruList orders entries from least to most recently used.
type lruList struct {
	l *list.List
}

func newLRUList() *lruList {
	return &lruList{l: list.New()}
}

// touch moves e to the most recent end, inserting it if needed.
func (l *lruList) touch(e *entry) {
	if e.elem == nil {
		e.elem = l.l.PushBack(e)
		return
	}
	l.l.MoveToBack(e.elem)
}

func (l *lruList) remove(e *entry) {
	if e.elem == nil {
		return
	}
	l.l.Remove(e.elem)
	e.elem = nil
}

// each visits entries oldest first until fn returns false.
func (l *lruList) each(fn func(*entry) bool) {
	for el := l.l.Front(); el != nil; el = el.Next() {
		if !fn(el.Value.(*entry)) {
			return
		}
	}
}

// oldestEvictable returns the least recently used committed entry with no
// live editor.
func (l *lruList) oldestEvictable() *entry {
	var victim *entry
	l.each(func(e *entry) bool {
		if e.readable && e.editor == nil {
			victim = e
			return false
		}
		return true
	})
	return victim
}

// evictLocked removes least recently used entries until the store fits in
// maxSize or only entries under edit remain.
func (s *Store) evictLocked() {
	evicted := 0
	for s.size > s.maxSize {
		victim := s.lru.oldestEvictable()
		if victim == nil {
			s.logger.Debug("eviction stopped, remaining entries are being edited",
				"size", s.size,
				"max_size", s.maxSize)
			break
		}
		if err := s.removeLocked(victim); err != nil {
			s.logger.Warn("evict entry failed", "id", victim.id, "error", err)
			break
		}
		s.logger.Debug("entry evicted", "id", victim.id, "size", s.size)
		evicted++
	}
	s.metrics.RecordEvictions(evicted)
}
