package mesi

// Ways is the fixed associativity: every set holds exactly two lines.
const Ways = 2

// Sets is the fixed number of sets per cache.
const Sets = 8

// Set is two ways plus a one-bit LRU indicator naming the current victim
// way (0 or 1). touch(mru) marks the other way as the victim.
type Set struct {
	Way [Ways]Line
	lru uint8 // 0 => way 0 is the victim, 1 => way 1 is the victim
}

// touch marks mru as most-recently-used, leaving the other way as the
// LRU victim.
func (s *Set) touch(mru int) {
	if mru == 0 {
		s.lru = 1
	} else {
		s.lru = 0
	}
}

// victim returns the way that would be evicted next.
func (s *Set) victim() int {
	return int(s.lru)
}

// findFree returns a way that is either not valid or already Invalid, if
// one exists. A line in state Invalid contributes nothing coherent and
// is treated as free regardless of its Valid bit.
func (s *Set) findFree() (way int, ok bool) {
	for w := range s.Way {
		if !s.Way[w].Valid || s.Way[w].State == Invalid {
			return w, true
		}
	}
	return 0, false
}

// lookup returns the way holding tag in a coherent (non-Invalid) state,
// if any.
func (s *Set) lookup(tag uint64) (way int, ok bool) {
	for w := range s.Way {
		l := &s.Way[w]
		if l.Valid && l.Tag == tag && l.State != Invalid {
			return w, true
		}
	}
	return 0, false
}

// resident returns the way holding tag regardless of state (used by
// snoop handling, which must also react to lines it no longer considers
// coherent-but-still-tagged — in practice this coincides with lookup
// since an Invalid line's tag is stale, but the snoop table in spec.md
// §4.2 is phrased in terms of "locally resident", so this mirrors that
// wording precisely).
func (s *Set) resident(tag uint64) (way int, ok bool) {
	for w := range s.Way {
		if s.Way[w].Valid && s.Way[w].Tag == tag {
			return w, true
		}
	}
	return 0, false
}
