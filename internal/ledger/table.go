package ledger

// Table is journaled contract storage. Values are stored as given; callers
// must not mutate a value after storing it (store copies of *big.Int).
type Table[K comparable, V any] struct {
	l *Ledger
	m map[K]V
}

// NewTable allocates storage for the contract being constructed by c.
func NewTable[K comparable, V any](c *Call) *Table[K, V] {
	return &Table[K, V]{l: c.l, m: make(map[K]V)}
}

// Get returns the value stored under k.
func (t *Table[K, V]) Get(k K) (V, bool) {
	v, ok := t.m[k]
	return v, ok
}

// At returns the value stored under k or the zero value.
func (t *Table[K, V]) At(k K) V {
	return t.m[k]
}

func (t *Table[K, V]) Set(k K, v V) {
	old, had := t.m[k]
	t.l.record(func() {
		if had {
			t.m[k] = old
		} else {
			delete(t.m, k)
		}
	})
	t.m[k] = v
}

func (t *Table[K, V]) Delete(k K) {
	old, had := t.m[k]
	if !had {
		return
	}
	t.l.record(func() { t.m[k] = old })
	delete(t.m, k)
}

func (t *Table[K, V]) Len() int { return len(t.m) }

// Value is a single journaled storage slot.
type Value[V any] struct {
	l *Ledger
	v V
}

func NewValue[V any](c *Call, init V) *Value[V] {
	return &Value[V]{l: c.l, v: init}
}

func (s *Value[V]) Get() V { return s.v }

func (s *Value[V]) Set(v V) {
	old := s.v
	s.l.record(func() { s.v = old })
	s.v = v
}
