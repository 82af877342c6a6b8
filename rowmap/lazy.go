package rowmap

import "sync"

// Lazy is a deferred nested-query result. Go has no reflection proxy
// mechanism to trigger a sub-select on first property access the way a
// dynamic-proxy-based lazy loader would (spec §4.9 step 5); a struct
// field must instead opt into laziness by declaring its type as *Lazy
// and calling Get explicitly. Resolution happens at most once.
type Lazy struct {
	once    sync.Once
	resolve func() (any, error)
	value   any
	err     error
}

// NewLazy wraps resolve as a Lazy value.
func NewLazy(resolve func() (any, error)) *Lazy {
	return &Lazy{resolve: resolve}
}

// Get triggers resolve on first call and returns its cached result on
// every subsequent call.
func (l *Lazy) Get() (any, error) {
	l.once.Do(func() {
		l.value, l.err = l.resolve()
	})
	return l.value, l.err
}
