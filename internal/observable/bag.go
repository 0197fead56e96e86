package observable

import "sync"

// Bag collects cancel funcs so a set of subscriptions can be released at once.
// Adding to a released Bag cancels immediately.
type Bag struct {
	mu       sync.Mutex
	cancels  []func()
	released bool
}

// Add stores cancel funcs for a later Release.
func (b *Bag) Add(cancels ...func()) {
	b.mu.Lock()
	if b.released {
		b.mu.Unlock()
		for _, c := range cancels {
			c()
		}
		return
	}
	b.cancels = append(b.cancels, cancels...)
	b.mu.Unlock()
}

// Release calls every stored cancel func in reverse order of addition.
func (b *Bag) Release() {
	b.mu.Lock()
	cancels := b.cancels
	b.cancels = nil
	b.released = true
	b.mu.Unlock()

	for i := len(cancels) - 1; i >= 0; i-- {
		cancels[i]()
	}
}
