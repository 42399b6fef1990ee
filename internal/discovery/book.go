package discovery

import "sync"

// Book remembers the most recently discovered mint per chat. Reads take a
// value copy so a concurrent update in another chat never leaks into an
// in-flight swap request.
type Book struct {
	mu    sync.RWMutex
	mints map[int64]string
}

// NewBook creates an empty Book.
func NewBook() *Book {
	return &Book{mints: make(map[int64]string)}
}

// Observe records mint as the current candidate for chatID, replacing any
// previous one.
func (b *Book) Observe(chatID int64, mint string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mints[chatID] = mint
}

// Current returns the candidate mint for chatID, or "" if none was
// observed yet.
func (b *Book) Current(chatID int64) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.mints[chatID]
}
