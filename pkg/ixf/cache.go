package ixf

import "sync"

// Cache stores fetched member-export documents keyed by feed URL. The
// cache is process-wide, has no TTL, and is last-write-wins: a
// successful refresh replaces the previous copy.
type Cache struct {
	mu   sync.RWMutex
	docs map[string]*MemberExport
}

// NewCache creates an empty feed cache.
func NewCache() *Cache {
	return &Cache{
		docs: make(map[string]*MemberExport),
	}
}

// Get returns the cached document for a URL, or nil.
func (c *Cache) Get(url string) *MemberExport {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.docs[url]
}

// Set stores a document for a URL.
func (c *Cache) Set(url string, doc *MemberExport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs[url] = doc
}
