package useragent

import (
	"strings"
	"sync/atomic"
)

// DefaultContact identifies the client to the search engine operator. Search
// requests carry a reachable contact instead of impersonating a browser.
const DefaultContact = "imgsearch/1.0 (+https://github.com/FranksOps/imgsearch)"

// Pool hands out User-Agent values in round-robin order. A pool built from a
// single value always returns that value, which is the normal configuration.
type Pool struct {
	uas     []string
	counter atomic.Uint64
}

// NewPool creates a new User-Agent pool. Blank entries are dropped; if
// nothing remains the pool falls back to DefaultContact.
func NewPool(uas []string) *Pool {
	copied := make([]string, 0, len(uas))
	for _, ua := range uas {
		if ua = strings.TrimSpace(ua); ua != "" {
			copied = append(copied, ua)
		}
	}
	if len(copied) == 0 {
		copied = append(copied, DefaultContact)
	}
	return &Pool{uas: copied}
}

// Next returns the next User-Agent. It is safe for concurrent use.
func (p *Pool) Next() string {
	if len(p.uas) == 0 {
		return ""
	}
	idx := p.counter.Add(1) - 1
	return p.uas[idx%uint64(len(p.uas))]
}

// All returns a copy of the configured User-Agents.
func (p *Pool) All() []string {
	copied := make([]string, len(p.uas))
	copy(copied, p.uas)
	return copied
}
