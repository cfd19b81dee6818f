package pageview

import "sync"

// customData tracks the page's custom key-value data and the subset that
// has already been transmitted, so post-beacon updates can be sent as a
// delta of changed keys only.
type customData struct {
	mu   sync.Mutex
	all  map[string]string
	sent map[string]string
}

func newCustomData() *customData {
	return &customData{
		all:  make(map[string]string),
		sent: make(map[string]string),
	}
}

func (c *customData) set(key, value string) {
	c.mu.Lock()
	c.all[key] = value
	c.mu.Unlock()
}

// snapshot returns all current data and marks it sent.
func (c *customData) snapshot() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string, len(c.all))
	for k, v := range c.all {
		out[k] = v
		c.sent[k] = v
	}
	return out
}

// delta returns the keys changed since the last snapshot or delta, and
// marks them sent. Empty when nothing changed.
func (c *customData) delta() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string)
	for k, v := range c.all {
		if prev, ok := c.sent[k]; !ok || prev != v {
			out[k] = v
			c.sent[k] = v
		}
	}
	return out
}

func (c *customData) reset() {
	c.mu.Lock()
	c.all = make(map[string]string)
	c.sent = make(map[string]string)
	c.mu.Unlock()
}
