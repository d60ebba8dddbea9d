package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics keeps coarse request and error counters in process memory, keyed by
// route, method and outcome. There is no exporter; the counters exist so an
// operator attached to a running process can read them out.
type Metrics struct {
	mu       sync.Mutex
	requests map[string]int64
	failures map[string]int64
}

// NewMetrics initializes empty counters.
func NewMetrics() *Metrics {
	return &Metrics{
		requests: make(map[string]int64),
		failures: make(map[string]int64),
	}
}

// RecordRequest counts one served request. Safe on a nil receiver so callers
// never have to guard.
func (m *Metrics) RecordRequest(path, method string, status int, _ time.Duration) {
	if m == nil {
		return
	}
	key := method + " " + path + " " + strconv.Itoa(status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[key]++
}

// RecordError counts one request that resolved to a domain error code.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := method + " " + path + " " + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[key]++
}
