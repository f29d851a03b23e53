package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu                   sync.Mutex
	requestCount         map[string]int64
	errorCount           map[string]int64
	envelopeCount        map[string]int64
	broadcastDeliveries  int64
	notificationsCreated int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:  make(map[string]int64),
		errorCount:    make(map[string]int64),
		envelopeCount: make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + strconv.Itoa(status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordEnvelope counts an inbound live-transport envelope by type.
func (m *Metrics) RecordEnvelope(envelopeType string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.envelopeCount[envelopeType]++
}

// RecordBroadcast counts direct deliveries to live connections.
func (m *Metrics) RecordBroadcast(delivered int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.broadcastDeliveries += int64(delivered)
}

// RecordNotification counts created notification records.
func (m *Metrics) RecordNotification(count int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notificationsCreated += int64(count)
}

// Snapshot returns current counter values for the ready endpoint.
func (m *Metrics) Snapshot() map[string]int64 {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]int64{
		"broadcast_deliveries":  m.broadcastDeliveries,
		"notifications_created": m.notificationsCreated,
	}
	for k, v := range m.envelopeCount {
		out["envelope_"+k] = v
	}
	return out
}
