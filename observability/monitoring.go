// Package observability aggregates delivery counters for the monitor
// worker and the debug inspector. Counting is lock-free; readers get a
// consistent-enough snapshot for diagnostics.
package observability

import "sync/atomic"

type Stats struct {
	Broadcasts int64
	Delivered  int64
	Dropped    int64
	Errors     int64
}

type MonitoringManager struct {
	broadcasts atomic.Int64
	delivered  atomic.Int64
	dropped    atomic.Int64
	errors     atomic.Int64
}

func NewMonitoringManager() *MonitoringManager {
	return &MonitoringManager{}
}

// AddBroadcast records one fan-out operation and how many online
// participants it reached.
func (m *MonitoringManager) AddBroadcast(delivered int) {
	m.broadcasts.Add(1)
	m.delivered.Add(int64(delivered))
}

// AddDropped records an envelope lost to a full session buffer.
func (m *MonitoringManager) AddDropped() {
	m.dropped.Add(1)
}

// AddError records an operation answered with an error envelope.
func (m *MonitoringManager) AddError() {
	m.errors.Add(1)
}

func (m *MonitoringManager) GetLatest() Stats {
	return Stats{
		Broadcasts: m.broadcasts.Load(),
		Delivered:  m.delivered.Load(),
		Dropped:    m.dropped.Load(),
		Errors:     m.errors.Load(),
	}
}
