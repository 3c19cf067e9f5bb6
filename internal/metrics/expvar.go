package metrics

import (
	"context"
	"expvar"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"metacore/pkg/metamodel"
)

var (
	_         metamodel.MetricsRecorder = (*ExpvarRecorder)(nil)
	expvarSeq atomic.Uint64
)

// ExpvarRecorder publishes per-operation call counts and total latency as
// one expvar map, for deployments without a Prometheus scraper.
type ExpvarRecorder struct {
	name string
	ops  *expvar.Map
	mu   sync.Mutex
}

// OpStats is the published value of one operation.
type OpStats struct {
	OK      int64   `json:"ok"`
	Failed  int64   `json:"failed"`
	TotalMS float64 `json:"total_ms"`
}

// NewExpvarRecorder publishes a recorder under name. expvar names are
// process-global, so an empty name gets a generated one.
func NewExpvarRecorder(name string) *ExpvarRecorder {
	if name == "" {
		name = fmt.Sprintf("metacore_metamodel_%d", expvarSeq.Add(1))
	}
	r := &ExpvarRecorder{name: name, ops: new(expvar.Map).Init()}
	expvar.Publish(name, r.ops)
	return r
}

// Name returns the expvar key.
func (r *ExpvarRecorder) Name() string { return r.name }

// Observe implements metamodel.MetricsRecorder.
func (r *ExpvarRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	stats := r.operation(operation)
	if success {
		stats.Add("ok", 1)
	} else {
		stats.Add("failed", 1)
	}
	stats.AddFloat("total_ms", float64(duration)/float64(time.Millisecond))
}

func (r *ExpvarRecorder) operation(name string) *expvar.Map {
	if m, ok := r.ops.Get(name).(*expvar.Map); ok {
		return m
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.ops.Get(name).(*expvar.Map); ok {
		return m
	}
	m := new(expvar.Map).Init()
	r.ops.Set(name, m)
	return m
}

// Snapshot reads the current totals.
func (r *ExpvarRecorder) Snapshot() map[string]OpStats {
	out := make(map[string]OpStats)
	r.ops.Do(func(kv expvar.KeyValue) {
		m, ok := kv.Value.(*expvar.Map)
		if !ok {
			return
		}
		var s OpStats
		if v, ok := m.Get("ok").(*expvar.Int); ok {
			s.OK = v.Value()
		}
		if v, ok := m.Get("failed").(*expvar.Int); ok {
			s.Failed = v.Value()
		}
		if v, ok := m.Get("total_ms").(*expvar.Float); ok {
			s.TotalMS = v.Value()
		}
		out[kv.Key] = s
	})
	return out
}
