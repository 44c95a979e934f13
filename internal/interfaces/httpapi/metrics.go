package httpapi

import (
	"sort"
	"sync"
	"time"

	"ethcrawler/internal/streaming"
)

// Metrics counts endpoint and lookup activity. It is shared by every request
// and by the auditor's consumer loop.
type Metrics struct {
	mu                 sync.RWMutex
	startTime          time.Time
	requests           uint64
	validationFailures uint64
	lookupsOK          uint64
	lookupsFailed      uint64
	upstreamByKind     map[string]uint64
	lastLookupLatency  time.Duration
	maxLookupLatency   time.Duration
	kafkaMessages      uint64
	kafkaDecodeErrs    uint64
	kafkaFetchErrs     uint64
	kafkaCommitErrs    uint64
	kafkaLastOffset    int64
	kafkaLastLag       time.Duration
	kafkaMaxLag        time.Duration
	txCountTotal       uint64
}

func NewMetrics() *Metrics {
	return &Metrics{
		startTime:      time.Now(),
		upstreamByKind: make(map[string]uint64),
	}
}

func (m *Metrics) IncRequest() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests++
}

func (m *Metrics) IncValidationFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.validationFailures++
}

func (m *Metrics) IncUpstreamFailure(kind string) {
	if kind == "" {
		kind = "unknown"
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upstreamByKind[kind]++
}

// OnLookup is called by the aggregator once per completed lookup.
func (m *Metrics) OnLookup(outcome streaming.Outcome, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch outcome {
	case streaming.OutcomeSuccess:
		m.lookupsOK++
	default:
		m.lookupsFailed++
	}
	m.lastLookupLatency = latency
	if latency > m.maxLookupLatency {
		m.maxLookupLatency = latency
	}
}

func (m *Metrics) IncKafkaDecodeErr() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kafkaDecodeErrs++
}

func (m *Metrics) IncKafkaFetchErr() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kafkaFetchErrs++
}

func (m *Metrics) IncKafkaCommitErr() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kafkaCommitErrs++
}

// ObserveLookupEvent records one consumed lookup event.
func (m *Metrics) ObserveLookupEvent(msg streaming.Message, offset int64, ts time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kafkaMessages++
	m.kafkaLastOffset = offset
	m.txCountTotal += uint64(msg.TxCount)
	switch msg.Outcome {
	case streaming.OutcomeSuccess:
		m.lookupsOK++
	default:
		m.lookupsFailed++
		kind := msg.ErrorKind
		if kind == "" {
			kind = "unknown"
		}
		m.upstreamByKind[kind]++
	}
	if !ts.IsZero() {
		lag := time.Since(ts)
		m.kafkaLastLag = lag
		if lag > m.kafkaMaxLag {
			m.kafkaMaxLag = lag
		}
	}
}

type KindCount struct {
	Kind  string
	Count uint64
}

type Snapshot struct {
	StartTime          time.Time
	Requests           uint64
	ValidationFailures uint64
	LookupsOK          uint64
	LookupsFailed      uint64
	UpstreamByKind     []KindCount
	LastLookupLatency  time.Duration
	MaxLookupLatency   time.Duration
	KafkaMessages      uint64
	KafkaDecodeErrs    uint64
	KafkaFetchErrs     uint64
	KafkaCommitErrs    uint64
	KafkaLastOffset    int64
	KafkaLastLag       time.Duration
	KafkaMaxLag        time.Duration
	TxCountTotal       uint64
}

func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		StartTime:          m.startTime,
		Requests:           m.requests,
		ValidationFailures: m.validationFailures,
		LookupsOK:          m.lookupsOK,
		LookupsFailed:      m.lookupsFailed,
		UpstreamByKind:     sortedKindCounts(m.upstreamByKind),
		LastLookupLatency:  m.lastLookupLatency,
		MaxLookupLatency:   m.maxLookupLatency,
		KafkaMessages:      m.kafkaMessages,
		KafkaDecodeErrs:    m.kafkaDecodeErrs,
		KafkaFetchErrs:     m.kafkaFetchErrs,
		KafkaCommitErrs:    m.kafkaCommitErrs,
		KafkaLastOffset:    m.kafkaLastOffset,
		KafkaLastLag:       m.kafkaLastLag,
		KafkaMaxLag:        m.kafkaMaxLag,
		TxCountTotal:       m.txCountTotal,
	}
}

func sortedKindCounts(source map[string]uint64) []KindCount {
	if len(source) == 0 {
		return nil
	}
	out := make([]KindCount, 0, len(source))
	for kind, count := range source {
		out = append(out, KindCount{Kind: kind, Count: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}
