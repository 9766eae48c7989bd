package observability

import (
	"math"
	"sort"
	"strings"
	"sync"
	"time"
)

// Stage names recorded per conversation turn.
const (
	StageBackendReply  = "backend_reply"
	StageTranscription = "transcription"
	StageSynthesis     = "synthesis"
	StageInsights      = "insights"
	StageTurnTotal     = "turn_total"
)

// Soft p95 latency targets for a text conversation backed by an LLM service.
var stageTargets = map[string]float64{
	StageBackendReply:  8000,
	StageTranscription: 4000,
	StageSynthesis:     5000,
	StageInsights:      12000,
	StageTurnTotal:     10000,
}

type TurnStageStats struct {
	Stage       string  `json:"stage"`
	Samples     int     `json:"samples"`
	LastMS      float64 `json:"last_ms"`
	AvgMS       float64 `json:"avg_ms"`
	P50MS       float64 `json:"p50_ms"`
	P95MS       float64 `json:"p95_ms"`
	P99MS       float64 `json:"p99_ms"`
	TargetP95MS float64 `json:"target_p95_ms,omitempty"`
}

type TurnIndicator struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type TurnStageSnapshot struct {
	GeneratedAt time.Time        `json:"generated_at"`
	WindowSize  int              `json:"window_size"`
	Stages      []TurnStageStats `json:"stages"`
	Indicators  []TurnIndicator  `json:"indicators,omitempty"`
}

// turnStageWindow keeps the most recent latency samples per turn stage in
// insertion order, so the perf endpoint can report current percentiles
// without scraping prometheus. Oldest samples fall off once a stage
// reaches capacity.
type turnStageWindow struct {
	mu         sync.RWMutex
	capacity   int
	samples    map[string][]float64
	indicators map[string]int
}

func newTurnStageWindow(capacity int) *turnStageWindow {
	if capacity <= 0 {
		capacity = 256
	}
	return &turnStageWindow{
		capacity:   capacity,
		samples:    make(map[string][]float64),
		indicators: make(map[string]int),
	}
}

func (w *turnStageWindow) Observe(stage string, ms float64) {
	if stage == "" || ms < 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	window := w.samples[stage]
	if len(window) < w.capacity {
		window = append(window, ms)
	} else {
		copy(window, window[1:])
		window[len(window)-1] = ms
	}
	w.samples[stage] = window
}

func (w *turnStageWindow) ObserveIndicator(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.indicators[name]++
}

func (w *turnStageWindow) Snapshot() TurnStageSnapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()

	stages := make([]TurnStageStats, 0, len(w.samples))
	for stage, window := range w.samples {
		if len(window) == 0 {
			continue
		}
		sorted := append([]float64(nil), window...)
		sort.Float64s(sorted)

		var sum float64
		for _, v := range sorted {
			sum += v
		}
		n := len(sorted)

		stages = append(stages, TurnStageStats{
			Stage:       stage,
			Samples:     n,
			LastMS:      roundMS(window[n-1]),
			AvgMS:       roundMS(sum / float64(n)),
			P50MS:       roundMS(rank(sorted, 0.50)),
			P95MS:       roundMS(rank(sorted, 0.95)),
			P99MS:       roundMS(rank(sorted, 0.99)),
			TargetP95MS: stageTargets[stage],
		})
	}
	sort.Slice(stages, func(i, j int) bool { return stages[i].Stage < stages[j].Stage })

	indicators := make([]TurnIndicator, 0, len(w.indicators))
	for name, count := range w.indicators {
		if count > 0 {
			indicators = append(indicators, TurnIndicator{Name: name, Count: count})
		}
	}
	sort.Slice(indicators, func(i, j int) bool { return indicators[i].Name < indicators[j].Name })

	return TurnStageSnapshot{
		GeneratedAt: time.Now().UTC(),
		WindowSize:  w.capacity,
		Stages:      stages,
		Indicators:  indicators,
	}
}

func (w *turnStageWindow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.samples = make(map[string][]float64)
	w.indicators = make(map[string]int)
}

// rank picks the nearest-rank percentile from an ascending sample set.
func rank(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	i := int(math.Ceil(q*float64(len(sorted)))) - 1
	if i < 0 {
		i = 0
	}
	if i >= len(sorted) {
		i = len(sorted) - 1
	}
	return sorted[i]
}

func roundMS(v float64) float64 {
	return math.Round(v*100) / 100
}
