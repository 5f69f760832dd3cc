package metrics

import (
	"sync/atomic"
	"time"
)

// StepMetric summarizes one sampling step of trajectory collection.
type StepMetric struct {
	SamplingStep   int
	SearchMode     bool
	Segments       int
	SearchRollouts int
	Timesteps      int
	Duration       time.Duration
}

type Collector interface {
	Start(samplingStep int)
	SetSearchMode(value bool)
	SetSegments(n int)
	AddSearchRollout()
	AddTimesteps(n int)
	Complete() StepMetric
}

type collector struct {
	samplingStep   int
	startTime      time.Time
	searchMode     atomic.Bool
	segments       atomic.Int32
	searchRollouts atomic.Int32
	timesteps      atomic.Int32
}

func NewCollector() Collector {
	return &collector{}
}

func (m *collector) Start(samplingStep int) {
	m.samplingStep = samplingStep
	m.startTime = time.Now()
	m.searchMode.Store(false)
	m.segments.Store(0)
	m.searchRollouts.Store(0)
	m.timesteps.Store(0)
}

func (m *collector) SetSearchMode(value bool) {
	m.searchMode.Store(value)
}

func (m *collector) SetSegments(n int) {
	m.segments.Store(int32(n))
}

func (m *collector) AddSearchRollout() {
	m.searchRollouts.Add(1)
}

func (m *collector) AddTimesteps(n int) {
	m.timesteps.Add(int32(n))
}

func (m *collector) Complete() StepMetric {
	return StepMetric{
		SamplingStep:   m.samplingStep,
		SearchMode:     m.searchMode.Load(),
		Segments:       int(m.segments.Load()),
		SearchRollouts: int(m.searchRollouts.Load()),
		Timesteps:      int(m.timesteps.Load()),
		Duration:       time.Since(m.startTime),
	}
}

type dummyCollector struct{}

func NewDummyCollector() Collector {
	return &dummyCollector{}
}

func (m *dummyCollector) Start(samplingStep int)   {}
func (m *dummyCollector) SetSearchMode(value bool) {}
func (m *dummyCollector) SetSegments(n int)        {}
func (m *dummyCollector) AddSearchRollout()        {}
func (m *dummyCollector) AddTimesteps(n int)       {}
func (m *dummyCollector) Complete() StepMetric     { return StepMetric{} }
