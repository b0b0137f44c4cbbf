package main

import (
	"fmt"
	"sync/atomic"
	"time"
)

const (
	progressUpdateInterval = 100 * time.Millisecond
	clearLineSequence      = "\r\033[K"
)

// ProgressPrinter displays a single-line countdown while a long operation
// runs, e.g. "Pairing heater (scanning 42s)".
//
// Usage:
//
//	p := NewProgressPrinter("Pairing heater", "scanning", window)
//	p.Start()
//	defer p.Stop()
//
// A ProgressPrinter is single-use: Start at most once, Stop exactly once.
// Stop is safe to call from multiple goroutines; only the first call clears
// the line.
type ProgressPrinter struct {
	prefix    string
	phase     atomic.Value // current phase name
	duration  time.Duration
	startTime time.Time
	ticker    atomic.Pointer[time.Ticker]
	stopChan  chan struct{}
	done      chan struct{}
	started   atomic.Bool
}

// NewProgressPrinter creates a countdown printer for an operation expected to
// take up to duration.
func NewProgressPrinter(prefix, phase string, duration time.Duration) *ProgressPrinter {
	p := &ProgressPrinter{
		prefix:   prefix,
		duration: duration,
	}
	p.phase.Store(phase)
	return p
}

// SetPhase updates the displayed phase name. Safe from any goroutine.
func (p *ProgressPrinter) SetPhase(phase string) {
	p.phase.Store(phase)
}

// Start begins displaying updates in a background goroutine. Panics when
// called more than once.
func (p *ProgressPrinter) Start() {
	if !p.started.CompareAndSwap(false, true) {
		panic("ProgressPrinter.Start called more than once")
	}

	p.stopChan = make(chan struct{})
	p.done = make(chan struct{})
	p.startTime = time.Now()
	ticker := time.NewTicker(progressUpdateInterval)
	p.ticker.Store(ticker)

	p.print()
	go p.loop(ticker)
}

func (p *ProgressPrinter) loop(ticker *time.Ticker) {
	defer close(p.done)
	for {
		select {
		case <-p.stopChan:
			return
		case <-ticker.C:
			p.print()
		}
	}
}

func (p *ProgressPrinter) print() {
	remaining := p.duration - time.Since(p.startTime)
	if remaining < 0 {
		remaining = 0
	}
	// Round to the nearest whole second so the countdown reads naturally.
	seconds := int(remaining.Seconds() + 0.5)
	fmt.Printf("\r%s (%s %ds)   ", p.prefix, p.phase.Load().(string), seconds)
}

// Stop halts the countdown and clears the progress line.
func (p *ProgressPrinter) Stop() {
	ticker := p.ticker.Swap(nil)
	if ticker == nil {
		return // already stopped
	}

	ticker.Stop()
	close(p.stopChan)
	<-p.done

	fmt.Print(clearLineSequence)
}
