package main

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

const (
	progressUpdateInterval = 100 * time.Millisecond
	clearLineSequence      = "\r\033[K"
)

// ProgressPrinter shows the current connection phase with elapsed seconds on a single line.
//
//	p := NewProgressPrinter(os.Stderr, "Connecting to band", band.PhaseConnecting, band.PhaseReady, band.PhaseFailed)
//	p.Start()
//	defer p.Stop()
//
// Entering one of the stop phases through Callback stops the printer. A ProgressPrinter
// is single-use.
type ProgressPrinter struct {
	out        io.Writer
	prefix     string
	phase      atomic.Value // string
	stopPhases map[string]struct{}
	startTime  time.Time

	startOnce sync.Once
	stopOnce  sync.Once
	stopChan  chan struct{}
	done      chan struct{}
}

// NewProgressPrinter creates a printer writing to out.
func NewProgressPrinter(out io.Writer, prefix string, phase string, stopPhases ...string) *ProgressPrinter {
	stopSet := make(map[string]struct{}, len(stopPhases))
	for _, p := range stopPhases {
		stopSet[p] = struct{}{}
	}
	p := &ProgressPrinter{
		out:        out,
		prefix:     prefix,
		stopPhases: stopSet,
		stopChan:   make(chan struct{}),
		done:       make(chan struct{}),
	}
	p.phase.Store(phase)
	return p
}

// Start begins redrawing the progress line in a background goroutine.
func (p *ProgressPrinter) Start() {
	p.startOnce.Do(func() {
		p.startTime = time.Now()
		p.print(p.phase.Load().(string), 0)

		go func() {
			defer close(p.done)
			ticker := time.NewTicker(progressUpdateInterval)
			defer ticker.Stop()

			for {
				select {
				case <-p.stopChan:
					return
				case <-ticker.C:
					phase := p.phase.Load().(string)
					if _, stop := p.stopPhases[phase]; stop {
						return
					}
					p.print(phase, int(time.Since(p.startTime).Seconds()))
				}
			}
		}()
	})
}

func (p *ProgressPrinter) print(phase string, seconds int) {
	if seconds > 0 {
		fmt.Fprintf(p.out, "\r%s (%s %ds)   ", p.prefix, phase, seconds)
	} else {
		fmt.Fprintf(p.out, "\r%s (%s...)   ", p.prefix, phase)
	}
}

// Callback returns a band.ProgressCallback that updates the phase.
// Safe to call from multiple goroutines.
func (p *ProgressPrinter) Callback() func(phase string) {
	return func(phase string) {
		p.phase.Store(phase)
		if _, stop := p.stopPhases[phase]; stop {
			p.Stop()
		}
	}
}

// Stop stops redrawing and clears the line. Safe to call more than once.
func (p *ProgressPrinter) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopChan)
		started := true
		p.startOnce.Do(func() { started = false })
		if started {
			<-p.done
		}
		fmt.Fprint(p.out, clearLineSequence)
	})
}
