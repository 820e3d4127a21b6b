package timeline

import (
	"sync"
	"time"
)

// Clock creates tickers. Tests substitute ManualClock to drive playback
// without sleeping.
type Clock interface {
	NewTicker(d time.Duration) Ticker
}

// Ticker is the subset of *time.Ticker the controller needs.
type Ticker interface {
	C() <-chan time.Time
	Reset(d time.Duration)
	Stop()
}

// RealClock is backed by the time package.
type RealClock struct{}

func (RealClock) NewTicker(d time.Duration) Ticker {
	return realTicker{time.NewTicker(d)}
}

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time   { return r.t.C }
func (r realTicker) Reset(d time.Duration) { r.t.Reset(d) }
func (r realTicker) Stop()                 { r.t.Stop() }

// ManualClock fires its tickers only when Fire is called.
type ManualClock struct {
	mu      sync.Mutex
	tickers []*manualTicker
	now     time.Time
}

// NewManualClock returns a clock whose Fire timestamps start at start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) NewTicker(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTicker{ch: make(chan time.Time, 1), interval: d}
	c.tickers = append(c.tickers, t)
	return t
}

// Fire advances the clock by the interval of the newest live ticker and
// delivers one tick to every live ticker. It reports whether any ticker
// was live.
func (c *ManualClock) Fire() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	live := false
	for _, t := range c.tickers {
		t.mu.Lock()
		if !t.stopped {
			if !live {
				c.now = c.now.Add(t.interval)
			}
			live = true
			select {
			case t.ch <- c.now:
			default:
			}
		}
		t.mu.Unlock()
	}
	return live
}

// Interval returns the interval of the newest live ticker, or zero.
func (c *ManualClock) Interval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.tickers) - 1; i >= 0; i-- {
		t := c.tickers[i]
		t.mu.Lock()
		stopped, d := t.stopped, t.interval
		t.mu.Unlock()
		if !stopped {
			return d
		}
	}
	return 0
}

// Live counts tickers that have not been stopped.
func (c *ManualClock) Live() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.tickers {
		t.mu.Lock()
		if !t.stopped {
			n++
		}
		t.mu.Unlock()
	}
	return n
}

type manualTicker struct {
	mu       sync.Mutex
	ch       chan time.Time
	interval time.Duration
	stopped  bool
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }

func (t *manualTicker) Reset(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.interval = d
	t.stopped = false
}

func (t *manualTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}
