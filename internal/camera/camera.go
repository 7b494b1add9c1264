// Package camera owns frame acquisition: the device-backed ZED path, the
// synthetic fallback feed, and the capture loop publishing the latest
// frame to a shared slot.
package camera

import (
	"log"
	"sync"
	"time"

	"rover-ops-go/internal/encode"
	"rover-ops-go/internal/types"
)

// Hardware is the device-backed frame path. Grab returns an encoded frame
// or an error describing why the device could not deliver one this cycle;
// the streamer substitutes the synthetic feed and retries next cycle.
type Hardware interface {
	Grab(opts encode.Options) (types.Frame, error)
	Close()
}

type Config struct {
	// Interval is the target capture period. The reference tuning is
	// 12.5ms for an 80Hz-equivalent goal.
	Interval time.Duration
	Encode   encode.Options
	Device   int
}

const stopWait = time.Second

// Streamer runs the capture loop and owns the camera handle. The only
// state shared with readers is the latest-frame slot; the mutex around it
// is held just long enough to copy or replace the frame.
type Streamer struct {
	cfg   Config
	hw    Hardware
	hwErr error
	synth *synthetic

	// produceMu serializes acquisition cycles: the device handle must
	// never see concurrent calls, and the cold-read path produces on the
	// reader's goroutine.
	produceMu sync.Mutex

	mu     sync.Mutex
	latest *types.Frame

	runMu  sync.Mutex
	stopCh chan struct{}
	done   chan struct{}
}

func NewStreamer(cfg Config) *Streamer {
	if cfg.Interval <= 0 {
		cfg.Interval = 12500 * time.Microsecond
	}
	s := &Streamer{cfg: cfg, synth: newSynthetic()}
	s.hw, s.hwErr = NewHardware(cfg.Device)
	if s.hwErr != nil {
		log.Printf("camera: %v; using mock feed", s.hwErr)
	}
	return s
}

// produce runs one acquisition cycle: hardware first, synthetic fallback
// with the diagnostic carried in the frame status. Hardware is retried
// every cycle; an already-open device is reused, not reopened. Cycles are
// serialized by produceMu so a cold read never enters the device while
// the loop is mid-grab.
func (s *Streamer) produce() types.Frame {
	s.produceMu.Lock()
	defer s.produceMu.Unlock()

	if s.hw != nil {
		frame, err := s.hw.Grab(s.cfg.Encode)
		if err == nil {
			return frame
		}
		return s.synth.Frame(s.cfg.Encode, err.Error())
	}
	status := ""
	if s.hwErr != nil {
		status = s.hwErr.Error()
	}
	return s.synth.Frame(s.cfg.Encode, status)
}

// Start launches the capture loop. Calling it on a running streamer is a
// no-op.
func (s *Streamer) Start() {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.stopCh != nil {
		return
	}
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop(s.stopCh, s.done)
}

// Stop signals the loop and waits (bounded) for it to exit. No frame is
// produced by the loop after Stop returns.
func (s *Streamer) Stop() {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.stopCh == nil {
		return
	}
	close(s.stopCh)
	select {
	case <-s.done:
	case <-time.After(stopWait):
		log.Printf("camera: capture loop did not stop within %v", stopWait)
	}
	s.stopCh = nil
	s.done = nil
}

// Close stops the loop and releases the device handle.
func (s *Streamer) Close() {
	s.Stop()
	if s.hw != nil {
		s.hw.Close()
	}
}

func (s *Streamer) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	next := time.Now()
	for {
		frame := s.produce()
		s.mu.Lock()
		s.latest = &frame
		s.mu.Unlock()

		next = nextDeadline(next, time.Now(), s.cfg.Interval)
		timer := time.NewTimer(time.Until(next))
		select {
		case <-stop:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// nextDeadline schedules the following cycle at prev+period. When a cycle
// has overrun the whole period the schedule realigns to now: bounded drift
// instead of a burst of catch-up frames.
func nextDeadline(prev, now time.Time, period time.Duration) time.Time {
	next := prev.Add(period)
	if next.After(now) {
		return next
	}
	return now
}

// Latest returns a copy of the newest frame. A read arriving before the
// loop has produced anything synchronously runs one production cycle and
// seeds the slot, so a connected client never sees an empty frame.
func (s *Streamer) Latest() types.Frame {
	s.mu.Lock()
	if s.latest != nil {
		frame := *s.latest
		s.mu.Unlock()
		return frame
	}
	s.mu.Unlock()

	frame := s.produce()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		s.latest = &frame
	}
	return *s.latest
}

// Snapshot reports the latest frame's source, status, and timestamp
// without triggering production on a cold slot.
func (s *Streamer) Snapshot() (source, status, timestamp string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return "", "", ""
	}
	return s.latest.Source, s.latest.Status, s.latest.Timestamp
}
