package gesture

import (
	"sync"
	"time"
)

type State int

const (
	Idle State = iota
	Pressed
	Repeating
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Pressed:
		return "pressed"
	case Repeating:
		return "repeating"
	default:
		return "unknown"
	}
}

type Config struct {
	InitialDelay time.Duration
	Interval     time.Duration
	// MaxHold releases a gesture whose release never arrived. Zero disables it.
	MaxHold time.Duration
	Clock   Clock
}

func DefaultConfig() Config {
	return Config{
		InitialDelay: 350 * time.Millisecond,
		Interval:     90 * time.Millisecond,
		MaxHold:      30 * time.Second,
		Clock:        RealClock,
	}
}

// Repeater turns a press-and-hold into a sequence of fire calls: one at press,
// then one per Interval once InitialDelay has elapsed, until Release.
//
// fire runs with the repeater's lock held, so no call can start after Release
// returns. fire must not call back into the Repeater.
type Repeater struct {
	cfg  Config
	fire func()

	mu    sync.Mutex
	state State
	// gen invalidates timer callbacks that were already running when the
	// gesture they belong to ended.
	gen   uint64
	timer Timer
	hold  Timer
	fires int
}

func New(cfg Config, fire func()) *Repeater {
	if cfg.Clock == nil {
		cfg.Clock = RealClock
	}
	return &Repeater{cfg: cfg, fire: fire}
}

// Press starts a gesture. It reports false and does nothing when a gesture is
// already in progress.
func (r *Repeater) Press() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != Idle {
		return false
	}
	r.gen++
	gen := r.gen
	r.state = Pressed
	r.fires = 0
	r.fireLocked()

	r.timer = r.cfg.Clock.AfterFunc(r.cfg.InitialDelay, func() { r.startRepeating(gen) })
	if r.cfg.MaxHold > 0 {
		r.hold = r.cfg.Clock.AfterFunc(r.cfg.MaxHold, func() { r.expire(gen) })
	}
	return true
}

// Release ends the gesture from any state. It reports whether a gesture was
// in progress; releasing an idle repeater is a no-op.
func (r *Repeater) Release() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopLocked()
}

func (r *Repeater) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Fires is the number of fire calls made by the current or last gesture.
func (r *Repeater) Fires() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fires
}

func (r *Repeater) startRepeating(gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if gen != r.gen || r.state != Pressed {
		return
	}
	r.state = Repeating
	r.timer = r.cfg.Clock.AfterFunc(r.cfg.Interval, func() { r.tick(gen) })
}

func (r *Repeater) tick(gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if gen != r.gen || r.state != Repeating {
		return
	}
	r.fireLocked()
	r.timer = r.cfg.Clock.AfterFunc(r.cfg.Interval, func() { r.tick(gen) })
}

func (r *Repeater) expire(gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if gen != r.gen {
		return
	}
	r.stopLocked()
}

func (r *Repeater) stopLocked() bool {
	if r.state == Idle {
		return false
	}
	r.gen++
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	if r.hold != nil {
		r.hold.Stop()
		r.hold = nil
	}
	r.state = Idle
	return true
}

func (r *Repeater) fireLocked() {
	r.fires++
	r.fire()
}
