package service

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vbonduro/pullsheet/internal/audit"
	"github.com/vbonduro/pullsheet/internal/catalog"
	"github.com/vbonduro/pullsheet/internal/db"
	"github.com/vbonduro/pullsheet/internal/gesture"
	"github.com/vbonduro/pullsheet/internal/logging"
	"github.com/vbonduro/pullsheet/internal/prefs/local"
	"github.com/vbonduro/pullsheet/internal/store"
)

type manualTimer struct {
	c       *manualClock
	when    time.Duration
	f       func()
	stopped bool
}

func (t *manualTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

// manualClock only fires timers from Advance.
type manualClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*manualTimer
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) gesture.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{c: c, when: c.now + d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now + d
	c.mu.Unlock()
	for {
		c.mu.Lock()
		var due []*manualTimer
		for _, t := range c.timers {
			if !t.stopped && t.when <= target {
				due = append(due, t)
			}
		}
		if len(due) == 0 {
			c.now = target
			c.mu.Unlock()
			return
		}
		sort.SliceStable(due, func(i, j int) bool { return due[i].when < due[j].when })
		next := due[0]
		next.stopped = true
		c.now = next.when
		c.mu.Unlock()
		next.f()
	}
}

type env struct {
	db           *db.DB
	quantities   *store.QuantityStore
	profiles     *store.ProfileStore
	interactions *store.InteractionStore
	audit        *audit.Service
	clock        *manualClock
	pull         *PullService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	d, err := db.OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	prefsStore, err := local.NewLocalPrefsStore(t.TempDir())
	require.NoError(t, err)

	e := &env{
		db:           d,
		quantities:   store.NewQuantityStore(d),
		profiles:     store.NewProfileStore(d),
		interactions: store.NewInteractionStore(d),
		clock:        &manualClock{},
	}
	e.audit = audit.NewService(e.interactions, audit.Options{Logger: logging.Discard()})
	e.pull = e.newPull(prefsStore)
	t.Cleanup(e.pull.Close)
	return e
}

func (e *env) newPull(prefsStore *local.LocalPrefsStore) *PullService {
	return NewPullService(e.quantities, prefsStore, e.audit, catalog.Default(), PullConfig{
		Gesture: gesture.Config{
			InitialDelay: 350 * time.Millisecond,
			Interval:     90 * time.Millisecond,
			MaxHold:      30 * time.Second,
			Clock:        e.clock,
		},
		ReconcileQueue: 16,
	}, nil, logging.Discard())
}
