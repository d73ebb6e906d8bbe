package service

import (
	"sync"

	"github.com/vbonduro/pullsheet/internal/domain"
	"github.com/vbonduro/pullsheet/internal/gesture"
	"github.com/vbonduro/pullsheet/internal/ledger"
	"github.com/vbonduro/pullsheet/internal/mutation"
)

type gestureKey struct {
	item domain.ItemKey
	step int
}

type workspace struct {
	actor    domain.Actor
	ledger   *ledger.Ledger
	engine   *mutation.Engine
	cfg      gesture.Config
	observer Observer

	mu        sync.Mutex
	repeaters map[gestureKey]*gesture.Repeater
}

func newWorkspace(actor domain.Actor, l *ledger.Ledger, e *mutation.Engine, cfg gesture.Config, observer Observer) *workspace {
	return &workspace{
		actor:     actor,
		ledger:    l,
		engine:    e,
		cfg:       cfg,
		observer:  observer,
		repeaters: make(map[gestureKey]*gesture.Repeater),
	}
}

func sign(step int) int {
	if step < 0 {
		return -1
	}
	return 1
}

func (w *workspace) repeater(key domain.ItemKey, step int) *gesture.Repeater {
	gk := gestureKey{item: key, step: sign(step)}

	w.mu.Lock()
	defer w.mu.Unlock()
	r, ok := w.repeaters[gk]
	if !ok {
		r = gesture.New(w.cfg, func() {
			w.observer.ObserveMutation("delta")
			w.engine.ApplyDelta(gk.item, gk.step)
		})
		w.repeaters[gk] = r
	}
	return r
}

func (w *workspace) press(key domain.ItemKey, step int) bool {
	return w.repeater(key, step).Press()
}

func (w *workspace) release(key domain.ItemKey, step int) {
	w.mu.Lock()
	r, ok := w.repeaters[gestureKey{item: key, step: sign(step)}]
	w.mu.Unlock()
	if ok {
		r.Release()
	}
}

func (w *workspace) releaseAll() {
	w.mu.Lock()
	rs := make([]*gesture.Repeater, 0, len(w.repeaters))
	for _, r := range w.repeaters {
		rs = append(rs, r)
	}
	w.mu.Unlock()

	for _, r := range rs {
		r.Release()
	}
}

// close cancels every gesture timer and stops the ledger accepting writes.
func (w *workspace) close() {
	w.releaseAll()
	w.ledger.Close()
}
