package airwayvision

import (
	"context"

	"go.viam.com/utils"

	"github.com/russellmiller49/AirwayVision/airway"
)

// StartFlythrough begins automatic forward stepping at the configured
// cadence and returns immediately. Stepping halts when the navigator leaves
// the navigating state or automatic mode, when StopFlythrough is called, or
// when ctx is cancelled. Steps clamped at a branch end are no-ops, so the
// operator can pick a child branch mid-flight and the flight continues into
// it.
func (w *Workstation) StartFlythrough(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stepCancel != nil {
		return nil
	}
	if w.nav.State() == airway.StateIdle {
		if err := w.nav.StartNavigation(); err != nil {
			return err
		}
	}
	w.nav.SetMode(airway.ModeAutomatic)

	stepCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	w.stepCancel = cancel
	w.stepDone = done
	go w.stepLoop(stepCtx, done)

	w.logger.Infof("Fly-through started at %.1f steps/s", w.cfg.StepsPerSecond)
	w.notifyLocked()
	return nil
}

func (w *Workstation) stepLoop(ctx context.Context, done chan struct{}) {
	defer func() {
		close(done)
		w.mu.Lock()
		if w.stepDone == done {
			w.stepCancel = nil
			w.stepDone = nil
		}
		w.mu.Unlock()
	}()

	interval := w.stepInterval()
	for {
		if !utils.SelectContextOrWait(ctx, interval) {
			return
		}
		w.mu.Lock()
		if w.nav.Mode() != airway.ModeAutomatic || w.nav.State() != airway.StateNavigating {
			w.mu.Unlock()
			return
		}
		w.nav.MoveForward()
		w.notifyLocked()
		w.mu.Unlock()
	}
}

// StopFlythrough halts automatic stepping, waits for the stepping goroutine
// to exit, and returns the navigator to manual mode. Safe to call when no
// fly-through is running.
func (w *Workstation) StopFlythrough() {
	w.mu.Lock()
	cancel, done := w.stepCancel, w.stepDone
	w.stepCancel, w.stepDone = nil, nil
	w.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done

	w.mu.Lock()
	defer w.mu.Unlock()
	w.nav.SetMode(airway.ModeManual)
	w.notifyLocked()
}
