package mixer

import (
	"errors"
	"runtime"
	"sync"
)

var errBackendClosed = errors.New("audio backend closed")

// threadWorker runs every call on one locked OS thread. Thread-affine APIs
// (COM apartments) are set up, used and torn down on that thread only.
type threadWorker struct {
	calls   chan func()
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// startWorker runs setup on the new thread. teardown runs on the same thread
// when the worker stops. A setup error stops the worker immediately.
func startWorker(setup func() (teardown func(), err error)) (*threadWorker, error) {
	w := &threadWorker{
		calls:   make(chan func()),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	ready := make(chan error, 1)
	go w.loop(setup, ready)
	if err := <-ready; err != nil {
		<-w.stopped
		return nil, err
	}
	return w, nil
}

func (w *threadWorker) loop(setup func() (func(), error), ready chan<- error) {
	defer close(w.stopped)
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	teardown, err := setup()
	if err != nil {
		ready <- err
		return
	}
	if teardown != nil {
		defer teardown()
	}
	ready <- nil

	for {
		select {
		case fn := <-w.calls:
			fn()
		case <-w.done:
			return
		}
	}
}

// do runs fn on the worker thread and waits for its result.
func (w *threadWorker) do(fn func() error) error {
	errc := make(chan error, 1)
	select {
	case w.calls <- func() { errc <- fn() }:
	case <-w.done:
		return errBackendClosed
	}
	return <-errc
}

// stop ends the loop and waits until teardown has finished.
func (w *threadWorker) stop() {
	w.once.Do(func() { close(w.done) })
	<-w.stopped
}
