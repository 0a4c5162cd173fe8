package session

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// Task is a unit of work run on the loop goroutine.
type Task func(ctx context.Context)

type Scheduler interface {
	// After runs task on the loop once d has elapsed.
	After(d time.Duration, task Task)
}

// Loop runs posted tasks one at a time, in order, on a single goroutine.
// Everything that touches a Controller goes through it, so controller
// operations never overlap and UI callbacks return immediately.
type Loop struct {
	clock clock.Clock
	log   *zap.SugaredLogger

	tasks chan Task
	quit  chan struct{}
	done  chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	startOnce sync.Once
	closeOnce sync.Once
}

func NewLoop(clk clock.Clock, log *zap.SugaredLogger) *Loop {
	ctx, cancel := context.WithCancel(context.Background())
	return &Loop{
		clock:  clk,
		log:    log,
		tasks:  make(chan Task, 64),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches the loop goroutine. Calling it more than once is a no-op.
func (l *Loop) Start() {
	l.startOnce.Do(func() {
		go l.run()
	})
}

func (l *Loop) run() {
	defer close(l.done)

	for {
		select {
		case <-l.quit:
			return
		case task := <-l.tasks:
			select {
			case <-l.quit:
				return
			default:
			}
			l.exec(task)
		}
	}
}

func (l *Loop) exec(task Task) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Errorw("task panicked", "panic", r)
		}
	}()
	task(l.ctx)
}

// Post queues task. It returns false once the loop is closed.
func (l *Loop) Post(task Task) bool {
	select {
	case <-l.quit:
		return false
	default:
	}

	select {
	case l.tasks <- task:
		return true
	case <-l.quit:
		return false
	}
}

func (l *Loop) After(d time.Duration, task Task) {
	l.clock.AfterFunc(d, func() {
		l.Post(task)
	})
}

// Close cancels the loop context, drops queued tasks and waits for the
// goroutine to exit.
func (l *Loop) Close() {
	l.closeOnce.Do(func() {
		l.cancel()
		close(l.quit)
		l.Start()
		<-l.done
	})
}
