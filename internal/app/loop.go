package app

import (
	"context"
	"log/slog"
	"time"

	"bsrBridge/internal/domain"
)

const loopQueueSize = 256

// Loop es la goroutine única dueña del estado del bridge.
type Loop struct {
	tasks chan func()
	done  chan struct{}
}

func NewLoop() *Loop {
	return &Loop{
		tasks: make(chan func(), loopQueueSize),
		done:  make(chan struct{}),
	}
}

// Run procesa tareas hasta que ctx se cancela.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-l.tasks:
			l.exec(fn)
		}
	}
}

// Done se cierra cuando Run termina.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("loop task panicked", slog.String("component", "loop"), slog.Any("panic", r))
		}
	}()
	fn()
}

func (l *Loop) Post(fn func()) {
	select {
	case l.tasks <- fn:
	case <-l.done:
	}
}

func (l *Loop) Go(work func() error, done func(error)) {
	go func() {
		err := work()
		l.Post(func() { done(err) })
	}()
}

func (l *Loop) AfterFunc(d time.Duration, fn func()) domain.Timer {
	return time.AfterFunc(d, func() { l.Post(fn) })
}

// Call ejecuta fn dentro del loop y espera su resultado.
func Call[T any](ctx context.Context, l *Loop, fn func() T) (T, error) {
	result := make(chan T, 1)
	l.Post(func() { result <- fn() })
	select {
	case v := <-result:
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case <-l.done:
		var zero T
		return zero, context.Canceled
	}
}

var _ domain.Loop = (*Loop)(nil)
