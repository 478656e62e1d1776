package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"
)

// signalAwareContext cancels the returned context on the first SIGINT or
// SIGTERM. The signals stay subscribed until cancel is called; later ones are
// logged and dropped so a running restore is not killed halfway.
func signalAwareContext(parent context.Context, logger *zap.Logger) (context.Context, context.CancelFunc) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancelCtx := context.WithCancel(parent)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		for {
			select {
			case sig := <-signals:
				if ctx.Err() == nil {
					logger.Info("interrupted", zap.Stringer("signal", sig))
					cancelCtx()
					continue
				}
				logger.Warn("ignoring signal while shutting down", zap.Stringer("signal", sig))
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			signal.Stop(signals)
			close(done)
			<-stopped
		})
		cancelCtx()
	}
	return ctx, cancel
}
