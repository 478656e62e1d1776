package main

import (
	"context"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSignalAwareContext_SecondSignalDuringShutdown(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ctx, cancel := signalAwareContext(context.Background(), zap.New(core))
	defer cancel()

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGINT))
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("context not cancelled by SIGINT")
	}

	// The restore window: the process must survive another interrupt.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGINT))
	require.Eventually(t, func() bool {
		return logs.FilterMessage("ignoring signal while shutting down").Len() == 1
	}, 5*time.Second, 10*time.Millisecond)
	require.Equal(t, 1, logs.FilterMessage("interrupted").Len())
}

func TestSignalAwareContext_CancelIsIdempotent(t *testing.T) {
	ctx, cancel := signalAwareContext(context.Background(), nil)
	cancel()
	cancel()
	require.ErrorIs(t, ctx.Err(), context.Canceled)
}
