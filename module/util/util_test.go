package util

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckClosed(t *testing.T) {
	ch := make(chan struct{})
	assert.False(t, CheckClosed(ch))

	close(ch)
	assert.True(t, CheckClosed(ch))
	require.NoError(t, WaitClosed(context.Background(), ch))
}

func TestWaitError(t *testing.T) {
	errChan := make(chan error, 1)
	done := make(chan struct{})

	close(done)
	require.NoError(t, WaitError(errChan, done))

	// an error already sent wins over done
	errChan <- errors.New("boom")
	require.EqualError(t, WaitError(errChan, done), "boom")
}

func TestWaitClosed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	open := make(chan struct{})
	require.ErrorIs(t, WaitClosed(ctx, open), context.Canceled)

	// closed channel wins over cancelled context
	closed := make(chan struct{})
	close(closed)
	require.NoError(t, WaitClosed(ctx, closed))
}

func TestLogProgress(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	progress := LogProgress(log, "keys", 20)
	for i := 0; i < 20; i++ {
		progress(1)
	}
	progress(-1)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	// 0% plus every 10%
	assert.Len(t, lines, 11)
	assert.Contains(t, lines[len(lines)-1], "keys progress 100.0%")
}
