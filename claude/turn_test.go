package claude

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazelment/claude-terminal/protocol"
)

// writeStub writes an executable shell script standing in for the CLI.
func writeStub(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "claude-stub")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

// collect drains the event channel until close or timeout.
func collect(t *testing.T, turn *Turn, timeout time.Duration) []Event {
	t.Helper()
	var events []Event
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-turn.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-deadline:
			t.Fatalf("timed out waiting for events, got %d so far", len(events))
		}
	}
}

func TestTurn_StreamsEventsAndFinishes(t *testing.T) {
	stub := writeStub(t, `cat >/dev/null
echo '{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hi"}}'
echo '{"type":"result","subtype":"success","result":"done"}'
`)

	turn, err := Start(context.Background(), Options{Model: "sonnet", Command: stub})
	require.NoError(t, err)
	require.NoError(t, turn.Send("hello"))

	events := collect(t, turn, 5*time.Second)
	require.Len(t, events, 2)

	se, ok := events[0].(StreamEvent)
	require.True(t, ok, "expected StreamEvent, got %T", events[0])
	text, ok := se.Event.(protocol.TextEvent)
	require.True(t, ok, "expected TextEvent, got %T", se.Event)
	assert.Equal(t, "Hi", text.Text)

	_, ok = events[1].(Finished)
	assert.True(t, ok, "expected Finished last, got %T", events[1])
}

func TestTurn_MalformedLinesAreSkipped(t *testing.T) {
	stub := writeStub(t, `cat >/dev/null
echo 'not json at all'
echo '{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"ok"}}'
`)

	turn, err := Start(context.Background(), Options{Model: "sonnet", Command: stub})
	require.NoError(t, err)
	require.NoError(t, turn.Send("hello"))

	events := collect(t, turn, 5*time.Second)
	require.Len(t, events, 2)
	assert.IsType(t, StreamEvent{}, events[0])
	assert.IsType(t, Finished{}, events[1])
}

func TestTurn_StderrIsNotSurfaced(t *testing.T) {
	stub := writeStub(t, `cat >/dev/null
echo 'warning: something' >&2
echo '{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"clean"}}'
`)

	turn, err := Start(context.Background(), Options{Model: "sonnet", Command: stub})
	require.NoError(t, err)
	require.NoError(t, turn.Send("hello"))

	events := collect(t, turn, 5*time.Second)
	require.Len(t, events, 2)
	se := events[0].(StreamEvent)
	assert.Equal(t, "clean", se.Event.(protocol.TextEvent).Text)
}

func TestTurn_SpawnFailure(t *testing.T) {
	_, err := Start(context.Background(), Options{
		Model:   "sonnet",
		Command: filepath.Join(t.TempDir(), "does-not-exist"),
	})
	require.Error(t, err)
}

func TestTurn_SendTwiceFails(t *testing.T) {
	stub := writeStub(t, `cat >/dev/null`)

	turn, err := Start(context.Background(), Options{Model: "sonnet", Command: stub})
	require.NoError(t, err)
	require.NoError(t, turn.Send("one"))
	assert.Error(t, turn.Send("two"))
	collect(t, turn, 5*time.Second)
}

func TestTurn_SendFailureReapsProcess(t *testing.T) {
	// The stub exits without reading stdin, so the write hits a closed pipe.
	stub := writeStub(t, `exit 0`)

	turn, err := Start(context.Background(), Options{Model: "sonnet", Command: stub})
	require.NoError(t, err)

	// Give the stub time to exit so the pipe is closed before the write.
	time.Sleep(200 * time.Millisecond)
	require.Error(t, turn.Send("hello"))

	// The process is reaped and the channel closes; nothing leaks until
	// client exit.
	select {
	case _, ok := <-turn.Events():
		assert.False(t, ok, "events channel should close with no events")
	case <-time.After(5 * time.Second):
		t.Fatal("events channel never closed after failed Send")
	}
}

func TestTurn_AbortTerminatesProcess(t *testing.T) {
	stub := writeStub(t, `cat >/dev/null
sleep 30
echo '{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"late"}}'
`)

	turn, err := Start(context.Background(), Options{Model: "sonnet", Command: stub})
	require.NoError(t, err)
	require.NoError(t, turn.Send("hello"))

	turn.Abort()
	turn.Abort() // idempotent

	events := collect(t, turn, 5*time.Second)
	for _, ev := range events {
		if se, ok := ev.(StreamEvent); ok {
			if text, ok := se.Event.(protocol.TextEvent); ok {
				assert.NotEqual(t, "late", text.Text)
			}
		}
	}
}

func TestTurn_ResumeAndContinueFlags(t *testing.T) {
	// The stub reports its arguments back through the stream so flag
	// plumbing is observable.
	stub := writeStub(t, `cat >/dev/null
printf '{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"%s"}}\n' "$*"
`)

	turn, err := Start(context.Background(), Options{Model: "opus", ResumeID: "sess_42", Command: stub})
	require.NoError(t, err)
	require.NoError(t, turn.Send("hello"))

	events := collect(t, turn, 5*time.Second)
	require.NotEmpty(t, events)
	se := events[0].(StreamEvent)
	argLine := se.Event.(protocol.TextEvent).Text
	assert.Contains(t, argLine, "--model opus")
	assert.Contains(t, argLine, "--resume sess_42")
	assert.NotContains(t, argLine, "--continue")
}
