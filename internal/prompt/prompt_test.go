package prompt

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/andrej220/netsurvey/pkg/collect"
	"github.com/andrej220/netsurvey/pkg/executor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecover(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  collect.Recovery
	}{
		{"skip", "s\n", collect.Recovery{Action: collect.ActionSkip}},
		{"skip upper case", " S \n", collect.Recovery{Action: collect.ActionSkip}},
		{"new credentials", "y\nadmin\n secret \n", collect.Recovery{
			Action:      collect.ActionRetry,
			Credentials: executor.Credentials{Username: "admin", Password: "secret"},
		}},
		{"anything else retries", "retry\n", collect.Recovery{Action: collect.ActionRetry}},
		{"empty line retries", "\n", collect.Recovery{Action: collect.ActionRetry}},
		{"last line without newline", "y\nadmin\nsecret", collect.Recovery{
			Action:      collect.ActionRetry,
			Credentials: executor.Credentials{Username: "admin", Password: "secret"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			p := New(strings.NewReader(tt.input), &out)
			got, err := p.Recover(context.Background(), "10.0.0.1", errors.New("timeout"))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, out.String(), "Failed to connect to device with IP: 10.0.0.1")
			assert.Contains(t, out.String(), question)
		})
	}
}

func TestRecoverClosedInput(t *testing.T) {
	p := New(strings.NewReader(""), io.Discard)
	_, err := p.Recover(context.Background(), "10.0.0.1", nil)
	assert.ErrorIs(t, err, io.EOF)

	p = New(strings.NewReader("y\nadmin\n"), io.Discard)
	_, err = p.Recover(context.Background(), "10.0.0.1", nil)
	assert.ErrorIs(t, err, io.EOF)
}

func TestRecoverCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(strings.NewReader("s\n"), io.Discard).Recover(ctx, "10.0.0.1", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRecoverReturnsOnCancelWhileWaiting(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	p := New(pr, io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	done := make(chan error, 1)
	go func() {
		_, err := p.Recover(ctx, "10.0.0.1", nil)
		done <- err
	}()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Recover still waiting for input after cancel")
	}

	// the abandoned read delivers the next answer
	go func() { _, _ = pw.Write([]byte("s\n")) }()
	got, err := p.Recover(context.Background(), "10.0.0.1", nil)
	require.NoError(t, err)
	assert.Equal(t, collect.ActionSkip, got.Action)
}

func TestPromptsInSequence(t *testing.T) {
	var out bytes.Buffer
	p := New(strings.NewReader("x\ns\n"), &out)

	first, err := p.Recover(context.Background(), "10.0.0.1", nil)
	require.NoError(t, err)
	second, err := p.Recover(context.Background(), "10.0.0.1", nil)
	require.NoError(t, err)

	assert.Equal(t, collect.ActionRetry, first.Action)
	assert.Equal(t, collect.ActionSkip, second.Action)
	assert.Equal(t, 2, strings.Count(out.String(), question))
}
