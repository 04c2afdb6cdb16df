// Package prompt asks the operator how to continue when a device cannot be
// reached.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/andrej220/netsurvey/pkg/collect"
	"github.com/andrej220/netsurvey/pkg/executor"
	"golang.org/x/term"
)

const question = "Enter new credentials (y) or skip (s): "

// Terminal implements collect.Prompter on a line-oriented console.
type Terminal struct {
	in  *bufio.Reader
	out io.Writer
	// fd is the terminal used for hidden password entry, -1 when input is
	// not a terminal.
	fd int
	// pending carries a read abandoned by a cancelled Recover; the next read
	// takes its line instead of starting another.
	pending chan lineResult
}

type lineResult struct {
	line string
	err  error
}

// New reads answers from in and writes prompts to out. Passwords are read as
// plain lines.
func New(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{in: bufio.NewReader(in), out: out, fd: -1}
}

// NewStdio prompts on the process's standard streams and hides password input
// when stdin is a terminal.
func NewStdio() *Terminal {
	t := New(os.Stdin, os.Stdout)
	if fd := int(os.Stdin.Fd()); term.IsTerminal(fd) {
		t.fd = fd
	}
	return t
}

// Recover reports the failure and reads one choice: "y" asks for new
// credentials, "s" skips, anything else retries with the same credentials.
// It returns as soon as ctx is done, even while waiting for input.
func (t *Terminal) Recover(ctx context.Context, address string, cause error) (collect.Recovery, error) {
	if err := ctx.Err(); err != nil {
		return collect.Recovery{}, err
	}
	if cause != nil {
		fmt.Fprintf(t.out, "Failed to connect to device with IP: %s (%v).\n", address, cause)
	}
	fmt.Fprint(t.out, question)
	choice, err := t.readLine(ctx)
	if err != nil {
		return collect.Recovery{}, err
	}
	switch strings.ToLower(choice) {
	case "y":
		creds, err := t.readCredentials(ctx)
		if err != nil {
			return collect.Recovery{}, err
		}
		return collect.Recovery{Action: collect.ActionRetry, Credentials: creds}, nil
	case "s":
		return collect.Recovery{Action: collect.ActionSkip}, nil
	default:
		return collect.Recovery{Action: collect.ActionRetry}, nil
	}
}

func (t *Terminal) readCredentials(ctx context.Context) (executor.Credentials, error) {
	fmt.Fprint(t.out, "Username: ")
	user, err := t.readLine(ctx)
	if err != nil {
		return executor.Credentials{}, err
	}
	fmt.Fprint(t.out, "Password: ")
	var pass string
	if t.fd >= 0 {
		if pass, err = t.readPassword(ctx); err != nil {
			return executor.Credentials{}, err
		}
	} else if pass, err = t.readLine(ctx); err != nil {
		return executor.Credentials{}, err
	}
	return executor.Credentials{Username: user, Password: pass}, nil
}

func (t *Terminal) readPassword(ctx context.Context) (string, error) {
	ch := make(chan lineResult, 1)
	go func() {
		b, err := term.ReadPassword(t.fd)
		ch <- lineResult{line: string(b), err: err}
	}()
	select {
	case r := <-ch:
		fmt.Fprintln(t.out)
		if r.err != nil {
			return "", fmt.Errorf("read password: %w", r.err)
		}
		return strings.TrimSpace(r.line), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// readLine waits for the next line or for ctx to be done.
func (t *Terminal) readLine(ctx context.Context) (string, error) {
	if t.pending == nil {
		ch := make(chan lineResult, 1)
		t.pending = ch
		go func() {
			line, err := t.nextLine()
			ch <- lineResult{line: line, err: err}
		}()
	}
	select {
	case r := <-t.pending:
		t.pending = nil
		return r.line, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// nextLine returns the next trimmed line. A final line without newline is
// accepted; EOF before any input is an error.
func (t *Terminal) nextLine() (string, error) {
	line, err := t.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		if errors.Is(err, io.EOF) {
			return "", fmt.Errorf("operator input closed: %w", err)
		}
		return "", fmt.Errorf("read operator input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
