// Package prompt asks the operator for confirmation before sending
// transactions.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/cowdao-grants/cowfee/log"
	"github.com/fatih/color"
	"golang.org/x/term"
)

// Confirmer answers a yes/no question.
type Confirmer interface {
	Confirm(ctx context.Context, message string) (bool, error)
}

// Static always answers the same.
type Static bool

func (s Static) Confirm(context.Context, string) (bool, error) { return bool(s), nil }

// Func adapts a function to Confirmer.
type Func func(ctx context.Context, message string) (bool, error)

func (f Func) Confirm(ctx context.Context, message string) (bool, error) { return f(ctx, message) }

// Terminal reads the answer from a line of input. Only "yes" and "y" are
// accepted as a confirmation, in any case.
type Terminal struct {
	in     *bufio.Reader
	out    io.Writer
	colour *color.Color

	mu      sync.Mutex
	pending chan answer
}

type answer struct {
	line string
	err  error
}

// NewTerminal returns a Terminal on the process stdin and stdout.
func NewTerminal() *Terminal {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		log.Debugw("stdin is not a terminal, confirmations are read from the input stream")
	}
	return NewTerminalWith(os.Stdin, os.Stdout)
}

// NewTerminalWith returns a Terminal on the given streams.
func NewTerminalWith(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{
		in:     bufio.NewReader(in),
		out:    out,
		colour: color.New(color.FgYellow, color.Bold),
	}
}

// Confirm writes message and waits for one line of input. A closed input
// is a refusal. A line still being read when ctx is done answers the next
// call.
func (t *Terminal) Confirm(ctx context.Context, message string) (bool, error) {
	if _, err := t.colour.Fprint(t.out, message); err != nil {
		return false, fmt.Errorf("failed to write prompt: %w", err)
	}

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case a := <-t.readLine():
		t.mu.Lock()
		t.pending = nil
		t.mu.Unlock()
		if a.err != nil && !errors.Is(a.err, io.EOF) {
			return false, fmt.Errorf("failed to read answer: %w", a.err)
		}
		return IsYes(a.line), nil
	}
}

// readLine starts reading a line unless a read is already in flight.
func (t *Terminal) readLine() <-chan answer {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending == nil {
		ch := make(chan answer, 1)
		t.pending = ch
		go func() {
			line, err := t.in.ReadString('\n')
			ch <- answer{line: line, err: err}
		}()
	}
	return t.pending
}

// IsYes reports whether answer confirms.
func IsYes(answer string) bool {
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "yes" || answer == "y"
}
