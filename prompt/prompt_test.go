package prompt

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

func TestTerminalConfirm(t *testing.T) {
	c := qt.New(t)
	for _, tc := range []struct {
		input string
		want  bool
	}{
		{"yes\n", true},
		{"y\n", true},
		{"YES\n", true},
		{" Y \n", true},
		{"no\n", false},
		{"yess\n", false},
		{"\n", false},
		{"", false},
		{"yes", true},
	} {
		var out bytes.Buffer
		ok, err := NewTerminalWith(strings.NewReader(tc.input), &out).Confirm(context.Background(), "send? ")
		c.Assert(err, qt.IsNil)
		c.Assert(ok, qt.Equals, tc.want, qt.Commentf("input %q", tc.input))
		c.Assert(out.String(), qt.Contains, "send? ")
	}
}

func TestTerminalConfirmCancelled(t *testing.T) {
	c := qt.New(t)
	r, w := io.Pipe()
	defer func() { _ = w.Close() }()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	ok, err := NewTerminalWith(r, io.Discard).Confirm(ctx, "send? ")
	c.Assert(err, qt.ErrorIs, context.DeadlineExceeded)
	c.Assert(ok, qt.IsFalse)
}

func TestTerminalConfirmSequence(t *testing.T) {
	c := qt.New(t)
	terminal := NewTerminalWith(strings.NewReader("yes\nno\ny\n"), io.Discard)
	for i, want := range []bool{true, false, true, false} {
		ok, err := terminal.Confirm(context.Background(), "send? ")
		c.Assert(err, qt.IsNil)
		c.Assert(ok, qt.Equals, want, qt.Commentf("answer %d", i))
	}
}

func TestTerminalConfirmAfterCancel(t *testing.T) {
	c := qt.New(t)
	r, w := io.Pipe()
	defer func() { _ = w.Close() }()
	terminal := NewTerminalWith(r, io.Discard)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := terminal.Confirm(ctx, "send? ")
	c.Assert(err, qt.ErrorIs, context.DeadlineExceeded)

	go func() { _, _ = io.WriteString(w, "y\n") }()
	ok, err := terminal.Confirm(context.Background(), "send? ")
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsTrue)
}

func TestStaticAndFunc(t *testing.T) {
	c := qt.New(t)
	ok, err := Static(true).Confirm(context.Background(), "")
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsTrue)

	var asked string
	f := Func(func(_ context.Context, msg string) (bool, error) {
		asked = msg
		return false, nil
	})
	ok, err = f.Confirm(context.Background(), "really?")
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsFalse)
	c.Assert(asked, qt.Equals, "really?")
}
