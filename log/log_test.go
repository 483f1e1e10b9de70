package log

import (
	"bytes"
	"errors"
	"testing"

	qt "github.com/frankban/quicktest"
)

func withTestWriter(c *qt.C, level string) *bytes.Buffer {
	prev := getLogger()
	buf := new(bytes.Buffer)
	logTestWriter = buf
	Init(level, logTestWriterName, nil)
	buf.Reset()
	c.Cleanup(func() {
		logTestWriter = nil
		setLogger(prev)
	})
	return buf
}

func TestLevelFiltering(t *testing.T) {
	c := qt.New(t)
	buf := withTestWriter(c, LogLevelWarn)

	Infow("hidden", "k", 1)
	c.Assert(buf.Len(), qt.Equals, 0)

	Warnw("gas price fetcher failed", "chainID", 137)
	c.Assert(buf.String(), qt.Contains, "gas price fetcher failed")
	c.Assert(buf.String(), qt.Contains, "chainID=137")
	c.Assert(Level(), qt.Equals, LogLevelWarn)
}

func TestErrorw(t *testing.T) {
	c := qt.New(t)
	buf := withTestWriter(c, LogLevelDebug)

	Errorw(errors.New("boom"), "drip failed")
	c.Assert(buf.String(), qt.Contains, "drip failed")
	c.Assert(buf.String(), qt.Contains, "boom")
}

func TestWith(t *testing.T) {
	c := qt.New(t)
	buf := withTestWriter(c, LogLevelInfo)

	l := With("run", "abc")
	l.Info().Msg("starting")
	c.Assert(buf.String(), qt.Contains, "run=abc")
}

func TestValidLevel(t *testing.T) {
	c := qt.New(t)
	c.Assert(ValidLevel("info"), qt.IsTrue)
	c.Assert(ValidLevel("trace"), qt.IsFalse)
}
