// Package workspace implements the caller-owned scratch arena threaded
// through every arithmetic routine.
//
// A Workspace is a bump allocator over a fixed slice of units. Routines take
// a mark on entry, allocate what they need and release back to the mark
// before returning, so the peak usage of any call tree is a pure function of
// the public operand sizes. Each routine has a paired sizing function that
// returns that peak; callers size a workspace with it once and reuse it.
package workspace

import (
	"fmt"

	"github.com/moonfruit/go-corecrypto/unit"
)

type Workspace struct {
	buf  []unit.Unit
	off  int
	high int
}

// Mark is a saved allocation offset.
type Mark int

// New returns a workspace with capacity for n units.
func New(n int) *Workspace {
	return &Workspace{buf: make([]unit.Unit, n)}
}

// Ensure returns ws unchanged when it is non-nil and a fresh workspace of n
// units otherwise.
func Ensure(ws *Workspace, n int) *Workspace {
	if ws != nil {
		return ws
	}
	return New(n)
}

// Alloc hands out n units. The contents are unspecified. Running out of
// space means the caller sized the workspace wrongly, which is a programming
// error, so Alloc panics.
func (ws *Workspace) Alloc(n int) []unit.Unit {
	end := ws.off + n
	if end > len(ws.buf) {
		panic(fmt.Sprintf("workspace: exhausted (need %d, have %d)", end, len(ws.buf)))
	}
	s := ws.buf[ws.off:end:end]
	ws.off = end
	if end > ws.high {
		ws.high = end
	}
	return s
}

func (ws *Workspace) Mark() Mark {
	return Mark(ws.off)
}

// Release returns every allocation made since m and wipes it.
func (ws *Workspace) Release(m Mark) {
	clear(ws.buf[m:ws.off])
	ws.off = int(m)
}

// Cap returns the capacity in units.
func (ws *Workspace) Cap() int {
	return len(ws.buf)
}

// Used returns the number of units currently allocated.
func (ws *Workspace) Used() int {
	return ws.off
}

// HighWater returns the peak number of units allocated so far.
func (ws *Workspace) HighWater() int {
	return ws.high
}

// Reset releases everything and clears the high-water mark.
func (ws *Workspace) Reset() {
	ws.Release(0)
	ws.high = 0
}
