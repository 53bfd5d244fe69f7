package streams

import (
	"github.com/jloutsch/minidumptruck/pkg/dumpctx"
	"github.com/jloutsch/minidumptruck/pkg/dumpio"
)

// MaxThreads caps how many ThreadList entries are decoded, per §3 invariant 2.
const MaxThreads = 10000

const threadRecordSize = 48

// DecodeThreadList decodes the ThreadList stream at rva.
func DecodeThreadList(blob *dumpio.Blob, rva int64) ([]ThreadInfo, bool) {
	c := dumpio.NewCursor(blob, rva)
	count := c.U32()
	if c.Err() != nil {
		return nil, false
	}
	if count > MaxThreads {
		return nil, false
	}

	threads := make([]ThreadInfo, 0, count)
	for i := uint32(0); i < count; i++ {
		var t ThreadInfo
		t.ID = c.U32()
		t.SuspendCount = c.U32()
		t.PriorityClass = c.U32()
		t.Priority = c.U32()
		t.TEB = c.U64()
		t.Stack.StartOfMemoryRange = c.U64()
		t.Stack.Memory.Size = c.U32()
		t.Stack.Memory.RVA = c.U32()
		t.ContextLoc.Size = c.U32()
		t.ContextLoc.RVA = c.U32()
		if c.Err() != nil {
			return nil, false
		}

		if !t.ContextLoc.Empty() {
			if ctx, ok := dumpctx.DecodeAMD64(blob, int64(t.ContextLoc.RVA)); ok {
				t.Context = ctx
				t.HasContext = true
			}
		}
		threads = append(threads, t)
	}
	return threads, true
}

// StackEnd returns the exclusive end address of a thread's captured stack
// region.
func (t *ThreadInfo) StackEnd() uint64 {
	end := t.Stack.StartOfMemoryRange + uint64(t.Stack.Memory.Size)
	if end < t.Stack.StartOfMemoryRange {
		return ^uint64(0)
	}
	return end
}
