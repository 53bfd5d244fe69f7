// Package stack walks a crashed thread's call stack from a parsed
// minidump, the stack walker described as component F. It is a direct
// generalization of a debugger's live-process DWARF CFA unwinder: instead
// of stepping frame-to-frame using call-frame-info records over a live
// process, it steps using frame-pointer-chain and heuristic-scan rules
// over an immutable dump's captured memory, but keeps the same
// "construct an iterator, call Next() until exhausted, read Frame()"
// shape the original unwinder used.
package stack

import (
	"encoding/binary"

	"github.com/jloutsch/minidumptruck/pkg/classify"
	"github.com/jloutsch/minidumptruck/pkg/dumpctx"
	"github.com/jloutsch/minidumptruck/pkg/minidump/streams"
	"github.com/jloutsch/minidumptruck/pkg/resolver"
)

// MaxFrames is the hard cap on frames a Walker will ever produce.
const MaxFrames = 100

// maxScanBytes and maxScanFrames bound the heuristic stack-scan pass.
const (
	maxScanBytes  = 8192
	maxScanFrames = 20
)

// unlikelyReturnSiteOffset is the offset-into-module floor below which a
// heuristic scan candidate is rejected as an unlikely return address.
const unlikelyReturnSiteOffset = 0x1000

// FrameType classifies how a frame's address was obtained.
type FrameType int

const (
	InstructionPointer FrameType = iota
	FramePointer
	ReturnAddress
)

func (t FrameType) String() string {
	switch t {
	case InstructionPointer:
		return "InstructionPointer"
	case FramePointer:
		return "FramePointer"
	default:
		return "ReturnAddress"
	}
}

// Confidence is how much a frame's resolution should be trusted.
type Confidence int

const (
	Low Confidence = iota
	Medium
	High
)

func (c Confidence) String() string {
	switch c {
	case High:
		return "High"
	case Medium:
		return "Medium"
	default:
		return "Low"
	}
}

// Frame is one entry of a walked call stack.
type Frame struct {
	Address        uint64
	Module         string
	OffsetInModule uint64
	HasModule      bool
	Type           FrameType
	Confidence     Confidence
}

// Walker iterates the frames of a single thread's call stack, computed up
// front by Walk and then stepped through one at a time.
type Walker struct {
	frames []Frame
	pos    int
}

// Walk builds the frame list for thread, given the dump's optional
// exception record, per the fixed five-step algorithm: exception frame,
// RIP frame, frame-pointer chain, heuristic scan, then dedupe and
// truncate to MaxFrames.
func Walk(res *resolver.Resolver, thread *streams.ThreadInfo, exception *streams.Exception) *Walker {
	var frames []Frame
	seen := make(map[uint64]bool)

	add := func(addr uint64, typ FrameType, conf Confidence) {
		if seen[addr] {
			return
		}
		seen[addr] = true
		f := Frame{Address: addr, Type: typ, Confidence: conf}
		if mod, ok := res.ModuleContaining(addr); ok {
			f.Module = resolver.ShortName(mod.Name)
			f.OffsetInModule = addr - mod.Base
			f.HasModule = true
		}
		frames = append(frames, f)
	}

	if exception != nil {
		add(exception.Address, InstructionPointer, High)
	}

	if thread == nil || !thread.HasContext {
		return &Walker{frames: truncate(frames)}
	}
	ctx := thread.Context

	if exception == nil || ctx.Rip != exception.Address {
		add(ctx.Rip, InstructionPointer, High)
	}

	walkFramePointerChain(res, thread, ctx, add)
	heuristicScan(res, thread, ctx, add)

	return &Walker{frames: truncate(frames)}
}

func walkFramePointerChain(res *resolver.Resolver, thread *streams.ThreadInfo, ctx *dumpctx.AMD64, add func(uint64, FrameType, Confidence)) {
	current := ctx.Rbp
	stackBase := thread.Stack.StartOfMemoryRange
	stackEnd := thread.StackEnd()

	for i := 0; i < MaxFrames; i++ {
		if current < stackBase || current >= stackEnd || current < ctx.Rsp || current%8 != 0 {
			return
		}
		data, ok := res.ReadAt(current, 16)
		if !ok || len(data) < 16 {
			return
		}
		savedRBP := binary.LittleEndian.Uint64(data[0:8])
		returnAddr := binary.LittleEndian.Uint64(data[8:16])

		if _, ok := res.ModuleContaining(returnAddr); ok {
			add(returnAddr, FramePointer, High)
		}

		if savedRBP <= current {
			return
		}
		current = savedRBP
	}
}

func heuristicScan(res *resolver.Resolver, thread *streams.ThreadInfo, ctx *dumpctx.AMD64, add func(uint64, FrameType, Confidence)) {
	stackEnd := thread.StackEnd()
	var available uint64
	if stackEnd > ctx.Rsp {
		available = stackEnd - ctx.Rsp
	}
	scanSize := available
	if scanSize > maxScanBytes {
		scanSize = maxScanBytes
	}
	if scanSize == 0 {
		return
	}

	data, ok := res.ReadAt(ctx.Rsp, int(scanSize))
	if !ok {
		return
	}

	found := 0
	for off := 0; off+8 <= len(data) && found < maxScanFrames; off += 8 {
		candidate := binary.LittleEndian.Uint64(data[off : off+8])
		mod, ok := res.ModuleContaining(candidate)
		if !ok {
			continue
		}
		offsetInModule := candidate - mod.Base
		if offsetInModule <= unlikelyReturnSiteOffset {
			continue
		}
		conf := Low
		if classify.Default.IsSystem(mod.Name) {
			conf = Medium
		}
		add(candidate, ReturnAddress, conf)
		found++
	}
}

func truncate(frames []Frame) []Frame {
	if len(frames) > MaxFrames {
		return frames[:MaxFrames]
	}
	return frames
}

// Next advances the walker to the next frame. It returns false once every
// computed frame has been consumed.
func (w *Walker) Next() bool {
	if w.pos >= len(w.frames) {
		return false
	}
	w.pos++
	return true
}

// Frame returns the frame the walker last advanced onto.
func (w *Walker) Frame() Frame {
	return w.frames[w.pos-1]
}

// Frames returns every computed frame at once, the common case for
// summary rendering.
func (w *Walker) Frames() []Frame {
	return w.frames
}
