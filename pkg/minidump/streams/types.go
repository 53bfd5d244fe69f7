// Package streams decodes the individual per-stream records of a
// minidump file (component C of the design): SystemInfo, MiscInfo,
// Exception, ThreadList, ModuleList, Memory64List, MemoryInfoList,
// HandleData, UnloadedModuleList, and ThreadNames. Every decoder here
// takes a borrowed *dumpio.Blob plus a record's rva (and, where the stream
// needs it, its size) and returns
// an ("absent", not an error) zero value on any invariant violation --
// per the format's error-handling design a single bad stream never
// fails the whole dump.
package streams

import "github.com/jloutsch/minidumptruck/pkg/dumpctx"

// LocationDescriptor describes a sub-region of the dump file: a byte size
// and the RVA where that many bytes begin.
type LocationDescriptor struct {
	Size uint32
	RVA  uint32
}

// Empty reports whether the location descriptor carries no data, which is
// the on-disk way of saying "this optional field is absent".
func (l LocationDescriptor) Empty() bool {
	return l.Size == 0
}

// MemoryDescriptor describes a captured region of process memory: the
// virtual address it was read from, plus where to find its bytes in the
// file.
type MemoryDescriptor struct {
	StartOfMemoryRange uint64
	Memory             LocationDescriptor
}

// GUID is a 16-byte globally unique identifier, used to key a module's PDB
// in an RSDS CodeView record.
type GUID struct {
	Data1 uint32
	Data2 uint16
	Data3 uint16
	Data4 [8]byte
}

// ThreadInfo is one entry of the ThreadList stream.
type ThreadInfo struct {
	ID            uint32
	SuspendCount  uint32
	PriorityClass uint32
	Priority      uint32
	TEB           uint64
	Stack         MemoryDescriptor
	ContextLoc    LocationDescriptor

	// Context is the decoded AMD64 register state, present only if
	// ContextLoc resolved to a well-formed MINIDUMP_AMD64 context record.
	Context   *dumpctx.AMD64
	HasContext bool

	// Name is populated from the ThreadNames stream, if present, by the
	// orchestrator after all streams have been decoded.
	Name string
}
