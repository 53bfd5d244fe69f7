package streams

import "github.com/jloutsch/minidumptruck/pkg/dumpio"

// MaxMemoryInfoEntries caps how many MemoryInfoList entries are decoded,
// per §3 invariant 2.
const MaxMemoryInfoEntries = 1000000

// MemoryState is the State field of a MemoryInfo entry.
type MemoryState uint32

const (
	MemoryStateCommit  MemoryState = 0x1000
	MemoryStateReserve MemoryState = 0x2000
	MemoryStateFree    MemoryState = 0x10000
)

// MemoryType is the Type field of a MemoryInfo entry.
type MemoryType uint32

const (
	MemoryTypeImage   MemoryType = 0x1000000
	MemoryTypeMapped  MemoryType = 0x40000
	MemoryTypePrivate MemoryType = 0x20000
)

// MemoryProtection is a bitmask of PAGE_* protection flags.
type MemoryProtection uint32

const (
	ProtectNoAccess         MemoryProtection = 0x01
	ProtectReadOnly         MemoryProtection = 0x02
	ProtectReadWrite        MemoryProtection = 0x04
	ProtectWriteCopy        MemoryProtection = 0x08
	ProtectExecute          MemoryProtection = 0x10
	ProtectExecuteRead      MemoryProtection = 0x20
	ProtectExecuteReadWrite MemoryProtection = 0x40
	ProtectExecuteWriteCopy MemoryProtection = 0x80
	ProtectGuard            MemoryProtection = 0x100
	ProtectNoCache          MemoryProtection = 0x200
	ProtectWriteCombine     MemoryProtection = 0x400
)

// Shortform renders the protection bitmask the way a debugger's memory map
// view does: a base mode plus modifier suffixes, e.g. "RWX+G".
func (p MemoryProtection) Shortform() string {
	var base string
	switch {
	case p&ProtectExecuteReadWrite != 0:
		base = "RWX"
	case p&ProtectExecuteWriteCopy != 0:
		base = "RWX(WC)"
	case p&ProtectExecuteRead != 0:
		base = "RX"
	case p&ProtectExecute != 0:
		base = "X"
	case p&ProtectReadWrite != 0:
		base = "RW"
	case p&ProtectWriteCopy != 0:
		base = "RW(WC)"
	case p&ProtectReadOnly != 0:
		base = "R"
	case p&ProtectNoAccess != 0:
		base = "NA"
	default:
		base = "?"
	}
	if p&ProtectGuard != 0 {
		base += "+G"
	}
	if p&ProtectNoCache != 0 {
		base += "+NC"
	}
	if p&ProtectWriteCombine != 0 {
		base += "+WCOMB"
	}
	return base
}

// MemoryInfo is one entry of the MemoryInfoList stream.
type MemoryInfo struct {
	Base       uint64
	AllocBase  uint64
	AllocProtect uint32
	Size       uint64
	State      MemoryState
	Protect    MemoryProtection
	Type       MemoryType
}

const memoryInfoHeaderSize = 16 // sizeOfHeader(4) + sizeOfEntry(4) + count(8)

// DecodeMemoryInfoList decodes the MemoryInfoList stream at rva.
func DecodeMemoryInfoList(blob *dumpio.Blob, rva int64) ([]MemoryInfo, bool) {
	c := dumpio.NewCursor(blob, rva)
	sizeOfHeader := c.U32()
	sizeOfEntry := c.U32()
	count := c.U64()
	if c.Err() != nil {
		return nil, false
	}
	if count > MaxMemoryInfoEntries || sizeOfEntry == 0 {
		return nil, false
	}

	entries := make([]MemoryInfo, 0, count)
	for i := uint64(0); i < count; i++ {
		entryOff := rva + int64(sizeOfHeader) + int64(i)*int64(sizeOfEntry)
		ec := dumpio.NewCursor(blob, entryOff)

		var mi MemoryInfo
		mi.Base = ec.U64()
		mi.AllocBase = ec.U64()
		mi.AllocProtect = ec.U32()
		ec.U32() // alignment1
		mi.Size = ec.U64()
		mi.State = MemoryState(ec.U32())
		mi.Protect = MemoryProtection(ec.U32())
		mi.Type = MemoryType(ec.U32())
		if ec.Err() != nil {
			break
		}
		entries = append(entries, mi)
	}
	return entries, true
}
