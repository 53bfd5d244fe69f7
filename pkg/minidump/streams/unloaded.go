package streams

import "github.com/jloutsch/minidumptruck/pkg/dumpio"

// MaxUnloadedModules caps how many UnloadedModuleList entries are
// decoded, per §3 invariant 2.
const MaxUnloadedModules = 10000

const unloadedModuleHeaderSize = 12 // sizeOfHeader(4) + sizeOfEntry(4) + count(4)
const unloadedModuleEntryMinSize = 24

// UnloadedModule is one entry of the UnloadedModuleList stream.
type UnloadedModule struct {
	Base          uint64
	Size          uint32
	Checksum      uint32
	TimeDateStamp uint32
	NameRVA       uint32
	Name          string
}

// DecodeUnloadedModuleList decodes the UnloadedModuleList stream at rva.
func DecodeUnloadedModuleList(blob *dumpio.Blob, rva int64) ([]UnloadedModule, bool) {
	c := dumpio.NewCursor(blob, rva)
	sizeOfHeader := c.U32()
	sizeOfEntry := c.U32()
	count := c.U32()
	if c.Err() != nil {
		return nil, false
	}
	if count > MaxUnloadedModules || sizeOfEntry < unloadedModuleEntryMinSize {
		return nil, false
	}

	mods := make([]UnloadedModule, 0, count)
	for i := uint32(0); i < count; i++ {
		off := rva + int64(sizeOfHeader) + int64(i)*int64(sizeOfEntry)
		ec := dumpio.NewCursor(blob, off)

		var m UnloadedModule
		m.Base = ec.U64()
		m.Size = ec.U32()
		m.Checksum = ec.U32()
		m.TimeDateStamp = ec.U32()
		m.NameRVA = ec.U32()
		if ec.Err() != nil {
			break
		}
		m.Name = blob.UTF16LP(int64(m.NameRVA))
		mods = append(mods, m)
	}
	return mods, true
}
