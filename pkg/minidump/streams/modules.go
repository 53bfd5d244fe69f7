package streams

import "github.com/jloutsch/minidumptruck/pkg/dumpio"

// MaxModules caps how many ModuleList entries are decoded, per §3 invariant 2.
const MaxModules = 50000

const moduleRecordSize = 108

const vsFixedFileInfoSignature = 0xFEEF04BD

// VSFixedFileInfo is the 52-byte fixed portion of a Windows version-info
// resource embedded in a module record.
type VSFixedFileInfo struct {
	Signature        uint32
	StructVersion    uint32
	FileVersionHi    uint32
	FileVersionLo    uint32
	ProductVersionHi uint32
	ProductVersionLo uint32
	FileFlagsMask    uint32
	FileFlags        uint32
	FileOS           uint32
	FileType         uint32
	FileSubtype      uint32
	FileDateHi       uint32
	FileDateLo       uint32
}

// ModuleInfo is one entry of the ModuleList stream.
type ModuleInfo struct {
	Base          uint64
	Size          uint32
	Checksum      uint32
	TimeDateStamp uint32
	NameRVA       uint32
	VersionInfo   VSFixedFileInfo
	HasVersionInfo bool
	CodeViewLoc   LocationDescriptor
	MiscLoc       LocationDescriptor

	Name     string
	CodeView *CodeView
}

// End returns the exclusive end address of the module's image, saturating
// to the maximum uint64 on overflow per §3 invariant 5.
func (m *ModuleInfo) End() uint64 {
	end := m.Base + uint64(m.Size)
	if end < m.Base {
		return ^uint64(0)
	}
	return end
}

// Contains reports whether addr falls within [Base, End).
func (m *ModuleInfo) Contains(addr uint64) bool {
	return addr >= m.Base && addr < m.End()
}

// DecodeModuleList decodes the ModuleList stream at rva. It attaches
// CodeView and name data for every module it can resolve.
func DecodeModuleList(blob *dumpio.Blob, rva int64) ([]ModuleInfo, bool) {
	c := dumpio.NewCursor(blob, rva)
	count := c.U32()
	if c.Err() != nil {
		return nil, false
	}
	if count > MaxModules {
		return nil, false
	}

	mods := make([]ModuleInfo, 0, count)
	for i := uint32(0); i < count; i++ {
		var m ModuleInfo
		m.Base = c.U64()
		m.Size = c.U32()
		m.Checksum = c.U32()
		m.TimeDateStamp = c.U32()
		m.NameRVA = c.U32()

		sig := c.U32()
		vi := VSFixedFileInfo{Signature: sig}
		vi.StructVersion = c.U32()
		vi.FileVersionHi = c.U32()
		vi.FileVersionLo = c.U32()
		vi.ProductVersionHi = c.U32()
		vi.ProductVersionLo = c.U32()
		vi.FileFlagsMask = c.U32()
		vi.FileFlags = c.U32()
		vi.FileOS = c.U32()
		vi.FileType = c.U32()
		vi.FileSubtype = c.U32()
		vi.FileDateHi = c.U32()
		vi.FileDateLo = c.U32()
		if sig == vsFixedFileInfoSignature {
			m.VersionInfo = vi
			m.HasVersionInfo = true
		}

		m.CodeViewLoc.Size = c.U32()
		m.CodeViewLoc.RVA = c.U32()
		m.MiscLoc.Size = c.U32()
		m.MiscLoc.RVA = c.U32()
		c.Bytes(16) // reserved0, reserved1; a read, so a truncated record latches an error

		if c.Err() != nil {
			return nil, false
		}

		m.Name = blob.UTF16LP(int64(m.NameRVA))
		if !m.CodeViewLoc.Empty() {
			m.CodeView = DecodeCodeView(blob, int64(m.CodeViewLoc.RVA), int64(m.CodeViewLoc.Size))
		}

		mods = append(mods, m)
	}
	return mods, true
}
