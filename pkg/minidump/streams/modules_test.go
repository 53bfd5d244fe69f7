package streams

import (
	"encoding/binary"
	"testing"

	"github.com/jloutsch/minidumptruck/pkg/dumpio"
)

func TestDecodeModuleListDecodesBaseSizeAndName(t *testing.T) {
	const headerSize = 4
	const recordSize = moduleRecordSize
	nameUnits := []byte{'a', 0, '.', 0, 'd', 0, 'l', 0, 'l', 0, 0, 0}
	nameRVA := uint32(headerSize + recordSize + 4)

	data := make([]byte, int(nameRVA)+4+len(nameUnits))
	binary.LittleEndian.PutUint32(data[0:4], 1)

	off := headerSize
	binary.LittleEndian.PutUint64(data[off:off+8], 0x140000000)
	binary.LittleEndian.PutUint32(data[off+8:off+12], 0x2000)
	binary.LittleEndian.PutUint32(data[off+16:off+20], 0x5a5a5a5a)
	binary.LittleEndian.PutUint32(data[off+20:off+24], nameRVA)
	// VersionInfo signature left 0 (not present), CodeView/Misc locations left empty.

	binary.LittleEndian.PutUint32(data[nameRVA:nameRVA+4], uint32(len(nameUnits)))
	copy(data[nameRVA+4:], nameUnits)

	blob := dumpio.NewBlob(data)
	mods, ok := DecodeModuleList(blob, 0)
	if !ok {
		t.Fatalf("expected ModuleList to decode")
	}
	if len(mods) != 1 {
		t.Fatalf("got %d modules, want 1", len(mods))
	}
	m := mods[0]
	if m.Base != 0x140000000 || m.Size != 0x2000 {
		t.Fatalf("got Base=%#x Size=%#x", m.Base, m.Size)
	}
	if m.TimeDateStamp != 0x5a5a5a5a {
		t.Fatalf("got TimeDateStamp=%#x", m.TimeDateStamp)
	}
	if m.Name != "a.dll" {
		t.Fatalf("got %q", m.Name)
	}
	if m.HasVersionInfo {
		t.Fatalf("expected no version info when signature is zero")
	}
	if m.CodeView != nil {
		t.Fatalf("expected nil CodeView when CodeViewLoc is empty")
	}
}

func TestDecodeModuleListRejectsTruncatedRecord(t *testing.T) {
	data := make([]byte, 4+moduleRecordSize-10)
	binary.LittleEndian.PutUint32(data[0:4], 1)
	blob := dumpio.NewBlob(data)
	if _, ok := DecodeModuleList(blob, 0); ok {
		t.Fatalf("expected a truncated module record to fail to decode")
	}
}

func TestDecodeModuleListRejectsCountAboveMax(t *testing.T) {
	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data[0:4], MaxModules+1)
	blob := dumpio.NewBlob(data)
	if _, ok := DecodeModuleList(blob, 0); ok {
		t.Fatalf("expected a count above MaxModules to be rejected")
	}
}

func TestModuleInfoEndSaturatesOnOverflow(t *testing.T) {
	m := ModuleInfo{Base: ^uint64(0) - 10, Size: 100}
	if m.End() != ^uint64(0) {
		t.Fatalf("got End()=%#x, want saturated max uint64", m.End())
	}
	if !m.Contains(^uint64(0) - 5) {
		t.Fatalf("expected an address past Base but below the saturated end to be contained")
	}
}
