package streams

import (
	"encoding/binary"
	"testing"

	"github.com/jloutsch/minidumptruck/pkg/dumpio"
)

func TestDecodeMemoryInfoListDecodesOneCommittedRegion(t *testing.T) {
	const headerSize = 16
	const entrySize = 48
	data := make([]byte, headerSize+entrySize)
	binary.LittleEndian.PutUint32(data[0:4], headerSize)
	binary.LittleEndian.PutUint32(data[4:8], entrySize)
	binary.LittleEndian.PutUint64(data[8:16], 1)

	off := headerSize
	binary.LittleEndian.PutUint64(data[off:off+8], 0x10000)
	binary.LittleEndian.PutUint64(data[off+8:off+16], 0x10000)
	binary.LittleEndian.PutUint32(data[off+16:off+20], uint32(ProtectReadWrite))
	binary.LittleEndian.PutUint64(data[off+24:off+32], 0x1000)
	binary.LittleEndian.PutUint32(data[off+32:off+36], uint32(MemoryStateCommit))
	binary.LittleEndian.PutUint32(data[off+36:off+40], uint32(ProtectExecuteRead))
	binary.LittleEndian.PutUint32(data[off+40:off+44], uint32(MemoryTypeImage))

	blob := dumpio.NewBlob(data)
	entries, ok := DecodeMemoryInfoList(blob, 0)
	if !ok {
		t.Fatalf("expected MemoryInfoList to decode")
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Base != 0x10000 || e.Size != 0x1000 {
		t.Fatalf("got Base=%#x Size=%#x", e.Base, e.Size)
	}
	if e.State != MemoryStateCommit || e.Protect != ProtectExecuteRead || e.Type != MemoryTypeImage {
		t.Fatalf("got State=%v Protect=%v Type=%v", e.State, e.Protect, e.Type)
	}
}

func TestDecodeMemoryInfoListRejectsZeroEntrySize(t *testing.T) {
	data := make([]byte, 16)
	binary.LittleEndian.PutUint32(data[0:4], 16)
	binary.LittleEndian.PutUint32(data[4:8], 0)
	binary.LittleEndian.PutUint64(data[8:16], 1)
	blob := dumpio.NewBlob(data)
	if _, ok := DecodeMemoryInfoList(blob, 0); ok {
		t.Fatalf("expected a zero entry size to be rejected")
	}
}

func TestMemoryProtectionShortform(t *testing.T) {
	cases := map[MemoryProtection]string{
		ProtectExecuteRead:                     "RX",
		ProtectReadWrite:                       "RW",
		ProtectReadWrite | ProtectGuard:        "RW+G",
		ProtectExecuteReadWrite | ProtectNoCache: "RWX+NC",
		ProtectNoAccess:                         "NA",
	}
	for protect, want := range cases {
		if got := protect.Shortform(); got != want {
			t.Fatalf("Shortform(%v) = %q, want %q", protect, got, want)
		}
	}
}
