package resolver

import (
	"encoding/binary"
	"testing"

	"github.com/jloutsch/minidumptruck/pkg/minidump"
)

// buildDumpWithOneModule assembles the smallest possible dump carrying a
// single ModuleList stream, just enough to exercise address resolution.
func buildDumpWithOneModule(t *testing.T, base uint64, size uint32, name string) []byte {
	t.Helper()
	nameUnits := make([]byte, 0, len(name)*2+2)
	for _, r := range name {
		nameUnits = append(nameUnits, byte(r), 0)
	}
	nameUnits = append(nameUnits, 0, 0)

	const headerSize = 32
	const dirEntrySize = 12
	const moduleListHeader = 4
	const moduleRecordSize = 108

	moduleListRVA := uint32(headerSize + dirEntrySize)
	nameRVA := moduleListRVA + moduleListHeader + moduleRecordSize
	total := int(nameRVA) + 4 + len(nameUnits)

	data := make([]byte, total)
	binary.LittleEndian.PutUint32(data[0:4], minidump.Signature)
	binary.LittleEndian.PutUint32(data[8:12], 1) // stream count
	binary.LittleEndian.PutUint32(data[12:16], headerSize)

	dirOff := headerSize
	binary.LittleEndian.PutUint32(data[dirOff:dirOff+4], uint32(minidump.StreamModuleList))
	binary.LittleEndian.PutUint32(data[dirOff+4:dirOff+8], moduleListHeader+moduleRecordSize)
	binary.LittleEndian.PutUint32(data[dirOff+8:dirOff+12], moduleListRVA)

	modOff := int(moduleListRVA)
	binary.LittleEndian.PutUint32(data[modOff:modOff+4], 1) // module count
	binary.LittleEndian.PutUint64(data[modOff+4:modOff+12], base)
	binary.LittleEndian.PutUint32(data[modOff+12:modOff+16], size)
	binary.LittleEndian.PutUint32(data[modOff+24:modOff+28], nameRVA)

	binary.LittleEndian.PutUint32(data[nameRVA:nameRVA+4], uint32(len(nameUnits)))
	copy(data[nameRVA+4:], nameUnits)

	return data
}

func TestResolveFindsContainingModule(t *testing.T) {
	data := buildDumpWithOneModule(t, 0x140000000, 0x5000, `C:\Windows\System32\ntdll.dll`)
	dump, err := minidump.Parse(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r := New(dump)
	got := r.Resolve(0x140000010)
	want := "ntdll.dll+0x10"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestResolveFallsBackToHexWhenNoModuleMatches(t *testing.T) {
	data := buildDumpWithOneModule(t, 0x140000000, 0x5000, `app.exe`)
	dump, err := minidump.Parse(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r := New(dump)
	got := r.Resolve(0x7fffffffffff)
	want := "0x00007fffffffffff"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
