package analyzer

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jloutsch/minidumptruck/pkg/classify"
	"github.com/jloutsch/minidumptruck/pkg/minidump"
)

type builder struct{ buf []byte }

func (b *builder) pos() uint32  { return uint32(len(b.buf)) }
func (b *builder) u16(v uint16) { b.buf = append(b.buf, byte(v), byte(v>>8)) }
func (b *builder) u32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	b.buf = append(b.buf, tmp[:]...)
}
func (b *builder) u64(v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	b.buf = append(b.buf, tmp[:]...)
}
func (b *builder) bytes(n int) { b.buf = append(b.buf, make([]byte, n)...) }
func (b *builder) utf16LP(s string) {
	units := make([]byte, 0, len(s)*2+2)
	for _, r := range s {
		units = append(units, byte(r), 0)
	}
	units = append(units, 0, 0)
	b.u32(uint32(len(units)))
	b.buf = append(b.buf, units...)
}
func (b *builder) putU32At(off int, v uint32) {
	binary.LittleEndian.PutUint32(b.buf[off:off+4], v)
}
func (b *builder) putU64At(off int, v uint64) {
	binary.LittleEndian.PutUint64(b.buf[off:off+8], v)
}

// buildCrashDump assembles a header, directory, Exception, a single
// thread with a decoded context whose Rip matches the exception address,
// and a ModuleList with one third-party module covering that address --
// enough for Analyzer.Analyze to produce a real, blamed result.
func buildCrashDump(t *testing.T) []byte {
	t.Helper()
	b := &builder{}

	const (
		moduleBase = uint64(0x7ff600000000)
		moduleSize = uint32(0x50000)
		faultRIP   = moduleBase + 0x4242
		threadID   = uint32(1)
	)

	b.u32(minidump.Signature)
	b.u16(1)
	b.u16(0)
	streamCountOff := int(b.pos())
	b.u32(0)
	dirRVAOff := int(b.pos())
	b.u32(0)
	b.u32(0)
	b.u32(0)
	b.u64(0)

	dirRVA := b.pos()
	const entryCount = 3
	entries := make([]int, entryCount)
	for i := range entries {
		entries[i] = int(b.pos())
		b.u32(0)
		b.u32(0)
		b.u32(0)
	}

	excRVA := b.pos()
	b.u32(threadID)
	b.u32(0)
	b.u32(0xC0000005)
	b.u32(0)
	b.u64(0)
	b.u64(faultRIP)
	b.u32(2)
	b.u64(0)
	b.u64(0xDEADBEEF)
	b.bytes(13 * 8)
	b.bytes(4)
	ctxLocOff := int(b.pos())
	b.u32(0)
	b.u32(0)
	excSize := b.pos() - excRVA

	ctxRVA := b.pos()
	b.bytes(1232)
	ctxSize := uint32(1232)

	threadListRVA := b.pos()
	b.u32(1)
	b.u32(threadID)
	b.u32(0)
	b.u32(0)
	b.u32(0)
	b.u64(0)
	b.u64(0x10000)
	b.u32(0x1000)
	b.u32(0)
	b.u32(ctxSize)
	b.u32(ctxRVA)
	threadListSize := b.pos() - threadListRVA

	moduleListRVA := b.pos()
	b.u32(1)
	b.u64(moduleBase)
	b.u32(moduleSize)
	b.u32(0)
	b.u32(0)
	nameRVAOff := int(b.pos())
	b.u32(0)
	b.bytes(52)
	b.u32(0)
	b.u32(0)
	b.u32(0)
	b.u32(0)
	b.bytes(16)
	moduleListSize := b.pos() - moduleListRVA

	moduleNameRVA := b.pos()
	b.utf16LP(`C:\Users\alice\AppData\Local\SomeApp\app.exe`)

	b.putU32At(entries[0], uint32(minidump.StreamException))
	b.putU32At(entries[0]+4, excSize)
	b.putU32At(entries[0]+8, excRVA)

	b.putU32At(entries[1], uint32(minidump.StreamThreadList))
	b.putU32At(entries[1]+4, threadListSize)
	b.putU32At(entries[1]+8, threadListRVA)

	b.putU32At(entries[2], uint32(minidump.StreamModuleList))
	b.putU32At(entries[2]+4, moduleListSize)
	b.putU32At(entries[2]+8, moduleListRVA)

	b.putU32At(streamCountOff, entryCount)
	b.putU32At(dirRVAOff, dirRVA)

	b.putU32At(nameRVAOff, moduleNameRVA)
	b.putU32At(ctxLocOff, ctxSize)
	b.putU32At(ctxLocOff+4, ctxRVA)

	b.putU64At(int(ctxRVA)+152, moduleBase+0x100) // Rsp, below Rip's module offset
	b.putU64At(int(ctxRVA)+160, 0)                // Rbp left zero, chain terminates immediately
	b.putU64At(int(ctxRVA)+248, faultRIP)

	return b.buf
}

func TestAnalyzeProducesBlameAndSummaryForACrash(t *testing.T) {
	data := buildCrashDump(t)
	dump, err := minidump.Parse(data)
	require.NoError(t, err)

	a := New()
	result, ok := a.Analyze(dump)
	require.True(t, ok)
	require.NotEmpty(t, result.Frames)
	require.True(t, result.HasBlame)
	require.Equal(t, classify.CategoryThirdParty, result.Blame.Category)
	require.Contains(t, result.Summary, "reading from")
	require.NotEmpty(t, result.Recommendation)
}

func TestAnalyzeWithoutExceptionReturnsFalse(t *testing.T) {
	dump := &minidump.ParsedDump{}
	a := New()
	_, ok := a.Analyze(dump)
	require.False(t, ok)
}

func TestNewWithTablesUsesSuppliedTables(t *testing.T) {
	tables := &classify.Tables{ExtraApplication: map[string]bool{"app": true}}
	a := NewWithTables(tables)
	require.Same(t, tables, a.Tables)
}
