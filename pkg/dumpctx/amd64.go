// Package dumpctx decodes the Windows CONTEXT structure saved in a
// minidump thread's context record. The field layout is the same one the
// native Windows debugging APIs use (mirrored here from the definition
// delve's native Windows backend keeps in proc/internal/mssys for calling
// GetThreadContext/SetThreadContext), read back out of a dump file instead
// of out of a live process.
package dumpctx

import (
	"fmt"

	"github.com/jloutsch/minidumptruck/pkg/dumpio"
)

// Context flag bits, a subset of CONTEXT_* from winnt.h, relevant to
// deciding which parts of the record are meaningful.
const (
	ContextAMD64          uint32 = 0x100000
	ContextControl        uint32 = ContextAMD64 | 0x1
	ContextInteger        uint32 = ContextAMD64 | 0x2
	ContextSegments       uint32 = ContextAMD64 | 0x4
	ContextFloatingPoint  uint32 = ContextAMD64 | 0x8
	ContextDebugRegisters uint32 = ContextAMD64 | 0x10
)

// EFlag names the individual bits of the x86/x64 EFLAGS register that
// §4.3 asks to be surfaced as a readable list.
type EFlag string

const (
	FlagCF EFlag = "CF"
	FlagPF EFlag = "PF"
	FlagAF EFlag = "AF"
	FlagZF EFlag = "ZF"
	FlagSF EFlag = "SF"
	FlagTF EFlag = "TF"
	FlagIF EFlag = "IF"
	FlagDF EFlag = "DF"
	FlagOF EFlag = "OF"
)

var eflagBits = []struct {
	bit  uint32
	name EFlag
}{
	{0, FlagCF},
	{2, FlagPF},
	{4, FlagAF},
	{6, FlagZF},
	{7, FlagSF},
	{8, FlagTF},
	{9, FlagIF},
	{10, FlagDF},
	{11, FlagOF},
}

// XMM is a 128-bit SSE register.
type XMM [16]byte

// AMD64 is the decoded form of a MINIDUMP / Windows CONTEXT record for an
// x86-64 thread: the fixed 1232-byte structure documented in §4.3.
type AMD64 struct {
	ContextFlags uint32
	MxCsr        uint32

	SegCS, SegDS, SegES, SegFS, SegGS, SegSS uint16
	EFlags                                  uint32

	Dr0, Dr1, Dr2, Dr3, Dr6, Dr7 uint64

	Rax, Rcx, Rdx, Rbx uint64
	Rsp, Rbp           uint64
	Rsi, Rdi           uint64
	R8, R9, R10, R11   uint64
	R12, R13, R14, R15 uint64
	Rip                uint64

	FxSave [512]byte

	// XMM is populated only if ContextFlags has the ContextFloatingPoint
	// bit set.
	XMM [16]XMM
}

// Field byte offsets from the start of the context record, per §4.3.
const (
	offContextFlags = 48
	offMxCsr        = 52
	offSegCS        = 56
	offSegDS        = 58
	offSegES        = 60
	offSegFS        = 62
	offSegGS        = 64
	offSegSS        = 66
	offEFlags       = 68
	offDr0          = 72
	offDr1          = 80
	offDr2          = 88
	offDr3          = 96
	offDr6          = 104
	offDr7          = 112
	offRax          = 120
	offRcx          = 128
	offRdx          = 136
	offRbx          = 144
	offRsp          = 152
	offRbp          = 160
	offRsi          = 168
	offRdi          = 176
	offR8           = 184
	offR9           = 192
	offR10          = 200
	offR11          = 208
	offR12          = 216
	offR13          = 224
	offR14          = 232
	offR15          = 240
	offRip          = 248
	offFxSave       = 256
	offXMM          = 416
	xmmStride       = 16

	ContextRecordSize = 1232
)

// DecodeAMD64 decodes an AMD64 CONTEXT record of ContextRecordSize bytes
// starting at rva. It returns false if the record does not fit in the
// blob; it never partially decodes.
func DecodeAMD64(blob *dumpio.Blob, rva int64) (*AMD64, bool) {
	raw, err := blob.Bytes(rva, ContextRecordSize)
	if err != nil {
		return nil, false
	}

	c := dumpio.NewBlob(raw)
	var ctx AMD64
	ctx.ContextFlags = must32(c, offContextFlags)
	ctx.MxCsr = must32(c, offMxCsr)
	ctx.SegCS = must16(c, offSegCS)
	ctx.SegDS = must16(c, offSegDS)
	ctx.SegES = must16(c, offSegES)
	ctx.SegFS = must16(c, offSegFS)
	ctx.SegGS = must16(c, offSegGS)
	ctx.SegSS = must16(c, offSegSS)
	ctx.EFlags = must32(c, offEFlags)
	ctx.Dr0 = must64(c, offDr0)
	ctx.Dr1 = must64(c, offDr1)
	ctx.Dr2 = must64(c, offDr2)
	ctx.Dr3 = must64(c, offDr3)
	ctx.Dr6 = must64(c, offDr6)
	ctx.Dr7 = must64(c, offDr7)
	ctx.Rax = must64(c, offRax)
	ctx.Rcx = must64(c, offRcx)
	ctx.Rdx = must64(c, offRdx)
	ctx.Rbx = must64(c, offRbx)
	ctx.Rsp = must64(c, offRsp)
	ctx.Rbp = must64(c, offRbp)
	ctx.Rsi = must64(c, offRsi)
	ctx.Rdi = must64(c, offRdi)
	ctx.R8 = must64(c, offR8)
	ctx.R9 = must64(c, offR9)
	ctx.R10 = must64(c, offR10)
	ctx.R11 = must64(c, offR11)
	ctx.R12 = must64(c, offR12)
	ctx.R13 = must64(c, offR13)
	ctx.R14 = must64(c, offR14)
	ctx.R15 = must64(c, offR15)
	ctx.Rip = must64(c, offRip)

	if fxsave, err := c.Bytes(offFxSave, 512); err == nil {
		copy(ctx.FxSave[:], fxsave)
	}

	if ctx.ContextFlags&ContextFloatingPoint == ContextFloatingPoint {
		for i := 0; i < 16; i++ {
			if reg, err := c.Bytes(int64(offXMM+i*xmmStride), xmmStride); err == nil {
				copy(ctx.XMM[i][:], reg)
			}
		}
	}

	return &ctx, true
}

func must16(b *dumpio.Blob, off int64) uint16 { v, _ := b.U16(off); return v }
func must32(b *dumpio.Blob, off int64) uint32 { v, _ := b.U32(off); return v }
func must64(b *dumpio.Blob, off int64) uint64 { v, _ := b.U64(off); return v }

// EFlagsList decodes the EFLAGS register into the set of named flags that
// are currently set, in the fixed order §4.3 specifies.
func (c *AMD64) EFlagsList() []EFlag {
	var out []EFlag
	for _, f := range eflagBits {
		if c.EFlags&(1<<f.bit) != 0 {
			out = append(out, f.name)
		}
	}
	return out
}

// String renders the EFLAGS bit list the way a debugger status line does,
// e.g. "[ZF IF]".
func (c *AMD64) String() string {
	return fmt.Sprintf("%v", c.EFlagsList())
}
