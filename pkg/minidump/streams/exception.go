package streams

import (
	"fmt"

	"github.com/jloutsch/minidumptruck/pkg/dumpio"
)

// MaxExceptionParameters is the hard cap on ExceptionInformation entries,
// independent of whatever the on-disk paramCount claims.
const MaxExceptionParameters = 15

// AccessViolationOp is the decoded form of an access violation's first
// parameter.
type AccessViolationOp int

const (
	AccessViolationRead    AccessViolationOp = 0
	AccessViolationWrite   AccessViolationOp = 1
	AccessViolationExecute AccessViolationOp = 8
	AccessViolationOther   AccessViolationOp = -1
)

// Exception is the decoded Exception stream.
type Exception struct {
	ThreadID       uint32
	Code           uint32
	Flags          uint32
	NestedRecord   uint64
	Address        uint64
	ParameterCount uint32
	Parameters     []uint64
	ContextLoc     LocationDescriptor
}

const (
	exceptionCodeOffset       = 8
	exceptionFlagsOffset      = 12
	exceptionNestedOffset     = 16
	exceptionAddressOffset    = 24
	exceptionParamCountOffset = 32
	exceptionParamsOffset     = 36
	exceptionContextLocOffset = 160
)

const accessViolationCode = 0xC0000005

// DecodeException decodes the Exception stream at rva.
func DecodeException(blob *dumpio.Blob, rva int64) (*Exception, bool) {
	threadID, err := blob.U32(rva)
	if err != nil {
		return nil, false
	}
	var ex Exception
	ex.ThreadID = threadID

	code, e1 := blob.U32(rva + exceptionCodeOffset)
	flags, e2 := blob.U32(rva + exceptionFlagsOffset)
	nested, e3 := blob.U64(rva + exceptionNestedOffset)
	addr, e4 := blob.U64(rva + exceptionAddressOffset)
	paramCount, e5 := blob.U32(rva + exceptionParamCountOffset)
	if e1 != nil || e2 != nil || e3 != nil || e4 != nil || e5 != nil {
		return nil, false
	}
	ex.Code, ex.Flags, ex.NestedRecord, ex.Address, ex.ParameterCount = code, flags, nested, addr, paramCount

	n := paramCount
	if n > MaxExceptionParameters {
		n = MaxExceptionParameters
	}
	ex.Parameters = make([]uint64, 0, n)
	for i := uint32(0); i < n; i++ {
		off := int64(exceptionParamsOffset) + int64(i)*8
		v, err := blob.U64(rva + off)
		if err != nil {
			break
		}
		ex.Parameters = append(ex.Parameters, v)
	}

	size, e6 := blob.U32(rva + exceptionContextLocOffset)
	ctxRVA, e7 := blob.U32(rva + exceptionContextLocOffset + 4)
	if e6 == nil && e7 == nil {
		ex.ContextLoc = LocationDescriptor{Size: size, RVA: ctxRVA}
	}

	return &ex, true
}

// AccessViolationDetails renders the human-readable sentence §4.3 and §8
// (scenario 4) describe for a 0xC0000005 access violation with at least
// two parameters.
func (e *Exception) AccessViolationDetails() (string, bool) {
	if e.Code != accessViolationCode || len(e.Parameters) < 2 {
		return "", false
	}
	op := accessViolationOp(e.Parameters[0])
	faultAddr := e.Parameters[1]

	var verb string
	switch op {
	case AccessViolationRead:
		verb = "reading from"
	case AccessViolationWrite:
		verb = "writing to"
	case AccessViolationExecute:
		verb = "executing"
	default:
		verb = "accessing"
	}
	return fmt.Sprintf("The instruction at 0x%016X tried %s address 0x%016X", e.Address, verb, faultAddr), true
}

func accessViolationOp(v uint64) AccessViolationOp {
	switch v {
	case 0:
		return AccessViolationRead
	case 1:
		return AccessViolationWrite
	case 8:
		return AccessViolationExecute
	default:
		return AccessViolationOther
	}
}
