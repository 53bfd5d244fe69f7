package streams

import "github.com/jloutsch/minidumptruck/pkg/dumpio"

const (
	codeViewSigRSDS uint32 = 0x53445352 // "RSDS"
	codeViewSigNB10 uint32 = 0x3031424e // "NB10"

	codeViewMinSize = 24
)

// CodeView is a decoded CodeView debug record, identifying the PDB file
// that carries a module's debug information.
type CodeView struct {
	IsRSDS bool // false means NB10 (PDB 2.0)

	// RSDS fields (Age is set for NB10 too).
	GUID GUID
	Age  uint32

	// NB10 fields.
	Offset        uint32
	TimeDateStamp uint32

	PDBFileName string
}

// DecodeCodeView decodes the CodeView payload of size bytes at rva. It
// returns nil if the record is too small or its signature is unrecognized
// -- absence, never a parser failure, per §4.3.
func DecodeCodeView(blob *dumpio.Blob, rva int64, size int64) *CodeView {
	if size < codeViewMinSize {
		return nil
	}
	sig, err := blob.U32(rva)
	if err != nil {
		return nil
	}

	switch sig {
	case codeViewSigRSDS:
		return decodeRSDS(blob, rva, size)
	case codeViewSigNB10:
		return decodeNB10(blob, rva, size)
	default:
		return nil
	}
}

func decodeRSDS(blob *dumpio.Blob, rva int64, size int64) *CodeView {
	var cv CodeView
	cv.IsRSDS = true

	d1, e1 := blob.U32(rva + 4)
	d2, e2 := blob.U16(rva + 8)
	d3, e3 := blob.U16(rva + 10)
	d4, e4 := blob.Bytes(rva+12, 8)
	age, e5 := blob.U32(rva + 20)
	if e1 != nil || e2 != nil || e3 != nil || e4 != nil || e5 != nil {
		return nil
	}
	cv.GUID.Data1 = d1
	cv.GUID.Data2 = d2
	cv.GUID.Data3 = d3
	copy(cv.GUID.Data4[:], d4)
	cv.Age = age
	cv.PDBFileName = blob.CStringBounded(rva+24, rva+size)
	return &cv
}

func decodeNB10(blob *dumpio.Blob, rva int64, size int64) *CodeView {
	var cv CodeView
	cv.IsRSDS = false

	offset, e1 := blob.U32(rva + 4)
	ts, e2 := blob.U32(rva + 8)
	age, e3 := blob.U32(rva + 12)
	if e1 != nil || e2 != nil || e3 != nil {
		return nil
	}
	cv.Offset = offset
	cv.TimeDateStamp = ts
	cv.Age = age
	cv.PDBFileName = blob.CStringBounded(rva+16, rva+size)
	return &cv
}
