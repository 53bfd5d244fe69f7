package streams

import (
	"sort"

	"github.com/jloutsch/minidumptruck/pkg/dumpio"
)

// MaxHandles caps how many HandleData entries are decoded, per §3 invariant 2.
const MaxHandles = 100000

const handleDataHeaderSize = 16 // sizeOfHeader(4) + sizeOfDescriptor(4) + count(4) + reserved(4)
const handleDescriptorV1Size = 32
const handleDescriptorV2Size = 40

// HandleEntry is one entry of the HandleData stream, in either its V1
// (32-byte) or V2 (40-byte) form.
type HandleEntry struct {
	Handle       uint64
	TypeNameRVA  uint32
	ObjectNameRVA uint32
	Attributes   uint32
	GrantedAccess uint32
	HandleCount  uint32
	PointerCount uint32
	ObjectInfoRVA uint32
	IsV2         bool

	TypeName   string
	ObjectName string
}

// DecodeHandleDataStream decodes the HandleData stream at rva.
func DecodeHandleDataStream(blob *dumpio.Blob, rva int64) ([]HandleEntry, bool) {
	c := dumpio.NewCursor(blob, rva)
	sizeOfHeader := c.U32()
	sizeOfDescriptor := c.U32()
	count := c.U32()
	c.U32() // reserved
	if c.Err() != nil {
		return nil, false
	}
	if count > MaxHandles || sizeOfDescriptor < handleDescriptorV1Size {
		return nil, false
	}
	isV2 := sizeOfDescriptor >= handleDescriptorV2Size

	entries := make([]HandleEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		off := rva + int64(sizeOfHeader) + int64(i)*int64(sizeOfDescriptor)
		ec := dumpio.NewCursor(blob, off)

		var h HandleEntry
		h.IsV2 = isV2
		h.Handle = ec.U64()
		h.TypeNameRVA = ec.U32()
		h.ObjectNameRVA = ec.U32()
		h.Attributes = ec.U32()
		h.GrantedAccess = ec.U32()
		h.HandleCount = ec.U32()
		h.PointerCount = ec.U32()
		if isV2 {
			h.ObjectInfoRVA = ec.U32()
		}
		if ec.Err() != nil {
			break
		}

		if h.TypeNameRVA != 0 {
			h.TypeName = blob.UTF16LP(int64(h.TypeNameRVA))
		}
		if h.ObjectNameRVA != 0 {
			h.ObjectName = blob.UTF16LP(int64(h.ObjectNameRVA))
		}
		entries = append(entries, h)
	}
	return entries, true
}

// TypeHistogram summarizes handle entries by type name, sorted by
// descending count.
type TypeHistogram struct {
	TypeName string
	Count    int
}

// Summarize builds a descending-count histogram of handle type names.
func Summarize(entries []HandleEntry) []TypeHistogram {
	counts := make(map[string]int)
	for _, e := range entries {
		counts[e.TypeName]++
	}
	out := make([]TypeHistogram, 0, len(counts))
	for name, n := range counts {
		out = append(out, TypeHistogram{TypeName: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].TypeName < out[j].TypeName
	})
	return out
}
