package streams

import "github.com/jloutsch/minidumptruck/pkg/dumpio"

// MaxMemory64Regions caps how many Memory64List descriptors are decoded,
// per §3 invariant 2.
const MaxMemory64Regions = 100000

// MemoryRegion64 is one region of process memory captured in the
// Memory64List stream: a virtual address range plus where its bytes live
// in the file.
type MemoryRegion64 struct {
	Base       uint64
	Size       uint64
	FileOffset uint64
}

// End returns the exclusive end virtual address of the region.
func (r *MemoryRegion64) End() uint64 {
	end := r.Base + r.Size
	if end < r.Base {
		return ^uint64(0)
	}
	return end
}

// Memory64List is the decoded Memory64List stream: an ordered set of
// disjoint memory regions plus their file offsets, computed by running
// accumulation from BaseRVA per §4.3.
type Memory64List struct {
	BaseRVA uint64
	Regions []MemoryRegion64
}

const memory64HeaderSize = 16 // count(8) + baseRva(8)
const memory64DescriptorSize = 16 // startVA(8) + size(8)

// DecodeMemory64List decodes the Memory64List stream at rva. Per §3
// invariant 4, if the running file-offset accumulation overflows, decoding
// stops and the regions already produced are kept.
func DecodeMemory64List(blob *dumpio.Blob, rva int64) (*Memory64List, bool) {
	c := dumpio.NewCursor(blob, rva)
	count := c.U64()
	baseRVA := c.U64()
	if c.Err() != nil {
		return nil, false
	}
	if count > MaxMemory64Regions {
		return nil, false
	}

	ml := &Memory64List{BaseRVA: baseRVA}
	fileOffset := baseRVA
	for i := uint64(0); i < count; i++ {
		startVA := c.U64()
		size := c.U64()
		if c.Err() != nil {
			break
		}

		ml.Regions = append(ml.Regions, MemoryRegion64{
			Base:       startVA,
			Size:       size,
			FileOffset: fileOffset,
		})

		next := fileOffset + size
		if next < fileOffset {
			// overflow: stop, keep what has been parsed so far.
			break
		}
		fileOffset = next
	}
	return ml, true
}

// ReadAt returns up to n bytes of memory starting at addr, from the
// region that contains it, clamped to that region's remaining bytes.
func (ml *Memory64List) ReadAt(blob *dumpio.Blob, addr uint64, n int) ([]byte, bool) {
	for i := range ml.Regions {
		r := &ml.Regions[i]
		if addr < r.Base || addr >= r.End() {
			continue
		}
		avail := r.End() - addr
		want := uint64(n)
		if want > avail {
			want = avail
		}
		off := r.FileOffset + (addr - r.Base)
		data, err := blob.Bytes(int64(off), int64(want))
		if err != nil {
			return nil, false
		}
		return data, true
	}
	return nil, false
}
