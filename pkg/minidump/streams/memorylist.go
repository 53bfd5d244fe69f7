package streams

import "github.com/jloutsch/minidumptruck/pkg/dumpio"

// MaxMemoryListRegions caps how many MemoryList descriptors are decoded,
// mirroring the Memory64List cap since both describe the same kind of
// data at a smaller (32-bit) scale.
const MaxMemoryListRegions = 100000

// MemoryRegion is one entry of the (32-bit) MemoryList stream: a memory
// descriptor whose bytes live directly at its location descriptor's RVA,
// unlike Memory64List's running-offset scheme.
type MemoryRegion struct {
	Base uint64
	Size uint32
	RVA  uint32
}

// End returns the exclusive end virtual address of the region.
func (r *MemoryRegion) End() uint64 {
	end := r.Base + uint64(r.Size)
	if end < r.Base {
		return ^uint64(0)
	}
	return end
}

// MemoryList is the decoded (32-bit) MemoryList stream, the fallback the
// address resolver consults after Memory64List (§4.4).
type MemoryList struct {
	Regions []MemoryRegion
}

// DecodeMemoryList decodes the MemoryList stream at rva.
func DecodeMemoryList(blob *dumpio.Blob, rva int64) (*MemoryList, bool) {
	c := dumpio.NewCursor(blob, rva)
	count := c.U32()
	if c.Err() != nil {
		return nil, false
	}
	if count > MaxMemoryListRegions {
		return nil, false
	}

	ml := &MemoryList{}
	for i := uint32(0); i < count; i++ {
		startVA := c.U64()
		size := c.U32()
		regionRVA := c.U32()
		if c.Err() != nil {
			break
		}
		ml.Regions = append(ml.Regions, MemoryRegion{Base: startVA, Size: size, RVA: regionRVA})
	}
	return ml, true
}

// ReadAt returns up to n bytes of memory starting at addr from the region
// that contains it, clamped to that region's remaining bytes.
func (ml *MemoryList) ReadAt(blob *dumpio.Blob, addr uint64, n int) ([]byte, bool) {
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
		data, err := blob.Bytes(int64(r.RVA)+int64(addr-r.Base), int64(want))
		if err != nil {
			return nil, false
		}
		return data, true
	}
	return nil, false
}
