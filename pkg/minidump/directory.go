package minidump

import (
	"fmt"

	"github.com/jloutsch/minidumptruck/pkg/dumpio"
)

// maxDirectoryEntries caps the stream count accepted before any allocation
// proportional to it is made. A directory that claims more is rejected
// wholesale rather than accepted and then truncated.
const maxDirectoryEntries = 1000

const directoryEntrySize = 12 // type(4) + size(4) + rva(4)

// parseDirectory reads exactly h.StreamCount directory entries starting at
// h.StreamDirectoryRVA. The whole directory is rejected (InvalidStreamDirectory)
// if the count exceeds maxDirectoryEntries, if the range arithmetic
// overflows, or if the range exceeds the blob -- never partially accepted.
func parseDirectory(blob *dumpio.Blob, h Header) ([]DirectoryEntry, error) {
	if h.StreamCount > maxDirectoryEntries {
		return nil, invalidStreamDirectory(fmt.Sprintf("stream count %d exceeds cap %d", h.StreamCount, maxDirectoryEntries))
	}

	base := int64(h.StreamDirectoryRVA)
	total := int64(h.StreamCount) * int64(directoryEntrySize)
	if total < 0 || base < 0 {
		return nil, invalidStreamDirectory("directory extent overflows")
	}
	if _, err := blob.Bytes(base, total); err != nil {
		return nil, invalidStreamDirectory(fmt.Sprintf("directory range %#x..%#x exceeds file: %v", base, base+total, err))
	}

	entries := make([]DirectoryEntry, 0, h.StreamCount)
	c := dumpio.NewCursor(blob, base)
	for i := uint32(0); i < h.StreamCount; i++ {
		typ := StreamType(c.U32())
		size := c.U32()
		rva := c.U32()
		if c.Err() != nil {
			return nil, invalidStreamDirectory(c.Err().Error())
		}
		entries = append(entries, DirectoryEntry{Type: typ, Size: size, RVA: rva})
	}
	return entries, nil
}
