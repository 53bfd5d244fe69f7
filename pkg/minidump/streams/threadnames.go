package streams

import "github.com/jloutsch/minidumptruck/pkg/dumpio"

// MaxThreadNames caps how many ThreadNames entries are decoded.
const MaxThreadNames = 50000

// threadNameEntrySize is the authoritative Microsoft definition:
// ThreadId(u32) + RvaOfThreadName(u64), naturally 12 bytes. Some producers
// pad this to 16 bytes under 8-byte alignment; per the design's open
// question we probe 12 first and only fall back if that consistently
// over-reads.
const threadNameEntrySize = 12

// ThreadName is one entry of the ThreadNames stream.
type ThreadName struct {
	ThreadID    uint32
	NameRVA     uint64
	Name        string
}

// DecodeThreadNames decodes the ThreadNames stream at rva. size is the
// stream's advertised byte length, used to distinguish the 12-byte and
// 16-byte record layouts described in the design notes: if the stream
// exactly matches count*16 but not count*12, the entries are 16 bytes
// wide.
func DecodeThreadNames(blob *dumpio.Blob, rva int64, size int64) ([]ThreadName, bool) {
	c := dumpio.NewCursor(blob, rva)
	count := c.U32()
	if c.Err() != nil {
		return nil, false
	}
	if count > MaxThreadNames {
		return nil, false
	}

	entrySize := int64(threadNameEntrySize)
	remaining := size - 4
	if remaining == int64(count)*16 && remaining != int64(count)*12 {
		entrySize = 16
	}

	names := make([]ThreadName, 0, count)
	base := rva + 4
	for i := uint32(0); i < count; i++ {
		off := base + int64(i)*entrySize
		ec := dumpio.NewCursor(blob, off)
		threadID := ec.U32()
		if entrySize == 16 {
			ec.Skip(4) // alignment padding before the RVA field
		}
		nameRVA := ec.U64()
		if ec.Err() != nil {
			break
		}

		tn := ThreadName{ThreadID: threadID, NameRVA: nameRVA}
		if nameRVA != 0 && nameRVA <= 0xffffffff {
			tn.Name = blob.UTF16LP(int64(nameRVA))
		}
		names = append(names, tn)
	}
	return names, true
}
