package minidump

import (
	"github.com/sirupsen/logrus"

	"github.com/jloutsch/minidumptruck/pkg/dumpio"
	"github.com/jloutsch/minidumptruck/pkg/minidump/streams"
)

// ParsedDump is the fully decoded representation of a minidump file: the
// header and directory, plus every stream that was present and decodable.
// A nil field or false Has* flag means the corresponding stream was
// absent or malformed, never that parsing failed overall -- only the
// three FatalError kinds abort the whole parse.
type ParsedDump struct {
	Header    Header
	Directory []DirectoryEntry

	SystemInfo *streams.SystemInfo
	MiscInfo   *streams.MiscInfo
	Exception  *streams.Exception

	Threads []streams.ThreadInfo
	Modules []streams.ModuleInfo

	Memory64       *streams.Memory64List
	MemoryList     *streams.MemoryList
	MemoryInfoList []streams.MemoryInfo
	Handles        []streams.HandleEntry
	Unloaded       []streams.UnloadedModule
	ThreadNames    []streams.ThreadName

	blob *dumpio.Blob
}

// Parse builds a ParsedDump from raw file bytes. It returns a FatalError
// (InvalidSignature, InvalidHeader, or InvalidStreamDirectory) if the file
// cannot be recognized as a minidump at all; every other problem degrades
// individual streams to absent rather than failing the parse.
func Parse(data []byte) (*ParsedDump, error) {
	blob := dumpio.NewBlob(data)

	header, err := parseHeader(blob)
	if err != nil {
		return nil, err
	}

	dir, err := parseDirectory(blob, header)
	if err != nil {
		return nil, err
	}

	dump := &ParsedDump{
		Header:    header,
		Directory: dir,
		blob:      blob,
	}

	for _, entry := range dir {
		dump.decodeEntry(entry)
	}

	dump.attachThreadNames()
	dump.attachCSDVersion()

	return dump, nil
}

func (d *ParsedDump) decodeEntry(entry DirectoryEntry) {
	rva := int64(entry.RVA)
	size := int64(entry.Size)
	log := logrus.WithFields(logrus.Fields{"stream": entry.Type.String(), "rva": entry.RVA, "size": entry.Size})

	switch entry.Type {
	case StreamSystemInfo:
		if si, ok := streams.DecodeSystemInfo(d.blob, rva, size); ok {
			d.SystemInfo = si
		} else {
			log.Debug("SystemInfo stream present but could not be decoded")
		}
	case StreamMiscInfo:
		if mi, ok := streams.DecodeMiscInfo(d.blob, rva); ok {
			d.MiscInfo = mi
		} else {
			log.Debug("MiscInfo stream present but could not be decoded")
		}
	case StreamException:
		if ex, ok := streams.DecodeException(d.blob, rva); ok {
			d.Exception = ex
		} else {
			log.Debug("Exception stream present but could not be decoded")
		}
	case StreamThreadList:
		if th, ok := streams.DecodeThreadList(d.blob, rva); ok {
			d.Threads = th
		} else {
			log.Debug("ThreadList stream present but could not be decoded")
		}
	case StreamModuleList:
		if mods, ok := streams.DecodeModuleList(d.blob, rva); ok {
			d.Modules = mods
		} else {
			log.Debug("ModuleList stream present but could not be decoded")
		}
	case StreamMemory64List:
		if m64, ok := streams.DecodeMemory64List(d.blob, rva); ok {
			d.Memory64 = m64
		} else {
			log.Debug("Memory64List stream present but could not be decoded")
		}
	case StreamMemoryList:
		if ml, ok := streams.DecodeMemoryList(d.blob, rva); ok {
			d.MemoryList = ml
		} else {
			log.Debug("MemoryList stream present but could not be decoded")
		}
	case StreamMemoryInfoList:
		if mi, ok := streams.DecodeMemoryInfoList(d.blob, rva); ok {
			d.MemoryInfoList = mi
		} else {
			log.Debug("MemoryInfoList stream present but could not be decoded")
		}
	case StreamHandleData:
		if h, ok := streams.DecodeHandleDataStream(d.blob, rva); ok {
			d.Handles = h
		} else {
			log.Debug("HandleData stream present but could not be decoded")
		}
	case StreamUnloadedModuleList:
		if u, ok := streams.DecodeUnloadedModuleList(d.blob, rva); ok {
			d.Unloaded = u
		} else {
			log.Debug("UnloadedModuleList stream present but could not be decoded")
		}
	case StreamThreadNames:
		if tn, ok := streams.DecodeThreadNames(d.blob, rva, size); ok {
			d.ThreadNames = tn
		} else {
			log.Debug("ThreadNames stream present but could not be decoded")
		}
	default:
		log.Trace("stream type not in the decoded set, left raw")
	}
}

// attachThreadNames folds the ThreadNames stream into each ThreadInfo's
// Name field by matching thread id.
func (d *ParsedDump) attachThreadNames() {
	if len(d.ThreadNames) == 0 || len(d.Threads) == 0 {
		return
	}
	byID := make(map[uint32]string, len(d.ThreadNames))
	for _, tn := range d.ThreadNames {
		if tn.Name != "" {
			byID[tn.ThreadID] = tn.Name
		}
	}
	for i := range d.Threads {
		if name, ok := byID[d.Threads[i].ID]; ok {
			d.Threads[i].Name = name
		}
	}
}

// attachCSDVersion resolves SystemInfo.CSDVersionRVA into CSDVersion,
// since it requires a second read from the blob beyond the fixed-size
// record.
func (d *ParsedDump) attachCSDVersion() {
	if d.SystemInfo == nil || d.SystemInfo.CSDVersionRVA == 0 {
		return
	}
	d.SystemInfo.CSDVersion = d.blob.UTF16LP(int64(d.SystemInfo.CSDVersionRVA))
}

// FaultingThread returns the thread whose id equals the exception's
// thread id, if both an exception and a matching thread exist.
func (d *ParsedDump) FaultingThread() (*streams.ThreadInfo, bool) {
	if d.Exception == nil {
		return nil, false
	}
	for i := range d.Threads {
		if d.Threads[i].ID == d.Exception.ThreadID {
			return &d.Threads[i], true
		}
	}
	return nil, false
}

// ModuleContaining returns the module whose [Base, End) range contains
// addr, if any.
func (d *ParsedDump) ModuleContaining(addr uint64) (*streams.ModuleInfo, bool) {
	for i := range d.Modules {
		if d.Modules[i].Contains(addr) {
			return &d.Modules[i], true
		}
	}
	return nil, false
}

// ReadAt reads n bytes of captured process memory at addr, trying
// Memory64List first and falling back to the legacy MemoryList stream.
func (d *ParsedDump) ReadAt(addr uint64, n int) ([]byte, bool) {
	if d.Memory64 != nil {
		if data, ok := d.Memory64.ReadAt(d.blob, addr, n); ok {
			return data, true
		}
	}
	if d.MemoryList != nil {
		if data, ok := d.MemoryList.ReadAt(d.blob, addr, n); ok {
			return data, true
		}
	}
	return nil, false
}

// Blob exposes the underlying byte blob for components that need raw
// access beyond the decoded streams (the stack walker's heuristic scan,
// for instance).
func (d *ParsedDump) Blob() *dumpio.Blob {
	return d.blob
}
