package streams

import "github.com/jloutsch/minidumptruck/pkg/dumpio"

// MiscInfo flag bits gating which optional fields were written, per §4.3.
const (
	miscFlagsProcessID        uint32 = 0x1
	miscFlagsProcessTimes     uint32 = 0x2
	miscFlagsProcessorPower   uint32 = 0x4
	miscFlagsProcessIntegrity uint32 = 0x10
	miscFlagsProcessExecute   uint32 = 0x20
	miscFlagsTimeZone         uint32 = 0x40
	miscFlagsProtectedProcess uint32 = 0x80
	miscFlagsBuildStrings     uint32 = 0x100
)

// MiscInfo is the decoded MiscInfo stream. Optional fields are only
// meaningful when their gate flag is set; callers should check the
// corresponding Has* field.
type MiscInfo struct {
	SizeOfInfo uint32
	Flags1     uint32

	HasProcessID bool
	ProcessID    uint32

	HasProcessTimes bool
	CreateTime      uint32
	UserTime        uint32
	KernelTime      uint32

	HasProcessorPower         bool
	ProcessorMaxMhz           uint32
	ProcessorCurrentMhz       uint32
	ProcessorMhzLimit         uint32
	ProcessorMaxIdleState     uint32
	ProcessorCurrentIdleState uint32

	HasIntegrityLevel bool
	IntegrityLevel    uint32

	HasExecuteFlags bool
	ProcessExecuteFlags uint32

	HasProtectedProcess bool
	ProtectedProcess    uint32

	HasTimeZone      bool
	TimeZoneID       uint32
	TimeZoneBias     int32
	StandardName     string
	DaylightName     string

	HasBuildStrings bool
	BuildString     string
	DbgBuildString  string
}

const miscInfoMinSize = 24

// DecodeMiscInfo decodes the MiscInfo stream at rva.
func DecodeMiscInfo(blob *dumpio.Blob, rva int64) (*MiscInfo, bool) {
	sizeOfInfo, err := blob.U32(rva)
	if err != nil || sizeOfInfo < miscInfoMinSize {
		return nil, false
	}
	if _, err := blob.Bytes(rva, int64(sizeOfInfo)); err != nil {
		return nil, false
	}

	var mi MiscInfo
	mi.SizeOfInfo = sizeOfInfo
	mi.Flags1, _ = blob.U32(rva + 4)

	if mi.Flags1&miscFlagsProcessID != 0 {
		if v, err := blob.U32(rva + 8); err == nil {
			mi.HasProcessID = true
			mi.ProcessID = v
		}
	}
	if mi.Flags1&miscFlagsProcessTimes != 0 {
		ct, e1 := blob.U32(rva + 12)
		ut, e2 := blob.U32(rva + 16)
		kt, e3 := blob.U32(rva + 20)
		if e1 == nil && e2 == nil && e3 == nil {
			mi.HasProcessTimes = true
			mi.CreateTime, mi.UserTime, mi.KernelTime = ct, ut, kt
		}
	}
	if mi.Flags1&miscFlagsProcessorPower != 0 && sizeOfInfo >= 44 {
		maxMhz, e1 := blob.U32(rva + 24)
		curMhz, e2 := blob.U32(rva + 28)
		mhzLimit, e3 := blob.U32(rva + 32)
		maxIdle, e4 := blob.U32(rva + 36)
		curIdle, e5 := blob.U32(rva + 40)
		if e1 == nil && e2 == nil && e3 == nil && e4 == nil && e5 == nil {
			mi.HasProcessorPower = true
			mi.ProcessorMaxMhz = maxMhz
			mi.ProcessorCurrentMhz = curMhz
			mi.ProcessorMhzLimit = mhzLimit
			mi.ProcessorMaxIdleState = maxIdle
			mi.ProcessorCurrentIdleState = curIdle
		}
	}
	if mi.Flags1&miscFlagsProcessIntegrity != 0 && sizeOfInfo >= 232 {
		if v, err := blob.U32(rva + 44); err == nil {
			mi.HasIntegrityLevel = true
			mi.IntegrityLevel = v
		}
	}
	if mi.Flags1&miscFlagsProcessExecute != 0 {
		if v, err := blob.U32(rva + 48); err == nil {
			mi.HasExecuteFlags = true
			mi.ProcessExecuteFlags = v
		}
	}
	if mi.Flags1&miscFlagsProtectedProcess != 0 {
		if v, err := blob.U32(rva + 52); err == nil {
			mi.HasProtectedProcess = true
			mi.ProtectedProcess = v
		}
	}
	if mi.Flags1&miscFlagsTimeZone != 0 {
		id, e1 := blob.U32(rva + 56)
		bias, e2 := blob.I32(rva + 60)
		if e1 == nil && e2 == nil {
			mi.HasTimeZone = true
			mi.TimeZoneID = id
			mi.TimeZoneBias = bias
			mi.StandardName = blob.UTF16Fixed(rva+64, 64)
			mi.DaylightName = blob.UTF16Fixed(rva+196, 64)
		}
	}
	if mi.Flags1&miscFlagsBuildStrings != 0 && sizeOfInfo >= 1128 {
		mi.HasBuildStrings = true
		mi.BuildString = blob.UTF16Fixed(rva+232, 520)
		mi.DbgBuildString = blob.UTF16Fixed(rva+752, 80)
	}

	return &mi, true
}
