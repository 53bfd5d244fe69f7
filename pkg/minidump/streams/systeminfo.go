package streams

import (
	"fmt"

	"github.com/jloutsch/minidumptruck/pkg/dumpio"
)

// Arch is the processor architecture tag of MINIDUMP_SYSTEM_INFO.
type Arch uint16

const (
	ArchX86           Arch = 0
	ArchMIPS          Arch = 1
	ArchAlpha         Arch = 2
	ArchPPC           Arch = 3
	ArchSHX           Arch = 4
	ArchARM           Arch = 5
	ArchIA64          Arch = 6
	ArchAlpha64       Arch = 7
	ArchMSIL          Arch = 8
	ArchAMD64         Arch = 9
	ArchX86OnX64      Arch = 10
	ArchNeutral       Arch = 11
	ArchARM64         Arch = 12
	ArchARM32OnX64    Arch = 13
	ArchX86OnARM64    Arch = 14
	ArchUnknown       Arch = 0xffff
)

func (a Arch) String() string {
	switch a {
	case ArchX86:
		return "x86"
	case ArchMIPS:
		return "MIPS"
	case ArchAlpha:
		return "Alpha"
	case ArchPPC:
		return "PPC"
	case ArchSHX:
		return "SHX"
	case ArchARM:
		return "ARM"
	case ArchIA64:
		return "IA-64"
	case ArchAlpha64:
		return "Alpha64"
	case ArchMSIL:
		return "MSIL"
	case ArchAMD64:
		return "AMD64"
	case ArchX86OnX64:
		return "x86-on-x64"
	case ArchNeutral:
		return "Neutral"
	case ArchARM64:
		return "ARM64"
	case ArchARM32OnX64:
		return "ARM32-on-x64"
	case ArchX86OnARM64:
		return "x86-on-ARM64"
	default:
		return "Unknown"
	}
}

// PlatformID is one of the three canonical Win32 platform ids. Per the
// design's open question, only these three are decoded; every other
// on-disk value is treated as unknown rather than guessed at.
type PlatformID uint32

const (
	PlatformWin32s      PlatformID = 0
	PlatformWin32Windows PlatformID = 1
	PlatformWin32NT     PlatformID = 2
	PlatformUnknown     PlatformID = 0xffffffff
)

func (p PlatformID) String() string {
	switch p {
	case PlatformWin32s:
		return "Win32s"
	case PlatformWin32Windows:
		return "Win32_Windows"
	case PlatformWin32NT:
		return "Win32NT"
	default:
		return "unknown"
	}
}

// ProductType mirrors MINIDUMP_SYSTEM_INFO's ProductType field.
type ProductType uint8

const (
	ProductWorkstation       ProductType = 1
	ProductDomainController ProductType = 2
	ProductServer           ProductType = 3
)

// CPUInfo is the 24-byte CPU information union. For x86/AMD64 the vendor
// and feature fields are populated; for everything else only
// ProcessorFeatures is.
type CPUInfo struct {
	VendorID          [3]uint32
	VersionInfo       uint32
	FeatureInfo       uint32
	ExtendedFeatures  uint32
	ProcessorFeatures [2]uint64
}

// SystemInfo is the decoded SystemInfo stream.
type SystemInfo struct {
	ProcessorArch          Arch
	ProcessorLevel         uint16
	ProcessorRevision      uint16
	NumberOfProcessors     uint8
	ProductType            ProductType
	MajorVersion           uint32
	MinorVersion           uint32
	BuildNumber            uint32
	PlatformID             PlatformID
	CSDVersionRVA          uint32
	SuiteMask              uint16
	CPU                    CPUInfo

	// CSDVersion is populated by the orchestrator from CSDVersionRVA,
	// since resolving it requires reading from the blob, not just the
	// fixed-size record.
	CSDVersion string
}

const systemInfoFixedSize = 56 + 24

// DecodeSystemInfo decodes the SystemInfo stream at rva. size is the
// stream's advertised length per the directory entry; the decoder still
// range-checks every read against the blob independently.
func DecodeSystemInfo(blob *dumpio.Blob, rva int64, size int64) (*SystemInfo, bool) {
	if size < systemInfoFixedSize {
		return nil, false
	}
	c := dumpio.NewCursor(blob, rva)

	var si SystemInfo
	si.ProcessorArch = Arch(c.U16())
	si.ProcessorLevel = c.U16()
	si.ProcessorRevision = c.U16()
	si.NumberOfProcessors = uint8(c.U8())
	si.ProductType = ProductType(c.U8())
	si.MajorVersion = c.U32()
	si.MinorVersion = c.U32()
	si.BuildNumber = c.U32()
	si.PlatformID = PlatformID(c.U32())
	si.CSDVersionRVA = c.U32()
	si.SuiteMask = c.U16()
	c.U16() // reserved2, padding

	switch si.ProcessorArch {
	case ArchX86, ArchAMD64, ArchX86OnX64:
		si.CPU.VendorID[0] = c.U32()
		si.CPU.VendorID[1] = c.U32()
		si.CPU.VendorID[2] = c.U32()
		si.CPU.VersionInfo = c.U32()
		si.CPU.FeatureInfo = c.U32()
		si.CPU.ExtendedFeatures = c.U32()
	default:
		si.CPU.ProcessorFeatures[0] = c.U64()
		si.CPU.ProcessorFeatures[1] = c.U64()
	}

	if c.Err() != nil {
		return nil, false
	}

	if !normalizePlatformID(&si.PlatformID) {
		si.PlatformID = PlatformUnknown
	}

	return &si, true
}

func normalizePlatformID(p *PlatformID) bool {
	switch *p {
	case PlatformWin32s, PlatformWin32Windows, PlatformWin32NT:
		return true
	default:
		return false
	}
}

// OSName maps (major, minor, build) to a fixed Windows release name per
// §4.3's derivation table.
func (si *SystemInfo) OSName() string {
	switch {
	case si.MajorVersion == 10 && si.MinorVersion == 0 && si.BuildNumber >= 22000:
		return "Windows 11"
	case si.MajorVersion == 10 && si.MinorVersion == 0:
		return "Windows 10"
	case si.MajorVersion == 6 && si.MinorVersion == 3:
		return "Windows 8.1"
	case si.MajorVersion == 6 && si.MinorVersion == 2:
		return "Windows 8"
	case si.MajorVersion == 6 && si.MinorVersion == 1:
		return "Windows 7"
	case si.MajorVersion == 6 && si.MinorVersion == 0:
		return "Windows Vista"
	case si.MajorVersion == 5 && si.MinorVersion == 2:
		return "Windows Server 2003 / XP x64"
	case si.MajorVersion == 5 && si.MinorVersion == 1:
		return "Windows XP"
	case si.MajorVersion == 5 && si.MinorVersion == 0:
		return "Windows 2000"
	default:
		return fmt.Sprintf("Windows %d.%d", si.MajorVersion, si.MinorVersion)
	}
}

// DisplayFamilyModel returns the CPU family/model the way Intel's
// "extended" fields encode them when the base family is 6 or 15, and the
// plain base fields otherwise.
func (si *SystemInfo) DisplayFamilyModel() (family, model uint32) {
	vi := si.CPU.VersionInfo
	baseFamily := (vi >> 8) & 0xf
	baseModel := (vi >> 4) & 0xf
	extFamily := (vi >> 20) & 0xff
	extModel := (vi >> 16) & 0xf

	family = baseFamily
	model = baseModel
	if baseFamily == 6 || baseFamily == 15 {
		family = baseFamily + extFamily
		model = (extModel << 4) + baseModel
	}
	return
}
