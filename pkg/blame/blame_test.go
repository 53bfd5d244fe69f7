package blame_test

import (
	"encoding/binary"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/jloutsch/minidumptruck/pkg/blame"
	"github.com/jloutsch/minidumptruck/pkg/classify"
	"github.com/jloutsch/minidumptruck/pkg/minidump"
	"github.com/jloutsch/minidumptruck/pkg/minidump/streams"
	"github.com/jloutsch/minidumptruck/pkg/resolver"
	"github.com/jloutsch/minidumptruck/pkg/stack"
)

func frame(module string) stack.Frame {
	return stack.Frame{Module: module, HasModule: true}
}

var _ = Describe("Assign", func() {
	var tables *classify.Tables

	BeforeEach(func() {
		tables = classify.Default
	})

	Context("when a graphics driver appears within the first five frames", func() {
		It("blames the driver even though a later frame is also non-system", func() {
			frames := []stack.Frame{
				frame(`C:\Windows\System32\ntdll.dll`),
				frame(`C:\Windows\System32\DriverStore\nvwgf2umx.dll`),
				frame(`C:\Program Files\App\app.exe`),
			}
			b, ok := blame.Assign(tables, nil, frames, nil)
			Expect(ok).To(BeTrue())
			Expect(b.Reason).To(Equal(blame.ReasonGraphicsDriver))
			Expect(b.ShortName).To(Equal(`C:\Windows\System32\DriverStore\nvwgf2umx.dll`))
		})
	})

	Context("when the graphics driver appears past the scan depth", func() {
		It("falls through to the first non-system frame instead", func() {
			frames := []stack.Frame{
				frame(`C:\Windows\System32\ntdll.dll`),
				frame(`C:\Windows\System32\kernel32.dll`),
				frame(`C:\Windows\System32\kernelbase.dll`),
				frame(`C:\Windows\System32\ucrtbase.dll`),
				frame(`C:\Windows\System32\msvcrt.dll`),
				frame(`C:\Windows\System32\DriverStore\nvwgf2umx.dll`),
			}
			b, ok := blame.Assign(tables, nil, frames, nil)
			Expect(ok).To(BeTrue())
			Expect(b.Reason).To(Equal(blame.ReasonFirstNonSystemFrame))
			Expect(b.ShortName).To(Equal(`C:\Windows\System32\DriverStore\nvwgf2umx.dll`))
		})
	})

	Context("when the first frame is already non-system", func() {
		It("blames the first frame directly", func() {
			frames := []stack.Frame{
				frame(`C:\Program Files\App\app.exe`),
				frame(`C:\Windows\System32\ntdll.dll`),
			}
			b, ok := blame.Assign(tables, nil, frames, nil)
			Expect(ok).To(BeTrue())
			Expect(b.Reason).To(Equal(blame.ReasonDirectCrash))
			Expect(b.ShortName).To(Equal(`C:\Program Files\App\app.exe`))
		})
	})

	Context("when the only frame available is inside a system module, matching the exception address", func() {
		It("blames that frame anyway, falling back to the exception's own module", func() {
			data := buildOneModuleDump(0x140000000, 0x5000, `C:\Windows\System32\ntdll.dll`)
			dump, err := minidump.Parse(data)
			Expect(err).NotTo(HaveOccurred())
			res := resolver.New(dump)

			frames := []stack.Frame{
				{Module: "ntdll.dll", HasModule: true},
			}
			exception := &streams.Exception{Address: 0x140000010}

			b, ok := blame.Assign(tables, res, frames, exception)
			Expect(ok).To(BeTrue())
			Expect(b.Reason).To(Equal(blame.ReasonDirectCrash))
			Expect(b.ShortName).To(Equal("ntdll.dll"))
			Expect(b.Category).To(Equal(classify.CategorySystem))
		})
	})

	Context("when nothing resolves at all", func() {
		It("reports no blame", func() {
			frames := []stack.Frame{
				frame(`C:\Windows\System32\ntdll.dll`),
			}
			_, ok := blame.Assign(tables, nil, frames, nil)
			Expect(ok).To(BeFalse())
		})
	})
})

var _ = Describe("ProbableCause", func() {
	It("renders a canned explanation for a stack overflow", func() {
		exception := &streams.Exception{Code: 0xC00000FD}
		msg := blame.ProbableCause(exception, blame.Blame{}, false)
		Expect(msg).To(ContainSubstring("Stack overflow"))
	})

	It("falls back to the blamed frame when the code has no canned text", func() {
		exception := &streams.Exception{Code: 0x1}
		b := blame.Blame{ShortName: "app.exe", Reason: blame.ReasonDirectCrash}
		msg := blame.ProbableCause(exception, b, true)
		Expect(msg).To(ContainSubstring("app.exe"))
	})

	It("reports no exception record when there is none", func() {
		Expect(blame.ProbableCause(nil, blame.Blame{}, false)).To(Equal("No exception record present."))
	})
})

var _ = Describe("Recommendation", func() {
	It("suggests a driver update for a graphics-driver blame", func() {
		b := blame.Blame{Category: classify.CategoryGraphicsDriver}
		Expect(blame.Recommendation(b, true)).To(ContainSubstring("driver"))
	})

	It("names the third-party module to check for updates", func() {
		b := blame.Blame{Category: classify.CategoryThirdParty, ShortName: "acme.dll"}
		Expect(blame.Recommendation(b, true)).To(ContainSubstring("acme.dll"))
	})

	It("gives a generic recommendation with no blame", func() {
		Expect(blame.Recommendation(blame.Blame{}, false)).To(ContainSubstring("stack trace"))
	})
})

var _ = Describe("Confidence", func() {
	It("is Low with no corroborating frames", func() {
		Expect(blame.Confidence(nil)).To(Equal(stack.Low))
	})

	It("is Medium with a little corroborating evidence", func() {
		frames := []stack.Frame{
			{Type: stack.FramePointer, Confidence: stack.High},
		}
		Expect(blame.Confidence(frames)).To(Equal(stack.Medium))
	})

	It("is High with several frame-pointer and high-confidence frames", func() {
		frames := []stack.Frame{
			{Type: stack.FramePointer, Confidence: stack.High},
			{Type: stack.FramePointer, Confidence: stack.High},
			{Type: stack.FramePointer, Confidence: stack.High},
			{Type: stack.InstructionPointer, Confidence: stack.High},
		}
		Expect(blame.Confidence(frames)).To(Equal(stack.High))
	})
})

// buildOneModuleDump assembles the smallest dump carrying a single
// ModuleList entry, enough to give a Resolver something to resolve.
func buildOneModuleDump(base uint64, size uint32, name string) []byte {
	nameUnits := make([]byte, 0, len(name)*2+2)
	for _, r := range name {
		nameUnits = append(nameUnits, byte(r), 0)
	}
	nameUnits = append(nameUnits, 0, 0)

	const headerSize = 32
	const dirEntrySize = 12
	const moduleListHeader = 4
	const moduleRecordSize = 108

	moduleListRVA := uint32(headerSize + dirEntrySize)
	nameRVA := moduleListRVA + moduleListHeader + moduleRecordSize
	total := int(nameRVA) + 4 + len(nameUnits)

	data := make([]byte, total)
	binary.LittleEndian.PutUint32(data[0:4], minidump.Signature)
	binary.LittleEndian.PutUint32(data[8:12], 1)
	binary.LittleEndian.PutUint32(data[12:16], headerSize)

	dirOff := headerSize
	binary.LittleEndian.PutUint32(data[dirOff:dirOff+4], uint32(minidump.StreamModuleList))
	binary.LittleEndian.PutUint32(data[dirOff+4:dirOff+8], moduleListHeader+moduleRecordSize)
	binary.LittleEndian.PutUint32(data[dirOff+8:dirOff+12], moduleListRVA)

	modOff := int(moduleListRVA)
	binary.LittleEndian.PutUint32(data[modOff:modOff+4], 1)
	binary.LittleEndian.PutUint64(data[modOff+4:modOff+12], base)
	binary.LittleEndian.PutUint32(data[modOff+12:modOff+16], size)
	binary.LittleEndian.PutUint32(data[modOff+24:modOff+28], nameRVA)

	binary.LittleEndian.PutUint32(data[nameRVA:nameRVA+4], uint32(len(nameUnits)))
	copy(data[nameRVA+4:], nameUnits)

	return data
}
