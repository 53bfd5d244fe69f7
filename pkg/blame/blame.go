// Package blame assigns responsibility for a crash to a stack frame and
// renders the probable-cause and recommendation text a human reads first,
// the blame-and-summary logic described as component G.
package blame

import (
	"fmt"

	"github.com/jloutsch/minidumptruck/pkg/classify"
	"github.com/jloutsch/minidumptruck/pkg/minidump/streams"
	"github.com/jloutsch/minidumptruck/pkg/ntstatus"
	"github.com/jloutsch/minidumptruck/pkg/resolver"
	"github.com/jloutsch/minidumptruck/pkg/stack"
)

// Reason names why a particular frame was picked as the blamed frame.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonGraphicsDriver
	ReasonDirectCrash
	ReasonFirstNonSystemFrame
)

func (r Reason) String() string {
	switch r {
	case ReasonGraphicsDriver:
		return "GraphicsDriver"
	case ReasonDirectCrash:
		return "DirectCrash"
	case ReasonFirstNonSystemFrame:
		return "FirstNonSystemFrame"
	default:
		return "None"
	}
}

// Blame identifies the frame held responsible for a crash.
type Blame struct {
	Frame     stack.Frame
	ShortName string
	Category  classify.Category
	Reason    Reason
}

// graphicsDriverScanDepth is how many leading frames (or fewer) Assign
// scans for the first graphics-driver-classified frame.
const graphicsDriverScanDepth = 5

// Assign picks the blamed frame per the fixed priority order: a graphics
// driver within the first 5 frames, else the first frame if it is
// non-system, else the first non-system frame anywhere, else the module
// containing the exception address.
func Assign(tables *classify.Tables, res *resolver.Resolver, frames []stack.Frame, exception *streams.Exception) (Blame, bool) {
	if tables == nil {
		tables = classify.Default
	}

	for i, f := range frames {
		if i >= graphicsDriverScanDepth {
			break
		}
		if !f.HasModule {
			continue
		}
		if tables.Category(f.Module) == classify.CategoryGraphicsDriver {
			return newBlame(tables, f, ReasonGraphicsDriver), true
		}
	}

	if len(frames) > 0 {
		f := frames[0]
		if f.HasModule && tables.Category(f.Module) != classify.CategorySystem {
			return newBlame(tables, f, ReasonDirectCrash), true
		}
	}

	for _, f := range frames {
		if f.HasModule && tables.Category(f.Module) != classify.CategorySystem {
			return newBlame(tables, f, ReasonFirstNonSystemFrame), true
		}
	}

	if exception != nil && res != nil {
		if mod, ok := res.ModuleContaining(exception.Address); ok {
			for _, f := range frames {
				if f.Module == resolver.ShortName(mod.Name) {
					return newBlame(tables, f, ReasonDirectCrash), true
				}
			}
		}
	}

	return Blame{}, false
}

func newBlame(tables *classify.Tables, f stack.Frame, reason Reason) Blame {
	return Blame{
		Frame:     f,
		ShortName: f.Module,
		Category:  tables.Category(f.Module),
		Reason:    reason,
	}
}

// ProbableCause renders the one-line explanation of why the process
// crashed, choosing by exception code first and only falling back to the
// blamed frame or the NT-status table when the code isn't one of the
// handful with a canned explanation.
func ProbableCause(exception *streams.Exception, b Blame, hasBlame bool) string {
	if exception == nil {
		return "No exception record present."
	}

	switch exception.Code {
	case 0xC0000005:
		if msg, ok := exception.AccessViolationDetails(); ok {
			return msg
		}
		return "Invalid memory access"
	case 0xC00000FD:
		return "Stack overflow – excessive recursion or large stack allocations"
	case 0xC0000094:
		return "Division by zero in integer arithmetic"
	case 0xC0000409:
		return "Security check failure – buffer overrun detected"
	case 0xE06D7363:
		return "Unhandled C++ exception"
	default:
		if hasBlame {
			return fmt.Sprintf("Exception in %s: %s", b.ShortName, b.Reason)
		}
		return ntstatus.Description(exception.Code)
	}
}

// Recommendation renders the operator-facing suggestion for a blamed
// frame's category, or a generic suggestion when no frame was blamed.
func Recommendation(b Blame, hasBlame bool) string {
	if !hasBlame {
		return "Analyze the stack trace for more detail."
	}
	switch b.Category {
	case classify.CategoryGraphicsDriver:
		return "Update graphics drivers to the latest version."
	case classify.CategoryThirdParty:
		return fmt.Sprintf("Check for updates to %s.", b.ShortName)
	case classify.CategoryApplication:
		return "Likely a bug in the application code; review the stack trace near the blamed frame."
	default:
		return "Check for Windows updates or hardware issues."
	}
}

// Confidence scores how much the analysis as a whole should be trusted,
// based on the shape of the frame list: High requires both several
// frame-pointer frames and several high-confidence frames; Medium needs
// only a little corroborating evidence; everything else is Low.
func Confidence(frames []stack.Frame) stack.Confidence {
	var framePointers, highConfidence int
	for _, f := range frames {
		if f.Type == stack.FramePointer {
			framePointers++
		}
		if f.Confidence == stack.High {
			highConfidence++
		}
	}
	switch {
	case framePointers >= 3 && highConfidence >= 4:
		return stack.High
	case highConfidence >= 2 || framePointers >= 1:
		return stack.Medium
	default:
		return stack.Low
	}
}
