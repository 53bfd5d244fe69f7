// Package analyzer produces a CrashAnalysis from a parsed minidump: the
// walked stack, the blamed frame, the probable cause and recommendation
// text, and an overall confidence score. It is the thin composition root
// over pkg/stack, pkg/blame, and pkg/ntstatus that the CLI and any other
// caller use instead of wiring those packages together themselves.
package analyzer

import (
	"github.com/jloutsch/minidumptruck/pkg/blame"
	"github.com/jloutsch/minidumptruck/pkg/classify"
	"github.com/jloutsch/minidumptruck/pkg/minidump"
	"github.com/jloutsch/minidumptruck/pkg/resolver"
	"github.com/jloutsch/minidumptruck/pkg/stack"
)

// CrashAnalysis is the full analysis result for one crashed dump.
type CrashAnalysis struct {
	Frames         []stack.Frame
	Blame          blame.Blame
	HasBlame       bool
	Summary        string
	Recommendation string
	Confidence     stack.Confidence
}

// Analyzer wires together the stack walker, the blame assignment logic,
// and the module classifier tables (which may carry operator config
// extensions) into a single analyze step.
type Analyzer struct {
	Tables *classify.Tables
}

// New returns an Analyzer using the built-in classification tables.
func New() *Analyzer {
	return &Analyzer{Tables: classify.Default}
}

// NewWithTables returns an Analyzer using a caller-supplied (e.g.
// config-extended) set of classification tables.
func NewWithTables(tables *classify.Tables) *Analyzer {
	return &Analyzer{Tables: tables}
}

// Analyze builds a CrashAnalysis for dump. It returns false if the dump
// carries no exception, or if the faulting thread has no decoded context
// -- the stack walker and blame logic need both of those to produce
// anything meaningful.
func (a *Analyzer) Analyze(dump *minidump.ParsedDump) (CrashAnalysis, bool) {
	if dump.Exception == nil {
		return CrashAnalysis{}, false
	}
	thread, _ := dump.FaultingThread()
	if thread == nil || !thread.HasContext {
		return CrashAnalysis{}, false
	}

	res := resolver.New(dump)
	walker := stack.Walk(res, thread, dump.Exception)
	frames := walker.Frames()

	b, hasBlame := blame.Assign(a.Tables, res, frames, dump.Exception)

	return CrashAnalysis{
		Frames:         frames,
		Blame:          b,
		HasBlame:       hasBlame,
		Summary:        blame.ProbableCause(dump.Exception, b, hasBlame),
		Recommendation: blame.Recommendation(b, hasBlame),
		Confidence:     blame.Confidence(frames),
	}, true
}
