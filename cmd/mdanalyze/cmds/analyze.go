package cmds

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/kr/pretty"
	"github.com/spf13/cobra"

	"github.com/jloutsch/minidumptruck/pkg/analyzer"
	"github.com/jloutsch/minidumptruck/pkg/minidump"
	"github.com/jloutsch/minidumptruck/pkg/resolver"
)

func newAnalyzeCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "analyze <dump>",
		Short: "Parse a minidump and print a crash analysis report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dump, err := loadDump(args[0])
			if err != nil {
				return err
			}
			if flags.debugDump {
				fmt.Fprintf(colorWriter(), "%# v\n", pretty.Formatter(dump))
			}

			a := analyzer.NewWithTables(loadedConfig.ClassifierTables())
			analysis, ok := a.Analyze(dump)

			if asJSON {
				return printJSON(dump, analysis, ok)
			}
			printReport(dump, analysis, ok)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON instead of text")
	return cmd
}

func loadDump(path string) (*minidump.ParsedDump, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	dump, err := minidump.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return dump, nil
}

type jsonReport struct {
	HasException bool   `json:"hasException"`
	ExceptionCode string `json:"exceptionCode,omitempty"`
	HasAnalysis  bool   `json:"hasAnalysis"`
	Summary      string `json:"summary,omitempty"`
	Recommendation string `json:"recommendation,omitempty"`
	Confidence   string `json:"confidence,omitempty"`
	BlamedModule string `json:"blamedModule,omitempty"`
	FrameCount   int    `json:"frameCount"`
}

func printJSON(dump *minidump.ParsedDump, analysis analyzer.CrashAnalysis, ok bool) error {
	r := jsonReport{HasException: dump.Exception != nil, HasAnalysis: ok}
	if dump.Exception != nil {
		r.ExceptionCode = fmt.Sprintf("0x%08X", dump.Exception.Code)
	}
	if ok {
		r.Summary = analysis.Summary
		r.Recommendation = analysis.Recommendation
		r.Confidence = analysis.Confidence.String()
		r.FrameCount = len(analysis.Frames)
		if analysis.HasBlame {
			r.BlamedModule = analysis.Blame.ShortName
		}
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

func printReport(dump *minidump.ParsedDump, analysis analyzer.CrashAnalysis, ok bool) {
	w := colorWriter()
	if dump.Exception == nil {
		fmt.Fprintln(w, "No exception record present in this dump.")
		return
	}

	res := resolver.New(dump)
	fmt.Fprintf(w, "Exception code: 0x%08X at %s\n", dump.Exception.Code, res.Resolve(dump.Exception.Address))

	if !ok {
		fmt.Fprintln(w, "No faulting-thread context available; cannot walk the stack.")
		return
	}

	fmt.Fprintf(w, "Summary: %s\n", analysis.Summary)
	fmt.Fprintf(w, "Recommendation: %s\n", analysis.Recommendation)
	fmt.Fprintf(w, "Confidence: %s\n", analysis.Confidence)
	if analysis.HasBlame {
		fmt.Fprintf(w, "Blamed module: %s (%s, %s)\n", analysis.Blame.ShortName, analysis.Blame.Category, analysis.Blame.Reason)
	}

	fmt.Fprintln(w, "\nTop frames:")
	top := analysis.Frames
	if len(top) > 10 {
		top = top[:10]
	}
	for i, f := range top {
		mod := "?"
		if f.HasModule {
			mod = fmt.Sprintf("%s+0x%x", f.Module, f.OffsetInModule)
		}
		fmt.Fprintf(w, "  #%-2d 0x%016x %-30s [%s/%s]\n", i, f.Address, mod, f.Type, f.Confidence)
	}
}
