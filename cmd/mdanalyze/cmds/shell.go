package cmds

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cosiner/argv"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jloutsch/minidumptruck/pkg/analyzer"
	"github.com/jloutsch/minidumptruck/pkg/minidump"
	"github.com/jloutsch/minidumptruck/pkg/resolver"
)

const shellHistoryFile = ".mdanalyze_history"

func newShellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell <dump>",
		Short: "Open an interactive REPL over a single parsed dump",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dump, err := loadDump(args[0])
			if err != nil {
				return err
			}
			return runShell(dump)
		},
	}
}

func runShell(dump *minidump.ParsedDump) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	res := resolver.New(dump)
	a := analyzer.NewWithTables(loadedConfig.ClassifierTables())

	fmt.Fprintln(colorWriter(), "mdanalyze shell. Type 'help' for commands, 'quit' to exit.")
	for {
		input, err := line.Prompt("(mdanalyze) ")
		if err != nil {
			return nil
		}
		line.AppendHistory(input)

		args, err := argv.Argv([]rune(input), nil, nil)
		if err != nil || len(args) == 0 || len(args[0]) == 0 {
			continue
		}
		tokens := args[0]
		cmdName := tokens[0]
		rest := tokens[1:]

		switch strings.ToLower(cmdName) {
		case "quit", "exit":
			return nil
		case "help":
			printShellHelp()
		case "threads":
			shellThreads(dump)
		case "modules":
			shellModules(dump)
		case "resolve":
			shellResolve(res, rest)
		case "frames":
			shellFrames(dump, a)
		case "blame":
			shellBlame(dump, a)
		case "mem":
			shellMem(res, rest)
		default:
			fmt.Fprintf(colorWriter(), "unknown command %q\n", cmdName)
		}
	}
}

func printShellHelp() {
	fmt.Fprintln(colorWriter(), "commands: threads, modules, resolve <addr>, frames, blame, mem <addr> <n>, quit")
}

func shellThreads(dump *minidump.ParsedDump) {
	w := colorWriter()
	for _, t := range dump.Threads {
		name := t.Name
		if name == "" {
			name = "?"
		}
		fmt.Fprintf(w, "thread %-6d name=%-20s hasContext=%v\n", t.ID, name, t.HasContext)
	}
}

func shellModules(dump *minidump.ParsedDump) {
	w := colorWriter()
	for _, m := range dump.Modules {
		fmt.Fprintf(w, "0x%016x-0x%016x %s\n", m.Base, m.End(), m.Name)
	}
}

func shellResolve(res *resolver.Resolver, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(colorWriter(), "usage: resolve <addr>")
		return
	}
	addr, err := parseAddr(args[0])
	if err != nil {
		fmt.Fprintln(colorWriter(), err)
		return
	}
	fmt.Fprintln(colorWriter(), res.Resolve(addr))
}

func shellFrames(dump *minidump.ParsedDump, a *analyzer.Analyzer) {
	analysis, ok := a.Analyze(dump)
	w := colorWriter()
	if !ok {
		fmt.Fprintln(w, "no analysis available")
		return
	}
	for i, f := range analysis.Frames {
		mod := "?"
		if f.HasModule {
			mod = fmt.Sprintf("%s+0x%x", f.Module, f.OffsetInModule)
		}
		fmt.Fprintf(w, "#%-2d 0x%016x %-30s [%s/%s]\n", i, f.Address, mod, f.Type, f.Confidence)
	}
}

func shellBlame(dump *minidump.ParsedDump, a *analyzer.Analyzer) {
	analysis, ok := a.Analyze(dump)
	w := colorWriter()
	if !ok || !analysis.HasBlame {
		fmt.Fprintln(w, "no blame assigned")
		return
	}
	fmt.Fprintf(w, "%s (%s, %s)\n%s\n%s\n", analysis.Blame.ShortName, analysis.Blame.Category, analysis.Blame.Reason, analysis.Summary, analysis.Recommendation)
}

func shellMem(res *resolver.Resolver, args []string) {
	w := colorWriter()
	if len(args) != 2 {
		fmt.Fprintln(w, "usage: mem <addr> <n>")
		return
	}
	addr, err := parseAddr(args[0])
	if err != nil {
		fmt.Fprintln(w, err)
		return
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		fmt.Fprintln(w, err)
		return
	}
	data, ok := res.ReadAt(addr, n)
	if !ok {
		fmt.Fprintln(w, "no memory captured at that address")
		return
	}
	fmt.Fprintf(w, "% x\n", data)
}

func parseAddr(s string) (uint64, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return v, nil
}
