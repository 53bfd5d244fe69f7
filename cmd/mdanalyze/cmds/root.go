// Package cmds builds the cobra command tree for cmd/mdanalyze: analyze,
// streams, shell, and docs, mirroring the teacher's cmd/dlv/cmds
// structure of a root command plus one file per subcommand.
package cmds

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/pkg/profile"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	airbrake "gopkg.in/gemnasium/logrus-airbrake-hook.v2"

	"github.com/jloutsch/minidumptruck/pkg/config"
	"github.com/jloutsch/minidumptruck/pkg/version"
)

// globalFlags holds the persistent flag values shared by every
// subcommand.
type globalFlags struct {
	logLevel  string
	configFile string
	profile   bool
	debugDump bool
	noColor   bool
}

var flags globalFlags
var loadedConfig config.Config
var stopProfile func()

// New builds the root mdanalyze command with all subcommands attached.
func New() *cobra.Command {
	root := &cobra.Command{
		Use:     "mdanalyze",
		Short:   "Offline Windows minidump crash analysis",
		Version: version.Current.String(),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			teardown()
		},
	}

	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "logging level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&flags.configFile, "config", "", "path to an optional YAML config file")
	root.PersistentFlags().BoolVar(&flags.profile, "profile", false, "wrap the run in a pkg/profile CPU profile")
	root.PersistentFlags().BoolVar(&flags.debugDump, "debug-dump", false, "pretty-print the parsed dump structure via kr/pretty")
	root.PersistentFlags().BoolVar(&flags.noColor, "no-color", false, "disable ANSI color output even on a terminal")

	root.AddCommand(newAnalyzeCmd())
	root.AddCommand(newStreamsCmd())
	root.AddCommand(newShellCmd())
	root.AddCommand(newDocsCmd())

	return root
}

// setup applies global flags: logging level, optional config load,
// optional Airbrake hook, optional CPU profiling.
func setup() error {
	level, err := logrus.ParseLevel(flags.logLevel)
	if err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", flags.logLevel, err)
	}
	logrus.SetLevel(level)

	cfg, err := config.Load(flags.configFile)
	if err != nil {
		return err
	}
	loadedConfig = cfg
	if loadedConfig.LogLevel != "" && flags.configFile != "" {
		if cfgLevel, err := logrus.ParseLevel(loadedConfig.LogLevel); err == nil {
			logrus.SetLevel(cfgLevel)
		}
	}

	apiKey := loadedConfig.AirbrakeDSN
	if env := os.Getenv("MDANALYZE_AIRBRAKE_API_KEY"); env != "" {
		apiKey = env
	}
	if projectID := os.Getenv("MDANALYZE_AIRBRAKE_PROJECT_ID"); projectID != "" && apiKey != "" {
		id, err := strconv.ParseInt(projectID, 10, 64)
		if err == nil {
			hook := airbrake.NewHook(id, apiKey, "production")
			logrus.AddHook(hook)
		}
	}

	if flags.profile {
		stopProfile = profile.Start(profile.CPUProfile).Stop
	}

	return nil
}

func teardown() {
	if stopProfile != nil {
		stopProfile()
	}
}

// colorWriter returns os.Stdout wrapped for ANSI coloring when the
// terminal supports it and --no-color was not passed, mirroring the
// teacher's go-colorable/go-isatty terminal-detection idiom.
func colorWriter() io.Writer {
	if flags.noColor || !isatty.IsTerminal(os.Stdout.Fd()) {
		return os.Stdout
	}
	return colorable.NewColorableStdout()
}
