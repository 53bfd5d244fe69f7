package main

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/jloutsch/minidumptruck/cmd/mdanalyze/cmds"
	"github.com/jloutsch/minidumptruck/pkg/version"
)

// Build is the git sha of this binary's build, set via -ldflags.
var Build string

func main() {
	if Build != "" {
		version.Current.Build = Build
	}

	if err := cmds.New().Execute(); err != nil {
		logrus.WithFields(logrus.Fields{"layer": "mdanalyze"}).Error(err)
		os.Exit(1)
	}
}
