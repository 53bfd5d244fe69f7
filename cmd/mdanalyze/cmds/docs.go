package cmds

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	md2man "github.com/cpuguy83/go-md2man/md2man"
	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"
)

func newDocsCmd() *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:    "docs",
		Short:  "Regenerate man pages for the mdanalyze command tree",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return genDocs(cmd.Root(), outDir)
		},
	}

	cmd.Flags().StringVar(&outDir, "out", "./Documentation/cli", "directory to write generated man pages into")
	return cmd
}

// genDocs mirrors scripts/gen-cli-docs.go: generate markdown via
// cobra/doc, then render each page to troff with go-md2man, the pack's
// combination for command-tree documentation.
func genDocs(root *cobra.Command, outDir string) error {
	mdDir := filepath.Join(outDir, "markdown")
	if err := os.MkdirAll(mdDir, 0o755); err != nil {
		return err
	}
	if err := doc.GenMarkdownTree(root, mdDir); err != nil {
		return err
	}

	entries, err := ioutil.ReadDir(mdDir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		src := filepath.Join(mdDir, entry.Name())
		raw, err := ioutil.ReadFile(src)
		if err != nil {
			return err
		}
		manPage := md2man.Render(raw)
		dst := filepath.Join(outDir, strings.TrimSuffix(entry.Name(), ".md")+".1")
		if err := ioutil.WriteFile(dst, manPage, 0o644); err != nil {
			return err
		}
	}
	return nil
}
