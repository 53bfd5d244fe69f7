package cmds

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStreamsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "streams <dump>",
		Short: "List the stream directory entries of a minidump",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dump, err := loadDump(args[0])
			if err != nil {
				return err
			}
			w := colorWriter()
			fmt.Fprintf(w, "%-22s %10s %12s\n", "TYPE", "SIZE", "RVA")
			for _, entry := range dump.Directory {
				fmt.Fprintf(w, "%-22s %10d 0x%010x\n", entry.Type, entry.Size, entry.RVA)
			}
			return nil
		},
	}
}
