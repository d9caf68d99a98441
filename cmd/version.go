package cmd

import (
	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the siteaudit version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Println("siteaudit", Version)
		},
	}
}
