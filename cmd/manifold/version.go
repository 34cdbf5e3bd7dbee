package main

import (
	"fmt"
	"strings"

	"github.com/manifold-agent/manifold"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of manifold",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("manifold version %s\n", strings.TrimSpace(manifold.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
