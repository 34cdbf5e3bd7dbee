package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the federated tool catalog",
	Long:  `Connects every configured provider and prints the resulting tool names in catalog order.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		agent, _, err := buildAgent(cmd)
		if err != nil {
			return err
		}
		defer agent.Close()

		names := agent.Tools()
		if len(names) == 0 {
			fmt.Println("No tools federated.")
			return nil
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(toolsCmd)
}
