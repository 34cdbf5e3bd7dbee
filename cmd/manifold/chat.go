package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/manifold-agent/manifold/pkg/domain"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat with the agent",
	Long: `Runs a terminal chat over the configured agent. Assistant replies are
rendered as markdown; tool activity is shown dimmed between turns.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		agent, _, err := buildAgent(cmd)
		if err != nil {
			return err
		}
		defer agent.Close()

		renderer, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(100),
		)
		if err != nil {
			return fmt.Errorf("build renderer: %w", err)
		}
		output := termenv.NewOutput(os.Stdout)

		fmt.Printf("Federated tools: %s\n", strings.Join(agent.Tools(), ", "))
		fmt.Println("Type a message, or 'exit' to quit.")

		var history []domain.Message
		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Print("\nyou> ")
			if !scanner.Scan() {
				break
			}
			input := strings.TrimSpace(scanner.Text())
			if input == "" {
				continue
			}
			if input == "exit" || input == "quit" {
				break
			}

			asked := append(history, domain.UserMessage(input))
			next, err := agent.Invoke(cmd.Context(), asked)
			if err != nil {
				// The loop returns the history accumulated so far even on
				// failure (round limit included); keep it so the
				// conversation survives the error.
				fmt.Fprintf(os.Stderr, "turn failed: %v\n", err)
			}

			var turn []domain.Message
			history, turn = advanceHistory(asked, next)
			printTurn(output, renderer, turn)
		}
		return scanner.Err()
	},
}

// advanceHistory merges one turn's outcome: asked is the history as sent
// (user message included), next is what Invoke returned. It yields the
// history to carry forward and the newly appended messages to render.
func advanceHistory(asked, next []domain.Message) (history, turn []domain.Message) {
	if len(next) < len(asked) {
		return asked, nil
	}
	return next, next[len(asked):]
}

// printTurn renders the messages appended during one turn: tool activity
// dimmed, the final assistant text as markdown.
func printTurn(output *termenv.Output, renderer *glamour.TermRenderer, turn []domain.Message) {
	for _, m := range turn {
		switch m.Role {
		case domain.RoleAssistant:
			for _, call := range m.ToolCalls {
				fmt.Println(output.String(fmt.Sprintf("⚙ %s(%s)", call.Name, call.Arguments)).Faint())
			}
			if m.Content != "" {
				rendered, err := renderer.Render(m.Content)
				if err != nil {
					fmt.Println(m.Content)
					continue
				}
				fmt.Print(rendered)
			}
		case domain.RoleTool:
			fmt.Println(output.String("  → " + m.Content).Faint())
		}
	}
}

func init() {
	rootCmd.AddCommand(chatCmd)
}
