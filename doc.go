// Package manifold runs a language-model-driven agent over a federated tool
// set. Tools come from MCP servers reached over stdio, SSE, or streamable
// HTTP, from remote peer agents speaking the A2A protocol, or from local
// in-process capabilities; all of them are merged into one conflict-checked
// catalog presented to the model on every call.
//
// The smallest useful agent:
//
//	agent, err := manifold.New(ctx,
//		manifold.WithOpenAI(openai.Config{APIKey: key, Model: "gpt-4o"}),
//		manifold.WithStdioServer("manifold", "mcp-server"),
//		manifold.WithSystemMessage("You are a helpful assistant."),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer agent.Close()
//
//	history, err := agent.Invoke(ctx, []domain.Message{
//		domain.UserMessage("Greet Alice"),
//	})
//
// Providers that fail to connect are logged and skipped rather than failing
// the whole agent; a provider whose tool names collide with already-federated
// ones is rejected wholesale. See pkg/federation for the exact rules.
package manifold
