/*
Package domain contains the core domain models for the Manifold agent runtime.

It defines the conversation entities (Message, ToolCall), the tool namespace
entities (Descriptor, ToolDefinition), and the error taxonomy shared by the
federation, the agent loop, and the transport adapters. This package is kept
pure and free of external dependencies like I/O or transports, following
Hexagonal Architecture principles.

# Key Entities

  - Message: one entry in a conversation history (system, user, assistant, tool).
  - ToolCall: a single tool invocation requested by the model, with its
    correlation id and raw JSON arguments.
  - Descriptor: a named, schema-described capability the model may invoke.
  - ToolDefinition: the wire-level schema presented to the model.
*/
package domain
