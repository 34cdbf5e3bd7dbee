/*
Package ports defines the driven ports (interfaces) for the Manifold runtime.

These interfaces decouple the agent loop and the federation from concrete
transports and model backends, allowing the core to work with MCP servers,
peer agents, or in-memory fakes interchangeably.

# Key Interfaces

  - Provider: one connection to an external source of tools (subprocess,
    SSE endpoint, streamable-HTTP endpoint, or peer-agent pool).
  - ChatClient: the external language model, stateless per call.
*/
package ports
