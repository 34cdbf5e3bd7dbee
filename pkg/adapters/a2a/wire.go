package a2a

import "encoding/json"

// Part is one fragment of a protocol message. Only text parts are produced
// here, but unknown kinds round-trip through the raw JSON untouched.
type Part struct {
	Kind string `json:"kind"`
	Text string `json:"text,omitempty"`
}

// ProtocolMessage is the message object carried by message/send in both
// directions.
type ProtocolMessage struct {
	Role      string `json:"role"`
	Parts     []Part `json:"parts"`
	MessageID string `json:"messageId"`
}

type sendParams struct {
	Message ProtocolMessage `json:"message"`
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcIncoming struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// JSON-RPC error codes used on the serving surface.
const (
	codeInvalidRequest       = -32600
	codeMethodNotFound       = -32601
	codeInternalError        = -32603
	codeUnsupportedOperation = -32004
)
