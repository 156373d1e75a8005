// Package protocol decodes Thrift RPC messages from raw TCP payload bytes.
//
// Ownership boundary:
// - transport envelope stripping (delegated to frame)
// - protocol detection (Binary / Compact)
// - message header decoding
// - recursive field/value decoding
//
// The package is pure: no I/O, no logging, no shared state. Every Decode
// call owns its cursor, so callers may decode many payloads in parallel.
package protocol
