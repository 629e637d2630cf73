// Package domain contains the core domain entities and value objects for
// canpulse.
//
// This package represents the innermost layer of the architecture. It has
// no dependencies on infrastructure concerns (SocketCAN, MQTT, file system,
// logging) and contains only pure types and business rules.
//
// # Entities
//
//   - [Message]: schema for all frames sharing one CAN identifier
//   - [Signal]: a named bit-packed field within a message
//   - [SignalValues]: a complete signal-name to value mapping for one message
//   - [Frame]: a single unit of raw bus traffic
//   - [DecodedFrame]: a frame resolved into named signal values
//
// # Design Principles
//
// Domain entities are:
//   - Immutable after construction (where practical)
//   - Free of infrastructure dependencies
//   - Testable without mocks or external systems
package domain
