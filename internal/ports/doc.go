// Package ports defines the interfaces (ports) that connect the application
// layer to infrastructure adapters.
//
// Ports are the boundaries between the application core and the outside
// world. They define what the core needs from external systems without
// specifying how those needs are fulfilled.
//
// # Port Interfaces
//
//   - [SignalDatabase]: Message descriptor lookup and raw encode/decode
//   - [Transport]: Send and receive of raw frames on the bus
//
// # Usage
//
// The application layer (internal/app, internal/codec) depends only on
// these interfaces. Infrastructure adapters (internal/adapters) implement
// them with concrete implementations (DBC file database, SocketCAN, MQTT).
//
// This separation enables:
//   - Testing the loops and codec with mock implementations
//   - Swapping the bus transport without changing decode or dispatch logic
package ports
