/*
Package ports defines the driven ports (interfaces) of the interop conformance tester.

These interfaces decouple the pattern engine and the wrappers from concrete
transports and storage backends.

# Key Interfaces

  - EventSink: Receives the events and exceptions observed by wrappers.
  - EventSource: Delivers an ordered event stream to the pattern engine.
  - Emitter: Sends messages synthesized by pattern actions into the architecture.
  - TraceStore: Persists and loads recorded traces for offline replay.
*/
package ports
