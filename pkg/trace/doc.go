/*
Package trace records the ordered event stream of a capture session and
replays it later, offline.

A Recorder is an ports.EventSink: it is registered next to the live consumer
in a capture.Fanout and keeps every event in arrival order. Nothing is durable
until StoreTrace persists the log through a ports.TraceStore.

A Replayer loads a stored trace and re-emits its events, in their original
order and as fast as possible, into any sink. Interface ids can be remapped
so a trace captured against one deployment drives a structurally identical
pattern declared with different ids.
*/
package trace
