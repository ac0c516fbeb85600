/*
Package capture implements the event capture sinks wrappers report to.

Queue serializes pushes from any number of wrapper goroutines into one totally
ordered stream consumed by a single reader. Fanout forwards one wrapper output
to several consumers (the live pattern engine, a trace recorder, a debugging
log) without the wrappers knowing which consumers exist.
*/
package capture
