// Package architecture builds the architecture under test from its declared
// components and owns the lifecycle of every interface wrapper.
package architecture
