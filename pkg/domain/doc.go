/*
Package domain contains the core domain models of the interop conformance tester.

It defines the architecture under test (Components and their Interfaces), the
normalized Events observed at interception points, the Pattern state machine
(States, Transitions, Guards, Actions) and the conformance Report. This package
is kept pure and free of I/O, networking and persistence, following Hexagonal
Architecture principles.

# Key Entities

  - Component: A participating service (identity, address, interfaces).
  - Interface: A protocol endpoint owned by a Component, observed by one wrapper.
  - Event: An immutable record of one observed request, response or transport fault.
  - Pattern: The finite-state model of the expected message exchange.
  - Report: The structured result of a run (outcome, path, bindings, exceptions).
  - Trace: An ordered, replayable log of Events.
*/
package domain
