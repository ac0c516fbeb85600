/*
Package wrapper deploys interception endpoints for declared interfaces.

A wrapper binds its own listener and serves requests on its own goroutine, so
one slow interface never blocks another. Every request and response it sees is
normalized into a domain.Event and pushed to the bound sink exactly once; every
transport fault goes through the sink's exception path.

The deployment mode is fixed when the wrapper is deployed:

  - domain.ModeIntercept forwards traffic to the component's real address and
    records both legs of the exchange.
  - domain.ModeStub emulates the component: requests wait for a reply supplied
    through Handle.Reply (usually by a pattern action) and fall back to a
    default status when none arrives in time.

Release is idempotent and safe to call concurrently, on a nil Handle, or on a
Handle whose deployment never completed.
*/
package wrapper
