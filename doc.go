/*
Package interop checks that a set of REST services talks to each other the way
an interaction pattern says it should.

A specification document declares the participating components, the interfaces
they expose and a finite-state pattern of the expected message exchange. During
a capture, every interface is wrapped by an HTTP endpoint that either forwards
traffic to the real service (intercept mode) or answers in its place (stub
mode). Each observed request and response becomes an Event in one ordered
stream, which drives the pattern state machine and can be recorded as a trace.
A stored trace can be replayed later, offline, against the same or a revised
pattern.

# Usage

	eng, err := interop.Load("order-flow.yaml",
		interop.WithTraceStore(file.New(".interop/traces")),
	)
	if err != nil {
		log.Fatal(err)
	}

	// Live: deploy the wrappers and evaluate traffic as it arrives.
	session, err := eng.Capture(ctx)
	if err != nil {
		log.Fatal(err)
	}
	for id, url := range session.URLs() {
		log.Printf("%s listening on %s", id, url)
	}
	report, err := session.Run(ctx)
	traceID, _ := session.StoreTrace(ctx)
	session.Close(ctx)

	// Offline: replay the stored trace.
	report, err = eng.Execute(ctx, traceID)

The Report tells whether the exchange reached an accepting state, the path
taken through the pattern, the variables bound along the way and every
unexpected event or transport exception observed.
*/
package interop
