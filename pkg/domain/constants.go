package domain

// Field constants for mapstructure and JSON standardization.
const (
	// KeyCorrelation is the header injected into intercepted requests so the
	// request and response events of one exchange share a correlation id.
	KeyCorrelation = "X-Interop-Correlation-Id"

	// WholeDocument is the reserved path expression that addresses the entire
	// raw document instead of a sub-element.
	WholeDocument = "*"
)
