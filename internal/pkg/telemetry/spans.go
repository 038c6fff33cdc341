package telemetry

// Span names.
const (
	SpanSelect         = "surface.select"
	SpanClear          = "surface.clear"
	SpanSwitchProvider = "surface.switch_provider"
	SpanFetchBatch     = "payload.fetch_batch"
	SpanFetchPayload   = "payload.fetch"
)
