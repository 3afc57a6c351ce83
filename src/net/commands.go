package net

// The inter-node wire contract consists of three message kinds. The Source
// field is always a concrete node index by the time a message is transmitted;
// the relay fabric rewrites the self sentinel before handing a message to the
// transport.

// ChangeRequest propagates a settings change to the other role. Central sends
// it to every peripheral; a peripheral sends it to central.
type ChangeRequest struct {
	IdleMs  uint32
	SleepMs uint32
	Source  uint8
}

// ChangeResponse acknowledges a ChangeRequest. Delivery is best-effort: the
// sender ignores a missing or failed ack.
type ChangeResponse struct {
	Success bool
}

// CollectRequest asks a peripheral to report its current settings. The ID has
// no ordering semantics beyond matching reports to a collection round.
type CollectRequest struct {
	RequestID uint8
}

// CollectResponse acknowledges a CollectRequest. The settings themselves
// arrive later as a separate ReportRequest, not in this response.
type CollectResponse struct {
	Success bool
}

// ReportRequest carries a node's settings back to central in answer to a
// CollectRequest.
type ReportRequest struct {
	IdleMs    uint32
	SleepMs   uint32
	Source    uint8
	RequestID uint8
}

// ReportResponse acknowledges a ReportRequest.
type ReportResponse struct {
	Success bool
}
