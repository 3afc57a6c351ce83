package net

// Transport provides an interface for the links between split nodes. Delivery
// is at-most-once per hop: a send that times out or hits a dead link returns
// an error and is never retried by this layer.
type Transport interface {

	// Listen starts the transport listening.
	Listen()

	// Consumer returns a channel that can be used to consume and respond to
	// incoming messages.
	Consumer() <-chan RPC

	// LocalAddr is used to return our local address.
	LocalAddr() string

	// Change, Collect, and Report send the corresponding message to the
	// target node.

	Change(target string, args *ChangeRequest, resp *ChangeResponse) error

	Collect(target string, args *CollectRequest, resp *CollectResponse) error

	Report(target string, args *ReportRequest, resp *ReportResponse) error

	// Close permanently closes a transport, stopping any associated
	// goroutines and freeing other resources.
	Close() error
}
