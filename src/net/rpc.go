package net

// RPCResponse pairs a response with a potential error.
type RPCResponse struct {
	Response interface{}
	Error    error
}

// RPC is one inbound command with its response channel.
type RPC struct {
	Command  interface{}
	RespChan chan<- RPCResponse
}

// Respond answers the RPC with a response, an error, or both.
func (r *RPC) Respond(resp interface{}, err error) {
	r.RespChan <- RPCResponse{resp, err}
}
