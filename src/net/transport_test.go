package net

import (
	"reflect"
	"testing"
	"time"

	"github.com/cormoran/zmk-module-settings-rpc/src/common"
)

func TestNetworkTransportChange(t *testing.T) {
	logger := common.NewTestLogger(t).WithField("test", t.Name())

	trans1, err := NewTCPTransport("127.0.0.1:0", 2, time.Second, logger)
	if err != nil {
		t.Fatal(err)
	}
	defer trans1.Close()
	go trans1.Listen()

	args := ChangeRequest{IdleMs: 500, SleepMs: 1800000, Source: 1}
	expected := ChangeResponse{Success: true}

	go func() {
		rpc := <-trans1.Consumer()
		req, ok := rpc.Command.(*ChangeRequest)
		if !ok || !reflect.DeepEqual(*req, args) {
			t.Errorf("command mismatch: %+v", rpc.Command)
		}
		rpc.Respond(&expected, nil)
	}()

	trans2, err := NewTCPTransport("127.0.0.1:0", 2, time.Second, logger)
	if err != nil {
		t.Fatal(err)
	}
	defer trans2.Close()

	var resp ChangeResponse
	if err := trans2.Change(trans1.LocalAddr(), &args, &resp); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(resp, expected) {
		t.Fatalf("response mismatch: %+v", resp)
	}
}

func TestNetworkTransportCollectReport(t *testing.T) {
	logger := common.NewTestLogger(t).WithField("test", t.Name())

	trans1, err := NewTCPTransport("127.0.0.1:0", 2, time.Second, logger)
	if err != nil {
		t.Fatal(err)
	}
	defer trans1.Close()
	go trans1.Listen()

	go func() {
		for i := 0; i < 2; i++ {
			rpc := <-trans1.Consumer()
			switch cmd := rpc.Command.(type) {
			case *CollectRequest:
				if cmd.RequestID != 7 {
					t.Errorf("request id %d, want 7", cmd.RequestID)
				}
				rpc.Respond(&CollectResponse{Success: true}, nil)
			case *ReportRequest:
				if cmd.Source != 2 || cmd.RequestID != 7 {
					t.Errorf("unexpected report %+v", cmd)
				}
				rpc.Respond(&ReportResponse{Success: true}, nil)
			default:
				t.Errorf("unexpected command type %T", cmd)
				rpc.Respond(nil, nil)
			}
		}
	}()

	trans2, err := NewTCPTransport("127.0.0.1:0", 2, time.Second, logger)
	if err != nil {
		t.Fatal(err)
	}
	defer trans2.Close()

	var collectResp CollectResponse
	if err := trans2.Collect(trans1.LocalAddr(), &CollectRequest{RequestID: 7}, &collectResp); err != nil {
		t.Fatal(err)
	}
	if !collectResp.Success {
		t.Fatal("collect not acked")
	}

	var reportResp ReportResponse
	args := ReportRequest{IdleMs: 100, SleepMs: 200, Source: 2, RequestID: 7}
	if err := trans2.Report(trans1.LocalAddr(), &args, &reportResp); err != nil {
		t.Fatal(err)
	}
	if !reportResp.Success {
		t.Fatal("report not acked")
	}
}

func TestNetworkTransportPooledConn(t *testing.T) {
	logger := common.NewTestLogger(t).WithField("test", t.Name())

	trans1, err := NewTCPTransport("127.0.0.1:0", 2, time.Second, logger)
	if err != nil {
		t.Fatal(err)
	}
	defer trans1.Close()
	go trans1.Listen()

	go func() {
		for {
			select {
			case rpc := <-trans1.Consumer():
				rpc.Respond(&ChangeResponse{Success: true}, nil)
			case <-trans1.shutdownCh:
				return
			}
		}
	}()

	trans2, err := NewTCPTransport("127.0.0.1:0", 2, time.Second, logger)
	if err != nil {
		t.Fatal(err)
	}
	defer trans2.Close()

	// Repeated calls reuse the pooled connection.
	args := ChangeRequest{IdleMs: 1, SleepMs: 2, Source: 1}
	for i := 0; i < 5; i++ {
		var resp ChangeResponse
		if err := trans2.Change(trans1.LocalAddr(), &args, &resp); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
}

func TestInmemTransport(t *testing.T) {
	addr1, trans1 := NewInmemTransport("")
	defer trans1.Close()
	addr2, trans2 := NewInmemTransport("")
	defer trans2.Close()

	trans1.Connect(addr2, trans2)
	trans2.Connect(addr1, trans1)

	go func() {
		rpc := <-trans2.Consumer()
		rpc.Respond(&ChangeResponse{Success: true}, nil)
	}()

	var resp ChangeResponse
	args := ChangeRequest{IdleMs: 500, SleepMs: 1800000, Source: 0}
	if err := trans1.Change(addr2, &args, &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Success {
		t.Fatal("change not acked")
	}
}

func TestInmemTransportUnknownPeer(t *testing.T) {
	_, trans := NewInmemTransport("")
	defer trans.Close()

	var resp ChangeResponse
	if err := trans.Change("nobody", &ChangeRequest{}, &resp); err == nil {
		t.Fatal("expected send to unknown peer to fail")
	}
}

func TestInmemTransportLateRespond(t *testing.T) {
	_, trans1 := NewInmemTransport("")
	defer trans1.Close()
	addr2, trans2 := NewInmemTransport("")
	defer trans2.Close()

	trans1.Connect(addr2, trans2)

	// Nobody consumes on trans2 yet, so the sender enqueues the message and
	// then gives up waiting for the response.
	var resp ReportResponse
	args := ReportRequest{IdleMs: 100, SleepMs: 200, Source: 1, RequestID: 3}
	if err := trans1.Report(addr2, &args, &resp); err == nil {
		t.Fatal("expected the unconsumed call to time out")
	}

	// The message is still in trans2's queue. Acking it now, after the
	// sender is gone, must not block the consumer.
	rpc := <-trans2.Consumer()

	done := make(chan struct{})
	go func() {
		rpc.Respond(&ReportResponse{Success: true}, nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("ack after sender timeout blocked; a dispatch loop calling Respond would wedge")
	}
}

func TestInmemTransportDisconnect(t *testing.T) {
	_, trans1 := NewInmemTransport("")
	defer trans1.Close()
	addr2, trans2 := NewInmemTransport("")
	defer trans2.Close()

	trans1.Connect(addr2, trans2)
	trans1.Disconnect(addr2)

	var resp ChangeResponse
	if err := trans1.Change(addr2, &ChangeRequest{}, &resp); err == nil {
		t.Fatal("expected send after disconnect to fail")
	}
}
