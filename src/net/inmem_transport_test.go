package net

import (
	"bytes"
	"testing"
	"time"
)

func waitEvent(t *testing.T, trans Transport) Event {
	select {
	case ev := <-trans.Consumer():
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for transport event")
		return nil
	}
}

func TestInmemTransportSend(t *testing.T) {
	addr1, trans1 := NewInmemTransport("")
	addr2, trans2 := NewInmemTransport("")
	defer trans1.Close()
	defer trans2.Close()

	trans1.Connect(addr2, trans2)

	if err := trans1.Send(addr2, []byte("hello")); err != nil {
		t.Fatal(err)
	}

	ev := waitEvent(t, trans2)
	msg, ok := ev.(MessageEvent)
	if !ok {
		t.Fatalf("expected MessageEvent. Got %T", ev)
	}
	if msg.From != addr1 {
		t.Fatalf("From should be the sender's address. Got %s", msg.From)
	}
	if !bytes.Equal(msg.Payload, []byte("hello")) {
		t.Fatalf("payload mismatch: %q", msg.Payload)
	}
}

func TestInmemTransportSendUnknownPeer(t *testing.T) {
	_, trans := NewInmemTransport("")
	defer trans.Close()

	if err := trans.Send("nowhere", []byte("hello")); err == nil {
		t.Fatal("send to an unconnected peer should fail")
	}
}

func TestInmemTransportDisconnect(t *testing.T) {
	_, trans1 := NewInmemTransport("")
	addr2, trans2 := NewInmemTransport("")
	defer trans1.Close()
	defer trans2.Close()

	trans1.Connect(addr2, trans2)
	trans1.Disconnect(addr2)

	ev := waitEvent(t, trans1)
	disc, ok := ev.(DisconnectedEvent)
	if !ok {
		t.Fatalf("expected DisconnectedEvent. Got %T", ev)
	}
	if disc.Addr != addr2 {
		t.Fatalf("Addr should be the lost peer. Got %s", disc.Addr)
	}

	if err := trans1.Send(addr2, []byte("hello")); err == nil {
		t.Fatal("send after disconnect should fail")
	}

	// Disconnecting an unknown peer emits nothing.
	trans1.Disconnect("nowhere")
	select {
	case ev := <-trans1.Consumer():
		t.Fatalf("unexpected event: %T", ev)
	case <-time.After(50 * time.Millisecond):
	}
}
