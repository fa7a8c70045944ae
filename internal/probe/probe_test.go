package probe

import (
	"net"
	"testing"
	"time"
)

func TestCanConnectSuccess(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	if !CanConnect("127.0.0.1", addr.Port, time.Second) {
		t.Fatalf("expected CanConnect to succeed against %v", addr)
	}
}

func TestCanConnectFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close() // nothing listens here now

	if CanConnect("127.0.0.1", port, 200*time.Millisecond) {
		t.Fatalf("expected CanConnect to fail against closed port %d", port)
	}
}

func TestCanConnectNeverPanics(t *testing.T) {
	if CanConnect("not-an-ip", 80, 50*time.Millisecond) {
		t.Fatalf("expected CanConnect to fail for an unresolvable host")
	}
}
