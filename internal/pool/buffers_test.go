package pool

import (
	"testing"

	"github.com/miekg/dns"
)

func TestMessagePool(t *testing.T) {
	// Get message
	msg := GetMessage()
	if msg == nil {
		t.Fatal("GetMessage() returned nil")
	}

	// Use it
	msg.Id = 0x1234
	msg.SetQuestion("example.com.", dns.TypeA)

	// Return it
	PutMessage(msg)

	// Get again - should be reset
	msg2 := GetMessage()
	if msg2.Id != 0 {
		t.Errorf("message not reset: Id = %d, want 0", msg2.Id)
	}
	if len(msg2.Question) != 0 {
		t.Errorf("message not reset: Question len = %d, want 0", len(msg2.Question))
	}
}

func TestPutMessage_Nil(t *testing.T) {
	// Should not panic
	PutMessage(nil)
}

func TestResetPools(t *testing.T) {
	// Get some objects
	msg := GetMessage()

	// Reset pools
	ResetPools()

	// Should still work
	msg2 := GetMessage()
	if msg2 == nil {
		t.Error("GetMessage() failed after ResetPools")
	}

	// Clean up
	PutMessage(msg)
	PutMessage(msg2)
}

func TestMessageReset(t *testing.T) {
	msg := GetMessage()

	// Set all fields
	msg.Id = 0x1234
	msg.Response = true
	msg.Opcode = dns.OpcodeQuery
	msg.Authoritative = true
	msg.Truncated = true
	msg.RecursionDesired = true
	msg.RecursionAvailable = true
	msg.AuthenticatedData = true
	msg.CheckingDisabled = true
	msg.Rcode = dns.RcodeServerFailure

	msg.Question = append(msg.Question, dns.Question{
		Name:   "example.com.",
		Qtype:  dns.TypeA,
		Qclass: dns.ClassINET,
	})

	// Return to pool (should reset)
	PutMessage(msg)

	// Get again
	msg2 := GetMessage()

	// Verify all fields are reset
	if msg2.Id != 0 {
		t.Errorf("Id not reset: got %d", msg2.Id)
	}
	if msg2.Response {
		t.Error("Response not reset")
	}
	if msg2.Opcode != 0 {
		t.Error("Opcode not reset")
	}
	if msg2.Authoritative {
		t.Error("Authoritative not reset")
	}
	if msg2.Truncated {
		t.Error("Truncated not reset")
	}
	if msg2.RecursionDesired {
		t.Error("RecursionDesired not reset")
	}
	if msg2.RecursionAvailable {
		t.Error("RecursionAvailable not reset")
	}
	if msg2.AuthenticatedData {
		t.Error("AuthenticatedData not reset")
	}
	if msg2.CheckingDisabled {
		t.Error("CheckingDisabled not reset")
	}
	if msg2.Rcode != 0 {
		t.Errorf("Rcode not reset: got %d", msg2.Rcode)
	}
	if len(msg2.Question) != 0 {
		t.Errorf("Question not reset: len = %d", len(msg2.Question))
	}

	PutMessage(msg2)
}

// Benchmark message pool
func BenchmarkMessagePool(b *testing.B) {
	for i := 0; i < b.N; i++ {
		msg := GetMessage()
		msg.SetQuestion("example.com.", dns.TypeA)
		PutMessage(msg)
	}
}

// Benchmark without pool (for comparison)
func BenchmarkMessageNew(b *testing.B) {
	for i := 0; i < b.N; i++ {
		msg := new(dns.Msg)
		msg.SetQuestion("example.com.", dns.TypeA)
	}
}
