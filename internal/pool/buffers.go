package pool

import (
	"sync"

	"github.com/miekg/dns"
)

// MessagePool reduces GC pressure on the UDP query handler's hot path by
// reusing dns.Msg values across requests instead of allocating one per
// query/response pair.
var MessagePool = sync.Pool{
	New: func() interface{} {
		return new(dns.Msg)
	},
}

// GetMessage gets a message from the pool
func GetMessage() *dns.Msg {
	return MessagePool.Get().(*dns.Msg)
}

// PutMessage returns a message to the pool
// IMPORTANT: Message is reset before returning to pool
func PutMessage(msg *dns.Msg) {
	if msg == nil {
		return
	}

	// Reset the message to prevent data leakage
	// This is critical for security - don't skip this!
	msg.Id = 0
	msg.Response = false
	msg.Opcode = 0
	msg.Authoritative = false
	msg.Truncated = false
	msg.RecursionDesired = false
	msg.RecursionAvailable = false
	msg.Zero = false
	msg.AuthenticatedData = false
	msg.CheckingDisabled = false
	msg.Rcode = 0

	// Clear slices but keep capacity
	msg.Question = msg.Question[:0]
	msg.Answer = msg.Answer[:0]
	msg.Ns = msg.Ns[:0]
	msg.Extra = msg.Extra[:0]

	MessagePool.Put(msg)
}

// ResetPools clears the message pool (useful for testing or memory pressure)
func ResetPools() {
	MessagePool = sync.Pool{
		New: func() interface{} {
			return new(dns.Msg)
		},
	}
}
