// Package probe implements the single health-check primitive: a TCP
// connect attempt used as a liveness proxy for a configured (ip, port).
package probe

import (
	"fmt"
	"net"
	"time"
)

// CanConnect attempts a TCP connection to ip:port within timeout. Any
// failure — timeout, refusal, unreachable host, resolution failure — yields
// false. It never returns an error; callers treat a failed probe as
// "unhealthy", not as an exceptional condition.
func CanConnect(ip string, port int, timeout time.Duration) bool {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.Dial("tcp", fmt.Sprintf("%s:%d", ip, port))
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
