package runner

import (
	"fmt"
	"net"
)

// FreePort returns the first port in [start, start+scan) that can be bound on
// all interfaces. The listener is released immediately, so the result is
// advisory.
func FreePort(start, scan int) (int, error) {
	for port := start; port < start+scan; port++ {
		l, err := net.Listen("tcp", fmt.Sprintf("0.0.0.0:%d", port))
		if err != nil {
			continue
		}
		_ = l.Close()
		return port, nil
	}
	return 0, fmt.Errorf("no free port in range %d-%d", start, start+scan-1)
}
