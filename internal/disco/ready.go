package disco

import (
	"fmt"
	"net"
)

// NotifyReady sends the ready message to master and closes conn. The socket
// is closed even if the write fails.
func NotifyReady(conn net.PacketConn, master net.Addr) error {
	_, werr := conn.WriteTo([]byte(ReadyMessage), master)
	cerr := conn.Close()
	if werr != nil {
		return fmt.Errorf("failed to send ready to %s: %w", master, werr)
	}
	if cerr != nil {
		return fmt.Errorf("failed to close discovery socket: %w", cerr)
	}
	return nil
}
