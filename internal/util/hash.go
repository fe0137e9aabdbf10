// Package util holds the logger, traffic counters and small helpers shared
// by the session and the front-end.
package util

import (
	"fmt"
	"hash/fnv"
	"net"
)

// PeerTag derives a short id for a peer connection from its address pair,
// so log lines of one match can be told apart from the next.
func PeerTag(conn net.Conn) uint32 {
	h := fnv.New32a()
	fmt.Fprintf(h, "%s>%s", conn.LocalAddr(), conn.RemoteAddr())
	return h.Sum32()
}
