package net

import (
	"net"
	"sync"
	"testing"
)

var (
	mu        sync.Mutex
	usedPorts = map[int]struct{}{}
)

/*
GetFreeRandomPort returns TCP port on localhost which is currently free and
hasn't been returned to any other test of the process.
*/
func GetFreeRandomPort(t testing.TB) int {
	t.Helper()
	mu.Lock()
	defer mu.Unlock()

	for {
		l, err := net.Listen("tcp", "localhost:0")
		if err != nil {
			t.Fatalf("listening on random port: %v", err)
		}
		port := l.Addr().(*net.TCPAddr).Port
		if err := l.Close(); err != nil {
			t.Fatalf("closing listener: %v", err)
		}
		if _, ok := usedPorts[port]; !ok {
			usedPorts[port] = struct{}{}
			return port
		}
	}
}
