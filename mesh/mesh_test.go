//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package mesh

import (
	"fmt"
	"net"
	"testing"

	"github.com/rivergate/mpcvm/p2p"
)

// freePort asks the OS for an unused TCP port on localhost.
func freePort(t *testing.T) string {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	_, port, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	return port
}

// TestEstablishFullMesh reproduces the E6 scenario: three workers
// bootstrap a fully-connected mesh, then every ordered pair exchanges a
// sentinel byte across its channel.
func TestEstablishFullMesh(t *testing.T) {
	const n = 3
	workers := make([]Worker, n)
	for i := 0; i < n; i++ {
		workers[i] = Worker{ID: uint32(i), InternalHost: "127.0.0.1", InternalPort: freePort(t)}
	}

	type result struct {
		id       uint32
		channels map[uint32]*p2p.Conn
		err      error
	}
	results := make(chan result, n)
	for i := 0; i < n; i++ {
		go func(id uint32) {
			channels, err := Establish(id, workers)
			results <- result{id: id, channels: channels, err: err}
		}(uint32(i))
	}

	byID := make(map[uint32]map[uint32]*p2p.Conn, n)
	for i := 0; i < n; i++ {
		r := <-results
		if r.err != nil {
			t.Fatalf("worker %d: Establish: %v", r.id, r.err)
		}
		if len(r.channels) != n-1 {
			t.Fatalf("worker %d: got %d channels, expected %d", r.id, len(r.channels), n-1)
		}
		byID[r.id] = r.channels
	}

	for i := uint32(0); i < n; i++ {
		for j := uint32(0); j < n; j++ {
			if i == j {
				continue
			}
			conn, ok := byID[i][j]
			if !ok {
				t.Fatalf("worker %d has no channel to %d", i, j)
			}
			sentinel := byte(0x10*i + j)
			if err := conn.SendRaw([]byte{sentinel}); err != nil {
				t.Fatalf("worker %d->%d: SendRaw: %v", i, j, err)
			}
			if err := conn.Flush(); err != nil {
				t.Fatalf("worker %d->%d: Flush: %v", i, j, err)
			}
		}
	}

	for i := uint32(0); i < n; i++ {
		for j := uint32(0); j < n; j++ {
			if i == j {
				continue
			}
			// j reads the sentinel i sent on the channel shared with i.
			conn := byID[j][i]
			var buf [1]byte
			if err := conn.ReceiveRaw(buf[:]); err != nil {
				t.Fatalf("worker %d<-%d: ReceiveRaw: %v", j, i, err)
			}
			want := byte(0x10*i + j)
			if buf[0] != want {
				t.Errorf("worker %d<-%d: got sentinel %#x, expected %#x", j, i, buf[0], want)
			}
		}
	}

	for _, channels := range byID {
		for _, c := range channels {
			c.Close()
		}
	}
}

func TestEstablishSelfIDOutOfRange(t *testing.T) {
	workers := []Worker{{ID: 0, InternalHost: "127.0.0.1", InternalPort: "0"}}
	_, err := Establish(5, workers)
	if err == nil {
		t.Fatal("expected error for out-of-range self id")
	}
}

func TestEstablishMissingAddress(t *testing.T) {
	workers := []Worker{
		{ID: 0, InternalHost: "127.0.0.1", InternalPort: "0"},
		{ID: 1, InternalHost: "", InternalPort: ""},
	}
	_, err := Establish(0, workers)
	if err == nil {
		t.Fatal("expected error for worker missing internal host/port")
	}
}

func TestWorkerString(t *testing.T) {
	w := Worker{ID: 3}
	if got := w.String(); got == "" {
		t.Error("String() returned empty string")
	}
	_ = fmt.Sprintf("%s", w)
}
