//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.

// Package mesh implements the cluster bootstrap of §4.5: establishing
// a fully-connected mesh of authenticated byte-stream channels among
// worker nodes. It defines the ordering contract the half-gates peer
// channel rides on, but is itself transport-agnostic beyond plain TCP.
package mesh

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"sort"
	"syscall"
	"time"

	"github.com/markkurossi/text/superscript"
	"github.com/rivergate/mpcvm/p2p"
)

// MaxTries is the number of outbound connection attempts made to a
// lower-indexed peer before giving up.
const MaxTries = 20

// ConnectBackoff is the delay between outbound connection attempts
// after a connection-refused error.
const ConnectBackoff = 3000 * time.Millisecond

// dialTimeout bounds a single outbound connect attempt. Exceeding it is
// treated as a timeout, not a refused connection, and is immediately
// fatal for that peer per §4.5.
const dialTimeout = 5 * time.Second

// Worker describes one member of the cluster.
type Worker struct {
	ID           uint32
	InternalHost string
	InternalPort string
}

func (w Worker) addr() string {
	return net.JoinHostPort(w.InternalHost, w.InternalPort)
}

// String renders the worker id with a superscript marker, matching the
// teacher's bmr.Player.IDString() pretty-printing idiom.
func (w Worker) String() string {
	return fmt.Sprintf("worker%s", superscript.Itoa(int(w.ID)))
}

// connResult is posted by an outbound connector goroutine back to the
// coordinator. Using a channel rather than a shared array indexed by
// goroutine, per the §9 redesign note, removes the need for a join
// barrier beyond draining the channel.
type connResult struct {
	id   uint32
	conn net.Conn
	err  error
}

// Establish runs the cluster bootstrap algorithm of §4.5 and returns a
// channel table indexed by worker id, omitting selfID. It validates
// that selfID is in range and that every worker descriptor carries both
// an internal host and port before opening any socket.
func Establish(selfID uint32, workers []Worker) (map[uint32]*p2p.Conn, error) {
	if int(selfID) >= len(workers) {
		return nil, fmt.Errorf("mesh: self id %d out of range [0,%d)", selfID, len(workers))
	}
	for _, w := range workers {
		if w.InternalHost == "" || w.InternalPort == "" {
			return nil, fmt.Errorf("mesh: worker %d missing internal host/port", w.ID)
		}
	}

	n := len(workers)
	results := make(chan connResult, n)

	// Outbound: connect to every lower-indexed peer.
	for j := 0; j < int(selfID); j++ {
		go connectWorker(selfID, workers[j], results)
	}

	// Inbound: accept from every higher-indexed peer.
	listener, err := net.Listen("tcp", net.JoinHostPort("", workers[selfID].InternalPort))
	if err != nil {
		return nil, fmt.Errorf("mesh: listen on worker %d's internal port: %w", selfID, err)
	}
	defer listener.Close()

	expectInbound := n - int(selfID) - 1
	go acceptInbound(listener, selfID, uint32(n), expectInbound, results)

	sockets := make(map[uint32]net.Conn)
	expected := n - 1
	for i := 0; i < expected; i++ {
		r := <-results
		if r.err != nil {
			continue
		}
		sockets[r.id] = r.conn
	}

	if len(sockets) != expected {
		var missing []uint32
		for j := uint32(0); j < uint32(n); j++ {
			if j == selfID {
				continue
			}
			if _, ok := sockets[j]; !ok {
				missing = append(missing, j)
			}
		}
		sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
		for _, c := range sockets {
			c.Close()
		}
		return nil, fmt.Errorf("mesh: failed to establish channels to peers %v", missing)
	}

	channels := make(map[uint32]*p2p.Conn, expected)
	for id, c := range sockets {
		channels[id] = p2p.NewConn(c)
	}
	return channels, nil
}

// connectWorker repeatedly attempts an outbound connection to w,
// writing selfID as a native-endian uint32 on success, and posts the
// outcome to results. Connection-refused is retried with ConnectBackoff
// up to MaxTries; any other dial error (notably a timeout) is
// immediately fatal for this peer.
func connectWorker(selfID uint32, w Worker, results chan<- connResult) {
	var lastErr error
	for try := 0; try < MaxTries; try++ {
		conn, err := net.DialTimeout("tcp", w.addr(), dialTimeout)
		if err == nil {
			var hdr [4]byte
			binary.NativeEndian.PutUint32(hdr[:], selfID)
			if _, werr := conn.Write(hdr[:]); werr != nil {
				conn.Close()
				results <- connResult{id: w.ID, err: werr}
				return
			}
			results <- connResult{id: w.ID, conn: conn}
			return
		}
		lastErr = err
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			results <- connResult{id: w.ID, err: err}
			return
		}
		if !errors.Is(err, syscall.ECONNREFUSED) {
			results <- connResult{id: w.ID, err: err}
			return
		}
		time.Sleep(ConnectBackoff)
	}
	results <- connResult{id: w.ID, err: lastErr}
}

// acceptInbound accepts exactly count inbound connections, validates
// each peer's reported id, and posts the valid ones to results.
// Connections reporting an out-of-range or duplicate id are discarded
// (closed, not posted) rather than failing the whole bootstrap.
func acceptInbound(listener net.Listener, selfID, numWorkers uint32, count int, results chan<- connResult) {
	accepted := 0
	seen := make(map[uint32]bool)
	for accepted < count {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		var hdr [4]byte
		if _, err := netReadFull(conn, hdr[:]); err != nil {
			conn.Close()
			continue
		}
		from := binary.NativeEndian.Uint32(hdr[:])
		if from <= selfID || from >= numWorkers || seen[from] {
			conn.Close()
			continue
		}
		seen[from] = true
		accepted++
		results <- connResult{id: from, conn: conn}
	}
}

func netReadFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
