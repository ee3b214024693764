//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package halfgates implements the two-party half-gates garbled-circuit
// backend of §4.4: a garbler role and an evaluator role connected by a
// reliable ordered byte channel (p2p.Conn), each satisfying
// backend.Backend[ot.Label].
package halfgates

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"

	"golang.org/x/crypto/chacha20"

	"github.com/rivergate/mpcvm/ot"
)

// ksBatchN is the MITCCRH key-renewal batch size, i.e. the number of
// AND gates hashed, each under its own AES key, before the tweak
// schedule rekeys.
// Grounded on the teacher's own otBatchSize constant (ot/cot.go,
// ot/rot.go), which drives the same ot.MITCCRH.Hash batching.
const ksBatchN = 8

// lsb returns the point-and-permute selector bit of a label. The
// specification describes this as the label's literal least-significant
// bit; this codebase's Label type (inherited from the teacher's ot
// package) instead dedicates the top bit of D0 to this role via
// Label.S()/SetS(). Both conventions are internally self-consistent —
// garbler and evaluator need only agree with each other, not with a
// specific bit position — so lsb/setLSB simply delegate to S()/SetS().
// See DESIGN.md for the resolved open question.
func lsb(l ot.Label) bool       { return l.S() }
func setLSB(l *ot.Label, v bool) { l.SetS(v) }

// fixKeyPRG is a deterministic pseudo-random function keyed by a fixed,
// publicly-known AES key. Both garbler and evaluator construct their own
// instance and draw from it in the same order, so they agree on
// public_constants[0..=1] without any communication.
type fixKeyPRG struct {
	cipher  cipher.Block
	counter uint64
}

// fixKey is a fixed, non-secret AES-128 key shared by convention between
// garbler and evaluator for deriving the public wire constants.
var fixKey = [16]byte{
	0x61, 0x62, 0x63, 0x64, 0x65, 0x66, 0x67, 0x68,
	0x69, 0x6a, 0x6b, 0x6c, 0x6d, 0x6e, 0x6f, 0x70,
}

func newFixKeyPRG() *fixKeyPRG {
	block, err := aes.NewCipher(fixKey[:])
	if err != nil {
		// fixKey is a compile-time constant of the correct size; this
		// can only fail if the constant above is malformed.
		panic(err)
	}
	return &fixKeyPRG{cipher: block}
}

func (f *fixKeyPRG) randomBlock() ot.Label {
	var data ot.LabelData
	binary.BigEndian.PutUint64(data[8:16], f.counter)
	f.counter++
	f.cipher.Encrypt(data[:], data[:])
	var l ot.Label
	l.SetData(&data)
	return l
}

// sharedPRG derives masking labels from the 16-byte input_seed exchanged
// during the handshake. Both ends seed a ChaCha20 stream identically, so
// subsequent draws stay in lockstep without further communication.
type sharedPRG struct {
	stream cipher.Stream
}

func newSharedPRG(seed ot.Label) (*sharedPRG, error) {
	var seedData ot.LabelData
	seed.GetData(&seedData)

	var key [chacha20.KeySize]byte
	copy(key[0:16], seedData[:])
	copy(key[16:32], seedData[:])

	var nonce [chacha20.NonceSize]byte
	stream, err := chacha20.NewUnauthenticatedCipher(key[:], nonce[:])
	if err != nil {
		return nil, err
	}
	return &sharedPRG{stream: stream}, nil
}

func (p *sharedPRG) label() ot.Label {
	var data ot.LabelData
	p.stream.XORKeyStream(data[:], data[:])
	var l ot.Label
	l.SetData(&data)
	return l
}

// publicConstantsFrom draws the two public wire constants from a
// fix-key PRG. The raw draws (r0, r1) are identical at both ends; only
// the garbler additionally XORs delta into the index-1 constant, per
// §4.4.
func publicConstantsFrom(prg *fixKeyPRG) (c0, c1 ot.Label) {
	return prg.randomBlock(), prg.randomBlock()
}
