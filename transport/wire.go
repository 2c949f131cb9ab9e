// Package transport moves blob bytes peer-to-peer over a direct TCP
// connection using a fixed wire framing: a 20-byte object id, an 8-byte
// size, the payload, and a 3-byte ack. The size field is explicitly
// little-endian rather than host-endian, and the ack is checked against
// the exact 3-byte `"OK\x00"` sequence rather than a loose length check.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package transport

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/nwtnni/hoplite-go/cmn"
)

const (
	idLen   = 20
	sizeLen = 8
	ackLen  = 3
)

var ack = [ackLen]byte{'O', 'K', 0}

// writeHeader writes the 20-byte id followed by the little-endian 8-byte
// size, the first two frames of the wire format.
func writeHeader(w io.Writer, id cmn.ObjectID, size int64) error {
	if _, err := w.Write(id[:]); err != nil {
		return errors.Wrap(err, "transport: write object id")
	}
	var sizeBuf [sizeLen]byte
	binary.LittleEndian.PutUint64(sizeBuf[:], uint64(size))
	if _, err := w.Write(sizeBuf[:]); err != nil {
		return errors.Wrap(err, "transport: write object size")
	}
	return nil
}

// readHeader reads the 20-byte id and little-endian 8-byte size.
func readHeader(r io.Reader) (cmn.ObjectID, int64, error) {
	var idBuf [idLen]byte
	if _, err := io.ReadFull(r, idBuf[:]); err != nil {
		return cmn.NilObjectID, 0, errors.Wrap(err, "transport: read object id")
	}
	id, err := cmn.ObjectIDFromBinary(idBuf[:])
	if err != nil {
		return cmn.NilObjectID, 0, err
	}
	var sizeBuf [sizeLen]byte
	if _, err := io.ReadFull(r, sizeBuf[:]); err != nil {
		return cmn.NilObjectID, 0, errors.Wrap(err, "transport: read object size")
	}
	size := int64(binary.LittleEndian.Uint64(sizeBuf[:]))
	return id, size, nil
}

// writeAck writes the fixed 3-byte "OK\x00" ack.
func writeAck(w io.Writer) error {
	_, err := w.Write(ack[:])
	return errors.Wrap(err, "transport: write ack")
}

// readAck reads exactly 3 bytes and verifies them against "OK\x00". A
// mismatch is a protocol violation: fatal to this transfer, not to the
// process.
func readAck(r io.Reader) error {
	var got [ackLen]byte
	if _, err := io.ReadFull(r, got[:]); err != nil {
		return errors.Wrap(err, "transport: read ack")
	}
	if got != ack {
		return errors.Wrapf(cmn.ErrProtocol, "transport: unexpected ack %q", got)
	}
	return nil
}
