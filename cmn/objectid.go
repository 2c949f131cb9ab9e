// Package cmn provides common low-level types and utilities shared by every
// hoplite-go package: the object identifier, node address, assertions, and
// the node-wide configuration document.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package cmn

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/pkg/errors"
)

// ObjectIDSize is the fixed length, in bytes, of an ObjectID's binary form.
const ObjectIDSize = 20

// ObjectID is a 20-byte opaque content identifier assigned by the producer
// of an object, not derived from its content. Equality is byte-equality.
type ObjectID [ObjectIDSize]byte

// NilObjectID is the zero value; never a valid assigned id.
var NilObjectID ObjectID

// NewObjectID fills a fresh ObjectID with cryptographically random bytes.
// Producers that want a caller-chosen id should construct an ObjectID
// directly instead. crypto/rand.Read failing is an unrecoverable host
// problem, not a condition callers can meaningfully handle, so NewObjectID
// traps it via AssertNoErr rather than returning an error every call site
// would just panic on anyway.
func NewObjectID() (id ObjectID) {
	_, err := rand.Read(id[:])
	AssertNoErr(errors.Wrap(err, "cmn: generate object id"))
	return id
}

// Hex returns the lowercase hex encoding of the id (40 chars).
func (id ObjectID) Hex() string { return hex.EncodeToString(id[:]) }

// String implements fmt.Stringer.
func (id ObjectID) String() string { return id.Hex() }

// IsZero reports whether id is the nil object id.
func (id ObjectID) IsZero() bool { return id == NilObjectID }

// ParseObjectIDHex decodes a lowercase (or mixed-case) hex string into an
// ObjectID, failing if the decoded length isn't exactly ObjectIDSize.
func ParseObjectIDHex(s string) (id ObjectID, err error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return NilObjectID, errors.Wrapf(err, "cmn: invalid object id %q", s)
	}
	if len(b) != ObjectIDSize {
		return NilObjectID, errors.Errorf("cmn: object id %q: expected %d bytes, got %d", s, ObjectIDSize, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// ObjectIDFromBinary copies a binary-form id; b must be exactly
// ObjectIDSize bytes.
func ObjectIDFromBinary(b []byte) (id ObjectID, err error) {
	if len(b) != ObjectIDSize {
		return NilObjectID, errors.Errorf("cmn: object id: expected %d bytes, got %d", ObjectIDSize, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// MarshalText implements encoding.TextMarshaler so ObjectID round-trips
// through jsoniter as its hex form, matching the wire encodings used by
// control and directory RPC bodies.
func (id ObjectID) MarshalText() ([]byte, error) { return []byte(id.Hex()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ObjectID) UnmarshalText(text []byte) error {
	parsed, err := ParseObjectIDHex(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Address is a node identifier used both as directory key-value and as a
// routing target for a node's three fixed logical ports (control, bulk,
// notification-listen). Typically an IPv4 dotted quad.
type Address string

func (a Address) String() string { return string(a) }

// Empty reports whether the address is the empty string, i.e. "unknown" as
// returned by Directory.Lookup for an unpublished object.
func (a Address) Empty() bool { return a == "" }
