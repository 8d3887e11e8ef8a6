// Copyright (c) GoPMIP Authors
// SPDX-License-Identifier: BSD-3-Clause

package mproto

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Binding is a decoded Proxy Binding Update or Acknowledgement.
type Binding struct {
	Type         MHType
	Status       Status // acknowledgement only
	AckRequested bool   // update only, the A flag
	ProxyReg     bool   // the P flag
	Sequence     uint16
	Lifetime     time.Duration
	ID           []byte // nil if no NAI-subtype identifier option
	Handoff      HandoffIndicator
	AccessTech   AccessTechnology
}

// Is reports whether b has the shape of a complete Mobility Header:
// the no-payload proto byte and a declared length covered by b.
func Is(b []byte) bool {
	return len(b) >= 8 && b[0] == ipProtoNone && (int(b[1])+1)*8 <= len(b)
}

// ParseBinding parses a Proxy Binding Update or Acknowledgement.
// Trailing bytes past the declared header length are ignored. The
// returned Binding does not alias b.
func ParseBinding(b []byte) (*Binding, error) {
	if len(b) < HeaderLen {
		return nil, ErrMessageTruncated
	}
	if b[0] != ipProtoNone {
		return nil, ErrNotMobilityHeader
	}
	n := (int(b[1]) + 1) * 8
	if n > len(b) {
		return nil, ErrMessageTruncated
	}
	b = b[:n]
	if n < bindingLen {
		return nil, ErrMessageTruncated
	}
	bnd := &Binding{Type: MHType(b[2])}
	switch bnd.Type {
	case TypeBindingUpdate:
		bnd.Sequence = binary.BigEndian.Uint16(b[6:])
		flags := binary.BigEndian.Uint16(b[8:])
		bnd.AckRequested = flags&FlagAck != 0
		bnd.ProxyReg = flags&FlagProxyReg != 0
		bnd.Lifetime = time.Duration(binary.BigEndian.Uint16(b[10:])) * 4 * time.Second
	case TypeBindingAck:
		bnd.Status = Status(b[6])
		bnd.ProxyReg = b[7]&AckFlagProxyReg != 0
		bnd.Sequence = binary.BigEndian.Uint16(b[8:])
		bnd.Lifetime = time.Duration(binary.BigEndian.Uint16(b[10:])) * 4 * time.Second
	default:
		return nil, fmt.Errorf("unknown mobility header type 0x%02x", b[2])
	}
	if err := parseOptions(b[bindingLen:], bnd); err != nil {
		return nil, err
	}
	return bnd, nil
}

// parseOptions walks the mobility options, tolerating padding and
// skipping unknown types. Zero padding parses as a run of Pad1.
func parseOptions(o []byte, bnd *Binding) error {
	for len(o) > 0 {
		if o[0] == optPad1 {
			o = o[1:]
			continue
		}
		if len(o) < 2 {
			return ErrMessageTruncated
		}
		l := int(o[1])
		if 2+l > len(o) {
			return ErrMessageTruncated
		}
		data := o[2 : 2+l]
		switch o[0] {
		case optMobileNodeID:
			if l < 1 {
				return ErrMessageTruncated
			}
			if data[0] == subtypeNAI {
				bnd.ID = append([]byte(nil), data[1:]...)
			}
		case optHandoff:
			if l < 2 {
				return ErrMessageTruncated
			}
			bnd.Handoff = HandoffIndicator(data[1])
		case optAccessTech:
			if l < 2 {
				return ErrMessageTruncated
			}
			bnd.AccessTech = AccessTechnology(data[1])
		}
		o = o[2+l:]
	}
	return nil
}
