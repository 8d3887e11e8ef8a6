// Copyright (c) GoPMIP Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package mproto builds and parses Mobility Header signaling messages.
//
// A Mobility Header (RFC 6275, section 6.1) is:
//
//	payload proto  byte     // IPPROTO_NONE, nothing follows the header
//	header len     byte     // units of 8 octets, excluding the first 8
//	MH type        byte     // the Type constants in codes.go
//	reserved       byte
//	checksum       [2]byte  // left zero, filled in by the kernel
//	message data   [...]byte
//
// The message data of a Proxy Binding Update or Proxy Binding
// Acknowledgement (RFC 5213) is a six-byte fixed part followed by
// mobility options, zero-padded so the whole header is a multiple of
// eight octets. The header len and MH type fields are written only
// after the padded length is known.
package mproto

import (
	"encoding/binary"
	"errors"
	"net/netip"
	"time"
)

const (
	// HeaderLen is the length of the fixed part common to all
	// Mobility Header message types.
	HeaderLen = 6

	// MaxMessageSize bounds an encoded signaling message. Messages
	// never grow past it; builders fail instead.
	MaxMessageSize = 256

	ipProtoNone = 59 // IPPROTO_NONE

	bindingLen = HeaderLen + 6 // fixed part of a PBU or PBA

	handoffOptLen    = 4
	accessTechOptLen = 4

	subtypeNAI = 1 // RFC 4283 identifier subtype
)

// Binding Update flag bits (RFC 6275 section 6.1.7, RFC 5213 section 8.1).
const (
	FlagAck          uint16 = 0x8000 // A: acknowledge requested
	FlagHomeReg      uint16 = 0x4000 // H: home registration
	FlagLinkLocal    uint16 = 0x2000 // L: link-local address compatibility
	FlagKeyMgmt      uint16 = 0x1000 // K: key management mobility capability
	FlagMAPReg       uint16 = 0x0800 // M: MAP registration
	FlagMobileRouter uint16 = 0x0400 // R: mobile router
	FlagProxyReg     uint16 = 0x0200 // P: proxy registration
)

// Binding Acknowledgement flag bits (RFC 6275 section 6.1.8,
// RFC 5213 section 8.2). The acknowledgement carries a single flag
// byte; there is no A bit.
const (
	AckFlagKeyMgmt      uint8 = 0x80 // K
	AckFlagMobileRouter uint8 = 0x40 // R
	AckFlagProxyReg     uint8 = 0x20 // P
)

var (
	ErrMessageTooLong    = errors.New("mobility message exceeds maximum size")
	ErrMessageTruncated  = errors.New("truncated mobility message")
	ErrNotMobilityHeader = errors.New("not a mobility header")
)

// BindingInfo carries the per-session fields a Proxy Binding message
// is built from. Builders read it and never retain it.
type BindingInfo struct {
	Peer       netip.Addr       // signaling destination
	Sequence   uint16
	Lifetime   time.Duration    // granted or requested binding lifetime
	ID         []byte           // mobile node identifier (NAI), raw bytes
	Handoff    HandoffIndicator
	AccessTech AccessTechnology
	Status     Status           // acknowledgement only
}

// Message is an encoded Mobility Header message and the destination
// it is addressed to. It is a value: copyable, read-only once built,
// and safe to hand to a sending goroutine.
type Message struct {
	dst netip.Addr
	n   int
	buf [MaxMessageSize]byte
}

// Bytes returns the encoded message. The slice aliases the message's
// internal buffer and must not be modified.
func (m *Message) Bytes() []byte { return m.buf[:m.n] }

// Len returns the encoded length in bytes, always a multiple of 8.
func (m *Message) Len() int { return m.n }

// Dst returns the address the message should be sent to.
func (m *Message) Dst() netip.Addr { return m.dst }

// Type returns the Mobility Header type of the encoded message.
func (m *Message) Type() MHType { return MHType(m.buf[2]) }

// ProxyBindingUpdate builds a Proxy Binding Update (RFC 5213,
// section 8.1) with the A and P flags set, carrying the Mobile Node
// Identifier, Handoff Indicator and Access Technology Type options.
// The checksum is left zero for the kernel to fill in.
func ProxyBindingUpdate(bi *BindingInfo) (Message, error) {
	var m Message
	if bindingMessageLen(len(bi.ID)) > MaxMessageSize {
		return Message{}, ErrMessageTooLong
	}
	b := m.buf[:bindingLen]
	binary.BigEndian.PutUint16(b[6:], bi.Sequence)
	binary.BigEndian.PutUint16(b[8:], FlagAck|FlagProxyReg)
	binary.BigEndian.PutUint16(b[10:], lifetimeUnits(bi.Lifetime))
	b = appendMobileNodeID(b, bi.ID)
	b = appendHandoff(b, bi.Handoff)
	b = appendAccessTech(b, bi.AccessTech)
	m.finish(TypeBindingUpdate, pad8(len(b)), bi.Peer)
	return m, nil
}

// ProxyBindingAck builds a Proxy Binding Acknowledgement (RFC 5213,
// section 8.2) with the P flag set, echoing the same three options a
// Proxy Binding Update carries. bi.Status is written through verbatim
// so callers can emit any registered or vendor code.
func ProxyBindingAck(bi *BindingInfo) (Message, error) {
	var m Message
	if bindingMessageLen(len(bi.ID)) > MaxMessageSize {
		return Message{}, ErrMessageTooLong
	}
	b := m.buf[:bindingLen]
	b[6] = byte(bi.Status)
	b[7] = AckFlagProxyReg
	binary.BigEndian.PutUint16(b[8:], bi.Sequence)
	binary.BigEndian.PutUint16(b[10:], lifetimeUnits(bi.Lifetime))
	b = appendMobileNodeID(b, bi.ID)
	b = appendHandoff(b, bi.Handoff)
	b = appendAccessTech(b, bi.AccessTech)
	m.finish(TypeBindingAck, pad8(len(b)), bi.Peer)
	return m, nil
}

// finish seals a built message. The header len and type fields are
// written here, after padding, and never before.
func (m *Message) finish(t MHType, n int, dst netip.Addr) {
	m.buf[0] = ipProtoNone
	m.buf[1] = byte(n/8 - 1)
	m.buf[2] = byte(t)
	m.n = n
	m.dst = dst
}

// pad8 rounds n up to the next multiple of eight octets.
func pad8(n int) int { return (n + 7) &^ 7 }

// bindingMessageLen returns the padded size of a binding message
// carrying the three mobility options for an identifier of idLen
// bytes. Each term is the option's own encoded size.
func bindingMessageLen(idLen int) int {
	return pad8(bindingLen + (2 + 1 + idLen) + handoffOptLen + accessTechOptLen)
}

// lifetimeUnits converts a lifetime to the wire unit of four seconds,
// truncating, clamped to the 16-bit field.
func lifetimeUnits(d time.Duration) uint16 {
	if d <= 0 {
		return 0
	}
	u := d / (4 * time.Second)
	if u > 0xffff {
		return 0xffff
	}
	return uint16(u)
}

// appendMobileNodeID appends a Mobile Node Identifier option
// (RFC 4283, type 8) holding the raw NAI. The length field covers the
// subtype byte plus the identifier.
func appendMobileNodeID(b, id []byte) []byte {
	b = append(b, optMobileNodeID, byte(1+len(id)), subtypeNAI)
	return append(b, id...)
}

// appendHandoff appends a Handoff Indicator option (RFC 5213, type 23).
func appendHandoff(b []byte, hi HandoffIndicator) []byte {
	return append(b, optHandoff, 2, 0, byte(hi))
}

// appendAccessTech appends an Access Technology Type option
// (RFC 5213, type 24).
func appendAccessTech(b []byte, at AccessTechnology) []byte {
	return append(b, optAccessTech, 2, 0, byte(at))
}
