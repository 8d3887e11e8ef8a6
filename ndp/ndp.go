// Copyright (c) GoPMIP Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package ndp builds the Router Advertisements a mobile access
// gateway emits to make a point-to-point access link look like the
// mobile node's home link.
//
// A Router Advertisement (RFC 4861, section 4.2) is:
//
//	type           byte     // 134
//	code           byte     // 0
//	checksum       [2]byte  // left zero, filled in by the kernel
//	cur hop limit  byte     // 0, unspecified
//	flags          byte     // 0
//	router lifetime [2]byte // 0xffff, the advertising gateway never expires
//	reachable time  [4]byte // 0, unspecified
//	retrans timer   [4]byte // 0, unspecified
//	options        [...]byte
//
// The options are one source link-layer address, one MTU, and one
// prefix information option per advertised home network prefix, in
// that order. Unlike the Mobility Header there is no trailing
// padding; every NDP option is already a multiple of eight octets.
package ndp

import (
	"encoding/binary"
	"errors"
	"net/netip"

	"golang.org/x/net/ipv6"
)

const (
	// MaxAdvertSize bounds an encoded Router Advertisement.
	MaxAdvertSize = 512

	raFixedLen = 16

	optSourceLinkLayer = 1
	optPrefixInfo      = 3
	optMTU             = 5

	sllOptLen    = 8
	mtuOptLen    = 8
	prefixOptLen = 32

	prefixFlagOnLink = 1 << 7 // L: prefix is on-link
	prefixFlagAuto   = 1 << 6 // A: prefix usable for SLAAC

	validLifetime     = 7200 // seconds
	preferredLifetime = 1800 // seconds
)

var (
	ErrAdvertTooLong = errors.New("router advertisement exceeds maximum size")
	ErrBadPrefix     = errors.New("router advertisement prefix is not IPv6")
)

// AdvertInfo carries the fields a Router Advertisement is built from.
type AdvertInfo struct {
	Source   [6]byte        // link-layer address of the advertising interface
	MTU      uint32
	Prefixes []netip.Prefix // home network prefixes, advertised in order
	Dst      netip.Addr
}

// Advert is an encoded Router Advertisement and the destination it is
// addressed to. It is a value: copyable and read-only once built.
type Advert struct {
	dst netip.Addr
	n   int
	buf [MaxAdvertSize]byte
}

// Bytes returns the encoded advertisement, starting at the ICMPv6
// type byte. The slice aliases the advert's internal buffer and must
// not be modified.
func (a *Advert) Bytes() []byte { return a.buf[:a.n] }

// Len returns the encoded length in bytes.
func (a *Advert) Len() int { return a.n }

// Dst returns the address the advertisement should be sent to.
func (a *Advert) Dst() netip.Addr { return a.dst }

// RouterAdvert builds a Router Advertisement with an infinite router
// lifetime, carrying ai.Source, ai.MTU and a prefix information
// option for each home network prefix with the L and A flags set.
// Host bits beyond a prefix length are zeroed on the wire. The
// checksum is left zero for the kernel to fill in.
func RouterAdvert(ai *AdvertInfo) (Advert, error) {
	var a Advert
	if advertLen(len(ai.Prefixes)) > MaxAdvertSize {
		return Advert{}, ErrAdvertTooLong
	}
	b := a.buf[:raFixedLen]
	b[0] = byte(ipv6.ICMPTypeRouterAdvertisement)
	binary.BigEndian.PutUint16(b[6:], 0xffff) // router lifetime
	b = appendSourceLinkLayer(b, ai.Source)
	b = appendMTU(b, ai.MTU)
	for _, p := range ai.Prefixes {
		if !p.Addr().Is6() || p.Addr().Is4In6() {
			return Advert{}, ErrBadPrefix
		}
		b = appendPrefixInfo(b, p)
	}
	a.n = len(b)
	a.dst = ai.Dst
	return a, nil
}

// advertLen returns the encoded size of an advertisement carrying
// the given number of prefix information options. Each term is the
// option's own encoded size.
func advertLen(prefixes int) int {
	return raFixedLen + sllOptLen + mtuOptLen + prefixes*prefixOptLen
}

// appendSourceLinkLayer appends a source link-layer address option
// (RFC 4861, type 1).
func appendSourceLinkLayer(b []byte, mac [6]byte) []byte {
	b = append(b, optSourceLinkLayer, sllOptLen/8)
	return append(b, mac[:]...)
}

// appendMTU appends an MTU option (RFC 4861, type 5).
func appendMTU(b []byte, mtu uint32) []byte {
	b = append(b, optMTU, mtuOptLen/8, 0, 0)
	return binary.BigEndian.AppendUint32(b, mtu)
}

// appendPrefixInfo appends a prefix information option (RFC 4861,
// type 3) with the on-link and autonomous flags set.
func appendPrefixInfo(b []byte, p netip.Prefix) []byte {
	p = p.Masked()
	b = append(b, optPrefixInfo, prefixOptLen/8, byte(p.Bits()), prefixFlagOnLink|prefixFlagAuto)
	b = binary.BigEndian.AppendUint32(b, validLifetime)
	b = binary.BigEndian.AppendUint32(b, preferredLifetime)
	b = append(b, 0, 0, 0, 0) // reserved
	addr := p.Addr().As16()
	return append(b, addr[:]...)
}
