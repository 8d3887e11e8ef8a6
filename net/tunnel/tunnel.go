// Copyright (c) GoPMIP Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package tunnel manages the kernel ip6 tunnels that carry traffic
// between a mobile access gateway and a local mobility anchor.
//
// A Service owns two privileged kernel channels shared by all open
// tunnels: a sequence-correlated rtnetlink connection for tunnel
// configuration and an ioctl socket for per-device flag and index
// queries. Tunnel handles are registered with the Service by
// interface name; a handle is in at most one registry at a time.
// Everything beyond this file is Linux-only.
package tunnel

import (
	"errors"
	"fmt"
	"net/netip"
)

// maxNameLen bounds an interface name, IFNAMSIZ minus the NUL.
const maxNameLen = 15

var (
	ErrNameTooLong      = errors.New("tunnel name too long")
	ErrNotFound         = errors.New("tunnel interface not found")
	ErrNotTunnel        = errors.New("interface is not an ip6 tunnel")
	ErrAlreadyExists    = errors.New("tunnel already exists")
	ErrPermission       = errors.New("tunnel operation not permitted")
	ErrTransient        = errors.New("transient kernel failure")
	ErrProtocolMismatch = errors.New("netlink reply out of protocol")
	ErrClosed           = errors.New("tunnel service closed")
)

// Tunnel flag bits, the kernel's ip6_tnl IP6_TNL_F_* values.
const (
	FlagIgnoreEncapLimit uint32 = 0x01 // don't add the encapsulation limit option
	FlagUseOrigTClass    uint32 = 0x02 // copy the inner traffic class
	FlagUseOrigFlowLabel uint32 = 0x04 // copy the inner flow label
	FlagMobileIPv6       uint32 = 0x08 // device is used for Mobile IPv6
	FlagRcvDSCPCopy      uint32 = 0x10 // copy DSCP to the inner packet on receive
)

// Parameters describes an ip6 tunnel. It serves both as the desired
// configuration handed to the kernel and as the mirror of the
// kernel-confirmed state kept by a Tunnel handle.
type Parameters struct {
	Name       string
	Device     int    // index of the underlying interface, 0 for none
	Proto      uint8  // tunneled protocol, IPPROTO_IPV6 when zero
	EncapLimit uint8  // tunnel encapsulation limit, 4 when zero
	HopLimit   uint8  // outer hop limit, 64 when zero
	FlowInfo   uint32 // outer traffic class and flow label
	Flags      uint32 // Flag* bits above
	Local      netip.Addr
	Remote     netip.Addr
}

func (p Parameters) String() string {
	return fmt.Sprintf("ip6tnl %s dev %d local %s remote %s hop %d encap %d flags %#x",
		p.Name, p.Device, p.Local, p.Remote, p.HopLimit, p.EncapLimit, p.Flags)
}

// checkName validates an interface name against the kernel bound.
func checkName(name string) error {
	if name == "" {
		return errors.New("empty tunnel name")
	}
	if len(name) > maxNameLen {
		return ErrNameTooLong
	}
	return nil
}

// checkAddr reports whether a is usable as a tunnel endpoint: IPv6 or
// unset.
func checkAddr(a netip.Addr) error {
	if !a.IsValid() {
		return nil
	}
	if !a.Is6() || a.Is4In6() {
		return fmt.Errorf("tunnel endpoint %v is not IPv6", a)
	}
	return nil
}
