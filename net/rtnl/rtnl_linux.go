// Copyright (c) GoPMIP Authors
// SPDX-License-Identifier: BSD-3-Clause

package rtnl

import (
	"fmt"
	"strconv"

	"github.com/jsimonetti/rtnetlink"
	"github.com/mdlayher/netlink"
	"golang.org/x/sys/unix"
)

// Route mirrors the fixed part of an rtnetlink route message, struct
// rtmsg: everything before the attributes. The zero value is an
// all-unspecified descriptor.
type Route struct {
	Family   uint8 // address family, unix.AF_INET6 here
	DstLen   uint8 // destination prefix length
	SrcLen   uint8 // source prefix length
	TOS      uint8
	Table    uint8 // routing table id
	Protocol uint8 // who installed the route
	Scope    uint8 // distance to destination
	Type     uint8
	Flags    uint32
}

// Op selects the route operation of a request. The values are the
// route block of the reserved rtnetlink message-type numbering.
type Op uint16

const (
	OpNew Op = unix.RTM_NEWROUTE
	OpDel Op = unix.RTM_DELROUTE
	OpGet Op = unix.RTM_GETROUTE
)

// Route flag bits.
const (
	FlagNotify   = unix.RTM_F_NOTIFY
	FlagCloned   = unix.RTM_F_CLONED
	FlagEqualize = unix.RTM_F_EQUALIZE
	FlagPrefix   = unix.RTM_F_PREFIX
)

// Message returns the descriptor as a typed rtnetlink payload
// carrying the given attributes.
func (r Route) Message(attrs rtnetlink.RouteAttributes) *rtnetlink.RouteMessage {
	return &rtnetlink.RouteMessage{
		Family:     r.Family,
		DstLength:  r.DstLen,
		SrcLength:  r.SrcLen,
		Tos:        r.TOS,
		Table:      r.Table,
		Protocol:   r.Protocol,
		Scope:      r.Scope,
		Type:       r.Type,
		Flags:      r.Flags,
		Attributes: attrs,
	}
}

// NewRequest builds a netlink request performing op on the described
// route. New requests demand exclusive creation; get requests ask for
// a dump filtered by the descriptor.
func NewRequest(op Op, r Route, attrs rtnetlink.RouteAttributes) (netlink.Message, error) {
	data, err := r.Message(attrs).MarshalBinary()
	if err != nil {
		return netlink.Message{}, err
	}
	m := netlink.Message{
		Header: netlink.Header{Type: netlink.HeaderType(op)},
		Data:   data,
	}
	switch op {
	case OpNew:
		m.Header.Flags = netlink.Request | netlink.Acknowledge | netlink.Create | netlink.Excl
	case OpDel:
		m.Header.Flags = netlink.Request | netlink.Acknowledge
	case OpGet:
		m.Header.Flags = netlink.Request | netlink.Dump
	default:
		return netlink.Message{}, fmt.Errorf("unknown route op %d", op)
	}
	return m, nil
}

func (r Route) String() string {
	return fmt.Sprintf("%s route table %s proto %s scope %s",
		r.TypeName(), r.TableName(), r.ProtoName(), r.ScopeName())
}

// TypeName returns the string representation of the route's Type.
func (r Route) TypeName() string {
	switch r.Type {
	case unix.RTN_UNSPEC:
		return "none"
	case unix.RTN_UNICAST:
		return "unicast"
	case unix.RTN_LOCAL:
		return "local"
	case unix.RTN_BROADCAST:
		return "broadcast"
	case unix.RTN_ANYCAST:
		return "anycast"
	case unix.RTN_MULTICAST:
		return "multicast"
	case unix.RTN_BLACKHOLE:
		return "blackhole"
	case unix.RTN_UNREACHABLE:
		return "unreachable"
	case unix.RTN_PROHIBIT:
		return "prohibit"
	case unix.RTN_THROW:
		return "throw"
	case unix.RTN_NAT:
		return "nat"
	case unix.RTN_XRESOLVE:
		return "xresolve"
	default:
		return strconv.Itoa(int(r.Type))
	}
}

// TableName returns the string representation of the route's Table.
func (r Route) TableName() string {
	switch r.Table {
	case unix.RT_TABLE_UNSPEC:
		return "unspec"
	case unix.RT_TABLE_COMPAT:
		return "compat"
	case unix.RT_TABLE_DEFAULT:
		return "default"
	case unix.RT_TABLE_MAIN:
		return "main"
	case unix.RT_TABLE_LOCAL:
		return "local"
	default:
		return strconv.Itoa(int(r.Table))
	}
}

// ScopeName returns the string representation of the route's Scope.
func (r Route) ScopeName() string {
	switch r.Scope {
	case unix.RT_SCOPE_UNIVERSE:
		return "universe"
	case unix.RT_SCOPE_SITE:
		return "site"
	case unix.RT_SCOPE_LINK:
		return "link"
	case unix.RT_SCOPE_HOST:
		return "host"
	case unix.RT_SCOPE_NOWHERE:
		return "nowhere"
	default:
		return strconv.Itoa(int(r.Scope))
	}
}

// ProtoName returns the string representation of the route's Protocol.
func (r Route) ProtoName() string {
	switch r.Protocol {
	case unix.RTPROT_UNSPEC:
		return "unspec"
	case unix.RTPROT_REDIRECT:
		return "redirect"
	case unix.RTPROT_KERNEL:
		return "kernel"
	case unix.RTPROT_BOOT:
		return "boot"
	case unix.RTPROT_STATIC:
		return "static"
	case unix.RTPROT_RA:
		return "ra"
	case unix.RTPROT_DHCP:
		return "dhcp"
	default:
		return strconv.Itoa(int(r.Protocol))
	}
}
