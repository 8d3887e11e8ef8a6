// Copyright (c) GoPMIP Authors
// SPDX-License-Identifier: BSD-3-Clause

package rtnl

import (
	"testing"

	"github.com/jsimonetti/rtnetlink"
	"github.com/mdlayher/netlink"
	"github.com/mdlayher/netlink/nlenc"
	"golang.org/x/sys/unix"
)

func testRoute() Route {
	return Route{
		Family:   unix.AF_INET6,
		DstLen:   64,
		Table:    unix.RT_TABLE_MAIN,
		Protocol: unix.RTPROT_STATIC,
		Scope:    unix.RT_SCOPE_UNIVERSE,
		Type:     unix.RTN_UNICAST,
		Flags:    FlagNotify,
	}
}

func TestOps(t *testing.T) {
	// The route operations sit in a reserved block of the rtnetlink
	// message-type numbering.
	if OpNew != 24 || OpDel != 25 || OpGet != 26 {
		t.Errorf("ops = %d/%d/%d; want 24/25/26", OpNew, OpDel, OpGet)
	}
}

func TestMessage(t *testing.T) {
	r := testRoute()
	m := r.Message(rtnetlink.RouteAttributes{OutIface: 7})
	if m.Family != unix.AF_INET6 || m.DstLength != 64 {
		t.Errorf("family/dstlen = %d/%d; want %d/64", m.Family, m.DstLength, unix.AF_INET6)
	}
	if m.Table != unix.RT_TABLE_MAIN || m.Protocol != unix.RTPROT_STATIC {
		t.Errorf("table/proto = %d/%d", m.Table, m.Protocol)
	}
	if m.Scope != unix.RT_SCOPE_UNIVERSE || m.Type != unix.RTN_UNICAST {
		t.Errorf("scope/type = %d/%d", m.Scope, m.Type)
	}
	if m.Flags != FlagNotify {
		t.Errorf("flags = %#x; want %#x", m.Flags, FlagNotify)
	}
	if m.Attributes.OutIface != 7 {
		t.Errorf("outiface = %d; want 7", m.Attributes.OutIface)
	}
}

func TestNewRequest(t *testing.T) {
	tests := []struct {
		op        Op
		wantType  netlink.HeaderType
		wantFlags netlink.HeaderFlags
	}{
		{OpNew, unix.RTM_NEWROUTE, netlink.Request | netlink.Acknowledge | netlink.Create | netlink.Excl},
		{OpDel, unix.RTM_DELROUTE, netlink.Request | netlink.Acknowledge},
		{OpGet, unix.RTM_GETROUTE, netlink.Request | netlink.Dump},
	}
	for _, tt := range tests {
		m, err := NewRequest(tt.op, testRoute(), rtnetlink.RouteAttributes{})
		if err != nil {
			t.Fatalf("op %d: %v", tt.op, err)
		}
		if m.Header.Type != tt.wantType {
			t.Errorf("op %d: type = %v; want %v", tt.op, m.Header.Type, tt.wantType)
		}
		if m.Header.Flags != tt.wantFlags {
			t.Errorf("op %d: flags = %v; want %v", tt.op, m.Header.Flags, tt.wantFlags)
		}
		// The fixed rtmsg part leads the payload.
		if len(m.Data) < 12 {
			t.Fatalf("op %d: payload only %d bytes", tt.op, len(m.Data))
		}
		if m.Data[0] != unix.AF_INET6 || m.Data[1] != 64 {
			t.Errorf("op %d: rtmsg family/dstlen = %d/%d", tt.op, m.Data[0], m.Data[1])
		}
		if m.Data[4] != unix.RT_TABLE_MAIN || m.Data[7] != unix.RTN_UNICAST {
			t.Errorf("op %d: rtmsg table/type = %d/%d", tt.op, m.Data[4], m.Data[7])
		}
		if got := nlenc.Uint32(m.Data[8:12]); got != FlagNotify {
			t.Errorf("op %d: rtmsg flags = %#x; want %#x", tt.op, got, FlagNotify)
		}
	}

	if _, err := NewRequest(Op(99), testRoute(), rtnetlink.RouteAttributes{}); err == nil {
		t.Error("unknown op: no error")
	}
}

func TestNames(t *testing.T) {
	r := testRoute()
	if got, want := r.TypeName(), "unicast"; got != want {
		t.Errorf("TypeName = %q; want %q", got, want)
	}
	if got, want := r.TableName(), "main"; got != want {
		t.Errorf("TableName = %q; want %q", got, want)
	}
	if got, want := r.ScopeName(), "universe"; got != want {
		t.Errorf("ScopeName = %q; want %q", got, want)
	}
	if got, want := r.ProtoName(), "static"; got != want {
		t.Errorf("ProtoName = %q; want %q", got, want)
	}

	r = Route{Table: 252, Scope: 200, Type: 9, Protocol: 9}
	if got, want := r.TableName(), "compat"; got != want {
		t.Errorf("TableName = %q; want %q", got, want)
	}
	if got, want := r.ScopeName(), "site"; got != want {
		t.Errorf("ScopeName = %q; want %q", got, want)
	}
	if got, want := r.TypeName(), "throw"; got != want {
		t.Errorf("TypeName = %q; want %q", got, want)
	}
	if got, want := r.ProtoName(), "ra"; got != want {
		t.Errorf("ProtoName = %q; want %q", got, want)
	}

	// Unknown values fall back to digits.
	r = Route{Table: 100, Scope: 42, Type: 200, Protocol: 99}
	if got, want := r.TableName(), "100"; got != want {
		t.Errorf("TableName = %q; want %q", got, want)
	}
	if got, want := r.String(), "200 route table 100 proto 99 scope 42"; got != want {
		t.Errorf("String = %q; want %q", got, want)
	}
}
