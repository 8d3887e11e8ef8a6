// Copyright (c) GoPMIP Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build linux

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/peterbourgon/ff/v3/ffcli"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
	"gopmip.dev/gopmip/net/rtnl"
)

var showCmd = &ffcli.Command{
	Name:       "show",
	ShortUsage: "miptun show [name]",
	ShortHelp:  "Show ip6 tunnels and their IPv6 routes.",
	Exec:       runShow,
}

func runShow(ctx context.Context, args []string) error {
	if len(args) > 1 {
		return errors.New("usage: miptun show [name]")
	}
	if len(args) == 1 {
		l, err := netlink.LinkByName(args[0])
		if err != nil {
			return err
		}
		return showLink(l)
	}
	links, err := netlink.LinkList()
	if err != nil {
		return err
	}
	for _, l := range links {
		if l.Type() != "ip6tnl" {
			continue
		}
		if err := showLink(l); err != nil {
			return err
		}
	}
	return nil
}

func showLink(l netlink.Link) error {
	a := l.Attrs()
	fmt.Printf("%s: index %d state %s mtu %d\n", a.Name, a.Index, a.OperState, a.MTU)
	if t, ok := l.(*netlink.Ip6tnl); ok {
		fmt.Printf("    local %s remote %s hoplimit %d encap %d proto %d flags %#x\n",
			t.Local, t.Remote, t.Ttl, t.EncapLimit, t.Proto, t.Flags)
	}

	routes, err := netlink.RouteListFiltered(netlink.FAMILY_V6,
		&netlink.Route{LinkIndex: a.Index}, netlink.RT_FILTER_OIF)
	if err != nil {
		return err
	}
	for _, rt := range routes {
		dst := "default"
		if rt.Dst != nil {
			dst = rt.Dst.String()
		}
		via := ""
		if rt.Gw != nil {
			via = " via " + rt.Gw.String()
		}
		fmt.Printf("    %s%s  %s\n", dst, via, descriptor(rt))
	}
	return nil
}

// descriptor folds a kernel route into the fixed-width form used for
// route provisioning, for a uniform display.
func descriptor(rt netlink.Route) rtnl.Route {
	table := rt.Table
	if table > 0xff {
		// The fixed header cannot carry wide table numbers.
		table = unix.RT_TABLE_COMPAT
	}
	var dstLen uint8
	if rt.Dst != nil {
		ones, _ := rt.Dst.Mask.Size()
		dstLen = uint8(ones)
	}
	return rtnl.Route{
		Family:   unix.AF_INET6,
		DstLen:   dstLen,
		Table:    uint8(table),
		Protocol: uint8(rt.Protocol),
		Scope:    uint8(rt.Scope),
		Type:     uint8(rt.Type),
	}
}
