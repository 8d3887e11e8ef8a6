// Copyright (c) GoPMIP Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build linux

// The miptun command inspects and manages the kernel ip6 tunnels
// behind a mobile access gateway. It is an admin and debugging front
// end over the tunnel service; PMIPv6 signaling itself stays in the
// gateway daemon.
package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/netip"
	"os"
	"time"

	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
	"github.com/vishvananda/netlink"
	"gopmip.dev/gopmip/mproto"
	"gopmip.dev/gopmip/ndp"
	"gopmip.dev/gopmip/net/tunnel"
	"gopmip.dev/gopmip/types/logger"
)

func main() {
	rootfs := newFlagSet("miptun")
	rootfs.BoolVar(&rootArgs.verbose, "verbose", false, "log kernel operations")

	root := &ffcli.Command{
		Name:       "miptun",
		ShortUsage: "miptun [flags] <subcommand> [command flags]",
		ShortHelp:  "Manage the ip6 tunnels of a mobile access gateway.",
		Subcommands: []*ffcli.Command{
			createCmd,
			delCmd,
			showCmd,
			addrCmd,
			upCmd,
			downCmd,
			pbuCmd,
			raCmd,
		},
		FlagSet: rootfs,
		Options: []ff.Option{ff.WithEnvVarPrefix("MIPTUN")},
		Exec:    func(context.Context, []string) error { return flag.ErrHelp },
	}

	if err := root.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.SetFlags(0)
		log.Fatal(err)
	}
	if err := root.Run(context.Background()); err != nil && !errors.Is(err, flag.ErrHelp) {
		log.SetFlags(0)
		log.Fatal(err)
	}
}

var rootArgs struct {
	verbose bool
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

func logf() logger.Logf {
	if rootArgs.verbose {
		return log.Printf
	}
	return logger.Discard
}

// attach opens an existing tunnel without taking ownership of its
// lifetime.
func attach(s *tunnel.Service, name string) (*tunnel.Tunnel, error) {
	t, err := s.Open(name)
	if err != nil {
		return nil, err
	}
	t.SetDeleteOnClose(false)
	return t, nil
}

var createCmd = &ffcli.Command{
	Name:       "create",
	ShortUsage: "miptun create [flags] <name>",
	ShortHelp:  "Create an ip6 tunnel.",
	Exec:       runCreate,
	FlagSet: (func() *flag.FlagSet {
		fs := newFlagSet("create")
		fs.StringVar(&createArgs.dev, "dev", "", "underlying interface name")
		fs.StringVar(&createArgs.local, "local", "", "local tunnel endpoint (IPv6)")
		fs.StringVar(&createArgs.remote, "remote", "", "remote tunnel endpoint (IPv6)")
		fs.BoolVar(&createArgs.up, "up", false, "bring the tunnel up after creating it")
		return fs
	})(),
}

var createArgs struct {
	dev    string
	local  string
	remote string
	up     bool
}

func runCreate(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: miptun create [flags] <name>")
	}
	local, err := netip.ParseAddr(createArgs.local)
	if err != nil {
		return fmt.Errorf("bad --local: %w", err)
	}
	remote, err := netip.ParseAddr(createArgs.remote)
	if err != nil {
		return fmt.Errorf("bad --remote: %w", err)
	}
	device := 0
	if createArgs.dev != "" {
		l, err := netlink.LinkByName(createArgs.dev)
		if err != nil {
			return fmt.Errorf("resolving --dev: %w", err)
		}
		device = l.Attrs().Index
	}

	s, err := tunnel.New(logf())
	if err != nil {
		return err
	}
	defer s.Close()
	t, err := s.Create(args[0], device, local, remote)
	if err != nil {
		return err
	}
	t.SetDeleteOnClose(false) // the tunnel outlives this command
	if createArgs.up {
		if err := t.SetEnabled(true); err != nil {
			return err
		}
	}
	idx, err := t.Index()
	if err != nil {
		return err
	}
	fmt.Printf("%s: index %d\n", t.Name(), idx)
	return nil
}

var delCmd = &ffcli.Command{
	Name:       "del",
	ShortUsage: "miptun del <name>",
	ShortHelp:  "Delete an ip6 tunnel.",
	Exec:       runDel,
}

func runDel(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: miptun del <name>")
	}
	s, err := tunnel.New(logf())
	if err != nil {
		return err
	}
	defer s.Close()
	t, err := s.Open(args[0])
	if err != nil {
		return err
	}
	// Freshly opened handles delete their interface on close.
	return t.Close()
}

var addrCmd = &ffcli.Command{
	Name:       "addr",
	ShortUsage: "miptun addr <name> <addr/prefixlen>",
	ShortHelp:  "Assign an IPv6 address to a tunnel.",
	Exec:       runAddr,
}

func runAddr(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: miptun addr <name> <addr/prefixlen>")
	}
	p, err := netip.ParsePrefix(args[1])
	if err != nil {
		return err
	}
	s, err := tunnel.New(logf())
	if err != nil {
		return err
	}
	defer s.Close()
	t, err := attach(s, args[0])
	if err != nil {
		return err
	}
	return t.AddAddress(p.Addr(), p.Bits())
}

var upCmd = &ffcli.Command{
	Name:       "up",
	ShortUsage: "miptun up <name>",
	ShortHelp:  "Bring a tunnel up.",
	Exec: func(ctx context.Context, args []string) error {
		return setEnabled(args, true)
	},
}

var downCmd = &ffcli.Command{
	Name:       "down",
	ShortUsage: "miptun down <name>",
	ShortHelp:  "Take a tunnel down.",
	Exec: func(ctx context.Context, args []string) error {
		return setEnabled(args, false)
	},
}

func setEnabled(args []string, up bool) error {
	if len(args) != 1 {
		return errors.New("usage: miptun up|down <name>")
	}
	s, err := tunnel.New(logf())
	if err != nil {
		return err
	}
	defer s.Close()
	t, err := attach(s, args[0])
	if err != nil {
		return err
	}
	return t.SetEnabled(up)
}

var pbuCmd = &ffcli.Command{
	Name:       "pbu",
	ShortUsage: "miptun pbu [flags] <identifier>",
	ShortHelp:  "Encode a proxy binding update and hex-dump it.",
	Exec:       runPBU,
	FlagSet: (func() *flag.FlagSet {
		fs := newFlagSet("pbu")
		fs.UintVar(&pbuArgs.seq, "seq", 1, "sequence number")
		fs.DurationVar(&pbuArgs.lifetime, "lifetime", time.Minute, "binding lifetime")
		fs.StringVar(&pbuArgs.peer, "peer", "::", "local mobility anchor address")
		fs.UintVar(&pbuArgs.handoff, "handoff", uint(mproto.HandoffNewInterface), "handoff indicator code")
		fs.UintVar(&pbuArgs.tech, "tech", uint(mproto.TechEthernet), "access technology type code")
		return fs
	})(),
}

var pbuArgs struct {
	seq      uint
	lifetime time.Duration
	peer     string
	handoff  uint
	tech     uint
}

func runPBU(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: miptun pbu [flags] <identifier>")
	}
	peer, err := netip.ParseAddr(pbuArgs.peer)
	if err != nil {
		return fmt.Errorf("bad --peer: %w", err)
	}
	bi := &mproto.BindingInfo{
		Peer:       peer,
		Sequence:   uint16(pbuArgs.seq),
		Lifetime:   pbuArgs.lifetime,
		ID:         []byte(args[0]),
		Handoff:    mproto.HandoffIndicator(pbuArgs.handoff),
		AccessTech: mproto.AccessTechnology(pbuArgs.tech),
	}
	m, err := mproto.ProxyBindingUpdate(bi)
	if err != nil {
		return err
	}
	fmt.Printf("proxy binding update to %s, %d bytes, seq %d, lifetime %v\n",
		m.Dst(), m.Len(), bi.Sequence, bi.Lifetime)
	fmt.Print(hex.Dump(m.Bytes()))
	return nil
}

var raCmd = &ffcli.Command{
	Name:       "ra",
	ShortUsage: "miptun ra [flags] <prefix> [prefix...]",
	ShortHelp:  "Encode a router advertisement and hex-dump it.",
	Exec:       runRA,
	FlagSet: (func() *flag.FlagSet {
		fs := newFlagSet("ra")
		fs.StringVar(&raArgs.src, "src", "00:00:5e:00:53:01", "source link-layer address")
		fs.UintVar(&raArgs.mtu, "mtu", 1500, "link MTU")
		fs.StringVar(&raArgs.dst, "dst", "ff02::1", "destination address")
		return fs
	})(),
}

var raArgs struct {
	src string
	mtu uint
	dst string
}

func runRA(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: miptun ra [flags] <prefix> [prefix...]")
	}
	hw, err := net.ParseMAC(raArgs.src)
	if err != nil {
		return fmt.Errorf("bad --src: %w", err)
	}
	if len(hw) != 6 {
		return fmt.Errorf("bad --src: want 6 bytes, got %d", len(hw))
	}
	dst, err := netip.ParseAddr(raArgs.dst)
	if err != nil {
		return fmt.Errorf("bad --dst: %w", err)
	}
	ai := &ndp.AdvertInfo{
		MTU: uint32(raArgs.mtu),
		Dst: dst,
	}
	copy(ai.Source[:], hw)
	for _, s := range args {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return err
		}
		ai.Prefixes = append(ai.Prefixes, p)
	}
	a, err := ndp.RouterAdvert(ai)
	if err != nil {
		return err
	}
	fmt.Printf("router advertisement to %s, %d bytes, %d prefixes\n",
		a.Dst(), a.Len(), len(ai.Prefixes))
	fmt.Print(hex.Dump(a.Bytes()))
	return nil
}
