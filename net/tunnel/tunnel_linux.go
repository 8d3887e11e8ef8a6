// Copyright (c) GoPMIP Authors
// SPDX-License-Identifier: BSD-3-Clause

package tunnel

import (
	"cmp"
	"fmt"
	"net/netip"
	"slices"
	"sync"
	"time"

	"golang.org/x/sys/unix"
	"gopmip.dev/gopmip/types/logger"
)

const (
	defaultEncapLimit = 4
	defaultHopLimit   = 64
)

// defaults fills the parameter fields a caller left zero.
func (p *Parameters) defaults() {
	if p.Proto == 0 {
		p.Proto = unix.IPPROTO_IPV6
	}
	if p.EncapLimit == 0 {
		p.EncapLimit = defaultEncapLimit
	}
	if p.HopLimit == 0 {
		p.HopLimit = defaultHopLimit
	}
}

// Service provisions and tracks ip6 tunnels. All tunnels opened
// through one Service share its two kernel channels.
type Service struct {
	logf logger.Logf
	ctl  devControl

	nlmu sync.Mutex // serializes exchanges on conn
	conn nlConn

	mu      sync.Mutex // guards the registry; taken before any Tunnel.mu
	closed  bool
	tunnels map[string]*Tunnel
}

// Tunnel is an open handle on a kernel ip6 tunnel interface.
type Tunnel struct {
	svc  *Service
	name string

	mu            sync.Mutex
	open          bool
	index         int
	deleteOnClose bool
	params        Parameters
}

// New opens the kernel channels and returns a Service with an empty
// registry.
func New(logf logger.Logf) (*Service, error) {
	if logf == nil {
		logf = logger.Discard
	}
	conn, err := dialConn()
	if err != nil {
		return nil, fmt.Errorf("tunnel: dialing rtnetlink: %w", err)
	}
	ctl, err := dialControl()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("tunnel: opening control socket: %w", err)
	}
	return newService(logf, conn, ctl), nil
}

// newService wires a Service to the given channels. Tests inject
// fakes here.
func newService(logf logger.Logf, conn nlConn, ctl devControl) *Service {
	return &Service{
		logf:    logf,
		conn:    conn,
		ctl:     ctl,
		tunnels: make(map[string]*Tunnel),
	}
}

// Close detaches every open tunnel, removing those marked
// delete-on-close, then shuts the kernel channels down. Cleanup
// continues past errors; the first one is returned.
func (s *Service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	var firstErr error
	for _, t := range s.tunnels {
		if err := s.closeTunnelLocked(t); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.mu.Unlock()

	s.conn.SetDeadline(time.Unix(0, 0)) // abort any exchange in flight
	if err := s.conn.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.ctl.close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Tunnels returns the open handles, sorted by name.
func (s *Service) Tunnels() []*Tunnel {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := make([]*Tunnel, 0, len(s.tunnels))
	for _, t := range s.tunnels {
		ts = append(ts, t)
	}
	slices.SortFunc(ts, func(a, b *Tunnel) int { return cmp.Compare(a.name, b.name) })
	return ts
}

// Create makes a new kernel ip6 tunnel named name over the interface
// with index device and returns its registered handle. The handle
// starts marked delete-on-close.
func (s *Service) Create(name string, device int, local, remote netip.Addr) (*Tunnel, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	if err := checkAddr(local); err != nil {
		return nil, err
	}
	if err := checkAddr(remote); err != nil {
		return nil, err
	}
	p := Parameters{Name: name, Device: device, Local: local, Remote: remote}
	p.defaults()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if _, ok := s.tunnels[name]; ok {
		return nil, ErrAlreadyExists
	}
	if err := s.linkAdd(&p); err != nil {
		return nil, err
	}
	index, err := s.ctl.ifindex(name)
	if err != nil {
		return nil, err
	}
	t := &Tunnel{
		svc:           s,
		name:          name,
		open:          true,
		index:         index,
		deleteOnClose: true,
		params:        p,
	}
	s.tunnels[name] = t
	s.logf("tunnel: created %v index %d", p, index)
	return t, nil
}

// Open attaches to an existing kernel ip6 tunnel by name. The handle
// mirrors the kernel-confirmed parameters and, like a created one,
// starts marked delete-on-close.
func (s *Service) Open(name string) (*Tunnel, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if _, ok := s.tunnels[name]; ok {
		return nil, ErrAlreadyExists
	}
	p, index, err := s.linkGet(name)
	if err != nil {
		return nil, err
	}
	t := &Tunnel{
		svc:           s,
		name:          name,
		open:          true,
		index:         index,
		deleteOnClose: true,
		params:        *p,
	}
	s.tunnels[name] = t
	s.logf("tunnel: attached %v index %d", *p, index)
	return t, nil
}

func (s *Service) closeTunnel(t *Tunnel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeTunnelLocked(t)
}

// closeTunnelLocked deregisters t and, when the handle is marked
// delete-on-close, removes the kernel interface. The registry entry
// goes away even if the kernel removal fails.
func (s *Service) closeTunnelLocked(t *Tunnel) error {
	t.mu.Lock()
	if !t.open {
		t.mu.Unlock()
		return nil
	}
	t.open = false
	del := t.deleteOnClose
	t.mu.Unlock()

	delete(s.tunnels, t.name)
	if !del {
		s.logf("tunnel: detached %s", t.name)
		return nil
	}
	if err := s.linkDel(t.name); err != nil {
		s.logf("tunnel: removing %s: %v", t.name, err)
		return err
	}
	s.logf("tunnel: removed %s", t.name)
	return nil
}

// Name returns the tunnel's interface name.
func (t *Tunnel) Name() string { return t.name }

// IsOpen reports whether the handle is registered and usable. It
// reflects handle state only, never the kernel's.
func (t *Tunnel) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open
}

// Close deregisters the handle and, if it is marked delete-on-close,
// removes the kernel interface. Closing a closed handle is a no-op.
func (t *Tunnel) Close() error { return t.svc.closeTunnel(t) }

// DeleteOnClose reports whether Close will remove the kernel
// interface.
func (t *Tunnel) DeleteOnClose() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.deleteOnClose
}

// SetDeleteOnClose marks whether Close removes the kernel interface
// and returns the previous setting.
func (t *Tunnel) SetDeleteOnClose(v bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	prev := t.deleteOnClose
	t.deleteOnClose = v
	return prev
}

// Parameters returns the last kernel-confirmed view of the tunnel.
func (t *Tunnel) Parameters() Parameters {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.params
}

// AddAddress assigns addr/prefixLen to the tunnel interface.
func (t *Tunnel) AddAddress(addr netip.Addr, prefixLen int) error {
	if !addr.Is6() || addr.Is4In6() {
		return fmt.Errorf("tunnel: %v is not an IPv6 address", addr)
	}
	if prefixLen < 0 || prefixLen > 128 {
		return fmt.Errorf("tunnel: bad prefix length %d", prefixLen)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open {
		return ErrClosed
	}
	if err := t.svc.addrAdd(t.index, addr, prefixLen); err != nil {
		return err
	}
	t.svc.logf("tunnel: %s address %s/%d", t.name, addr, prefixLen)
	return nil
}

// Index returns the kernel interface index, re-resolved on each call.
func (t *Tunnel) Index() (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open {
		return 0, ErrClosed
	}
	index, err := t.svc.ctl.ifindex(t.name)
	if err != nil {
		return 0, err
	}
	t.index = index
	return index, nil
}

// Enabled reports whether the interface is administratively up.
func (t *Tunnel) Enabled() (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open {
		return false, ErrClosed
	}
	fl, err := t.svc.ctl.flags(t.name)
	if err != nil {
		return false, err
	}
	return fl&unix.IFF_UP != 0, nil
}

// SetEnabled brings the interface administratively up or down by
// rewriting its flag word.
func (t *Tunnel) SetEnabled(up bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open {
		return ErrClosed
	}
	fl, err := t.svc.ctl.flags(t.name)
	if err != nil {
		return err
	}
	if up {
		fl |= unix.IFF_UP
	} else {
		fl &^= unix.IFF_UP
	}
	if err := t.svc.ctl.setFlags(t.name, fl); err != nil {
		return err
	}
	state := "down"
	if up {
		state = "up"
	}
	t.svc.logf("tunnel: %s %s", t.name, state)
	return nil
}

// DeviceID refreshes the mirror from the kernel and returns the index
// of the underlying interface the tunnel runs over.
func (t *Tunnel) DeviceID() (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open {
		return 0, ErrClosed
	}
	p, index, err := t.svc.linkGet(t.name)
	if err != nil {
		return 0, err
	}
	t.params = *p
	t.index = index
	return p.Device, nil
}

// Update reconfigures the tunnel in place and refreshes the mirror.
// The interface name is pinned; p.Name is ignored.
func (t *Tunnel) Update(p Parameters) error {
	if err := checkAddr(p.Local); err != nil {
		return err
	}
	if err := checkAddr(p.Remote); err != nil {
		return err
	}
	p.Name = t.name
	p.defaults()
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open {
		return ErrClosed
	}
	if err := t.svc.linkChange(t.index, &p); err != nil {
		return err
	}
	t.params = p
	t.svc.logf("tunnel: updated %v", p)
	return nil
}
