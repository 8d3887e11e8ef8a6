// Copyright (c) GoPMIP Authors
// SPDX-License-Identifier: BSD-3-Clause

package tunnel

import (
	"encoding/binary"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/jsimonetti/rtnetlink"
	"github.com/mdlayher/netlink"
	"github.com/vishvananda/netlink/nl"
	"golang.org/x/sys/unix"
)

// tunnelKind is the kernel link kind managed by this package.
const tunnelKind = "ip6tnl"

// nlConn is the sequence-correlated request channel to the kernel.
// *netlink.Conn implements it; tests substitute a fake.
type nlConn interface {
	Send(m netlink.Message) (netlink.Message, error)
	Receive() ([]netlink.Message, error)
	SetDeadline(t time.Time) error
	Close() error
}

func dialConn() (nlConn, error) {
	return netlink.Dial(unix.NETLINK_ROUTE, nil)
}

// exchange runs one request/reply round trip on the config channel.
// Replies are validated against the stamped request; a sequence or
// PID skew means the channel talked past the kernel and surfaces as
// ErrProtocolMismatch.
func (s *Service) exchange(typ netlink.HeaderType, flags netlink.HeaderFlags, payload []byte) ([]netlink.Message, error) {
	req := netlink.Message{
		Header: netlink.Header{Type: typ, Flags: flags},
		Data:   payload,
	}
	s.nlmu.Lock()
	defer s.nlmu.Unlock()
	sent, err := s.conn.Send(req)
	if err != nil {
		return nil, classify(err)
	}
	replies, err := s.conn.Receive()
	if err != nil {
		return nil, classify(err)
	}
	if err := netlink.Validate(sent, replies); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProtocolMismatch, err)
	}
	return replies, nil
}

func (s *Service) linkAdd(p *Parameters) error {
	payload, err := marshalLink(0, p)
	if err != nil {
		return err
	}
	if _, err := s.exchange(unix.RTM_NEWLINK, netlink.Request|netlink.Acknowledge|netlink.Create|netlink.Excl, payload); err != nil {
		return fmt.Errorf("creating %s: %w", p.Name, err)
	}
	return nil
}

func (s *Service) linkChange(index int, p *Parameters) error {
	payload, err := marshalLink(index, p)
	if err != nil {
		return err
	}
	if _, err := s.exchange(unix.RTM_NEWLINK, netlink.Request|netlink.Acknowledge, payload); err != nil {
		return fmt.Errorf("changing %s: %w", p.Name, err)
	}
	return nil
}

func (s *Service) linkDel(name string) error {
	msg := rtnetlink.LinkMessage{
		Family:     unix.AF_UNSPEC,
		Attributes: &rtnetlink.LinkAttributes{Name: name},
	}
	payload, err := msg.MarshalBinary()
	if err != nil {
		return err
	}
	if _, err := s.exchange(unix.RTM_DELLINK, netlink.Request|netlink.Acknowledge, payload); err != nil {
		return fmt.Errorf("removing %s: %w", name, err)
	}
	return nil
}

// linkGet looks a link up by name and returns its tunnel parameters
// and interface index.
func (s *Service) linkGet(name string) (*Parameters, int, error) {
	msg := rtnetlink.LinkMessage{
		Family:     unix.AF_UNSPEC,
		Attributes: &rtnetlink.LinkAttributes{Name: name},
	}
	payload, err := msg.MarshalBinary()
	if err != nil {
		return nil, 0, err
	}
	replies, err := s.exchange(unix.RTM_GETLINK, netlink.Request, payload)
	if err != nil {
		return nil, 0, fmt.Errorf("looking up %s: %w", name, err)
	}
	for _, m := range replies {
		if m.Header.Type != unix.RTM_NEWLINK {
			continue
		}
		var lm rtnetlink.LinkMessage
		if err := lm.UnmarshalBinary(m.Data); err != nil {
			return nil, 0, fmt.Errorf("parsing link reply for %s: %w", name, err)
		}
		p, err := paramsFromLink(name, &lm)
		if err != nil {
			return nil, 0, err
		}
		return p, int(lm.Index), nil
	}
	return nil, 0, fmt.Errorf("%w: no link in reply for %s", ErrProtocolMismatch, name)
}

func (s *Service) addrAdd(index int, addr netip.Addr, prefixLen int) error {
	msg := rtnetlink.AddressMessage{
		Family:       unix.AF_INET6,
		PrefixLength: uint8(prefixLen),
		Index:        uint32(index),
		Attributes: &rtnetlink.AddressAttributes{
			Address: net.IP(addr.AsSlice()),
		},
	}
	payload, err := msg.MarshalBinary()
	if err != nil {
		return err
	}
	if _, err := s.exchange(unix.RTM_NEWADDR, netlink.Request|netlink.Acknowledge|netlink.Create|netlink.Excl, payload); err != nil {
		return fmt.Errorf("adding %s/%d: %w", addr, prefixLen, err)
	}
	return nil
}

// marshalLink encodes a link configuration message carrying the
// ip6tnl parameters as nested link info.
func marshalLink(index int, p *Parameters) ([]byte, error) {
	data, err := iptunData(p)
	if err != nil {
		return nil, err
	}
	msg := rtnetlink.LinkMessage{
		Family: unix.AF_UNSPEC,
		Index:  uint32(index),
		Attributes: &rtnetlink.LinkAttributes{
			Name: p.Name,
			Info: &rtnetlink.LinkInfo{Kind: tunnelKind, Data: data},
		},
	}
	return msg.MarshalBinary()
}

// iptunData encodes Parameters as IFLA_IPTUN_* attributes. The flow
// info word travels big endian on the wire, unlike the other scalars
// which are host order.
func iptunData(p *Parameters) ([]byte, error) {
	ae := netlink.NewAttributeEncoder()
	if p.Device != 0 {
		ae.Uint32(nl.IFLA_IPTUN_LINK, uint32(p.Device))
	}
	local := p.Local.As16()
	remote := p.Remote.As16()
	ae.Bytes(nl.IFLA_IPTUN_LOCAL, local[:])
	ae.Bytes(nl.IFLA_IPTUN_REMOTE, remote[:])
	ae.Uint8(nl.IFLA_IPTUN_TTL, p.HopLimit)
	ae.Uint8(nl.IFLA_IPTUN_ENCAP_LIMIT, p.EncapLimit)
	var flowInfo [4]byte
	binary.BigEndian.PutUint32(flowInfo[:], p.FlowInfo)
	ae.Bytes(nl.IFLA_IPTUN_FLOWINFO, flowInfo[:])
	ae.Uint32(nl.IFLA_IPTUN_FLAGS, p.Flags)
	ae.Uint8(nl.IFLA_IPTUN_PROTO, p.Proto)
	return ae.Encode()
}

// paramsFromLink extracts tunnel parameters from a kernel link reply,
// rejecting links of any other kind.
func paramsFromLink(name string, lm *rtnetlink.LinkMessage) (*Parameters, error) {
	attrs := lm.Attributes
	if attrs == nil || attrs.Info == nil || attrs.Info.Kind != tunnelKind {
		return nil, fmt.Errorf("%w: %s", ErrNotTunnel, name)
	}
	p := &Parameters{Name: name}
	ad, err := netlink.NewAttributeDecoder(attrs.Info.Data)
	if err != nil {
		return nil, fmt.Errorf("decoding link info for %s: %w", name, err)
	}
	for ad.Next() {
		switch ad.Type() {
		case nl.IFLA_IPTUN_LINK:
			p.Device = int(ad.Uint32())
		case nl.IFLA_IPTUN_LOCAL:
			if a, ok := netip.AddrFromSlice(ad.Bytes()); ok {
				p.Local = a
			}
		case nl.IFLA_IPTUN_REMOTE:
			if a, ok := netip.AddrFromSlice(ad.Bytes()); ok {
				p.Remote = a
			}
		case nl.IFLA_IPTUN_TTL:
			p.HopLimit = ad.Uint8()
		case nl.IFLA_IPTUN_ENCAP_LIMIT:
			p.EncapLimit = ad.Uint8()
		case nl.IFLA_IPTUN_FLOWINFO:
			if b := ad.Bytes(); len(b) == 4 {
				p.FlowInfo = binary.BigEndian.Uint32(b)
			}
		case nl.IFLA_IPTUN_FLAGS:
			p.Flags = ad.Uint32()
		case nl.IFLA_IPTUN_PROTO:
			p.Proto = ad.Uint8()
		}
	}
	if err := ad.Err(); err != nil {
		return nil, fmt.Errorf("decoding link info for %s: %w", name, err)
	}
	return p, nil
}
