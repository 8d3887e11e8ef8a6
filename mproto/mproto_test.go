// Copyright (c) GoPMIP Authors
// SPDX-License-Identifier: BSD-3-Clause

package mproto

import (
	"bytes"
	"net/netip"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var testPeer = netip.MustParseAddr("2001:db8::1")

func testBindingInfo() *BindingInfo {
	return &BindingInfo{
		Peer:       testPeer,
		Sequence:   0x1234,
		Lifetime:   16 * time.Second,
		ID:         []byte("mn1"),
		Handoff:    HandoffNewInterface,
		AccessTech: TechEthernet,
	}
}

var pbuGolden = []byte{
	// mobility header: no payload, length 3 (32 octets), PBU, zero checksum
	0x3b, 0x03, 0x05, 0x00, 0x00, 0x00,
	// sequence 0x1234
	0x12, 0x34,
	// flags: A|P
	0x82, 0x00,
	// lifetime: 16 s in units of 4 s
	0x00, 0x04,
	// mobile node identifier option, NAI subtype, "mn1"
	0x08, 0x04, 0x01, 0x6d, 0x6e, 0x31,
	// handoff indicator option: new interface
	0x17, 0x02, 0x00, 0x01,
	// access technology type option: 802.3
	0x18, 0x02, 0x00, 0x03,
	// padding to the 8-octet boundary
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
}

var pbaGolden = []byte{
	// mobility header: no payload, length 3 (32 octets), PBA, zero checksum
	0x3b, 0x03, 0x06, 0x00, 0x00, 0x00,
	// status accepted, flags: P
	0x00, 0x20,
	// sequence 0x1234
	0x12, 0x34,
	// lifetime: 16 s in units of 4 s
	0x00, 0x04,
	// mobile node identifier option, NAI subtype, "mn1"
	0x08, 0x04, 0x01, 0x6d, 0x6e, 0x31,
	// handoff indicator option: new interface
	0x17, 0x02, 0x00, 0x01,
	// access technology type option: 802.3
	0x18, 0x02, 0x00, 0x03,
	// padding to the 8-octet boundary
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
}

func TestProxyBindingUpdate(t *testing.T) {
	m, err := ProxyBindingUpdate(testBindingInfo())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(m.Bytes(), pbuGolden) {
		t.Errorf("encoded PBU wrong:\n got: % x\nwant: % x", m.Bytes(), pbuGolden)
	}
	if m.Len() != len(pbuGolden) {
		t.Errorf("Len = %d; want %d", m.Len(), len(pbuGolden))
	}
	if m.Type() != TypeBindingUpdate {
		t.Errorf("Type = %v; want %v", m.Type(), TypeBindingUpdate)
	}
	if m.Dst() != testPeer {
		t.Errorf("Dst = %v; want %v", m.Dst(), testPeer)
	}
}

func TestProxyBindingAck(t *testing.T) {
	bi := testBindingInfo()
	bi.Status = StatusAccepted
	m, err := ProxyBindingAck(bi)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(m.Bytes(), pbaGolden) {
		t.Errorf("encoded PBA wrong:\n got: % x\nwant: % x", m.Bytes(), pbaGolden)
	}
}

func TestAckStatusPassthrough(t *testing.T) {
	// Registered and vendor codes alike must appear verbatim.
	for _, status := range []Status{StatusAccepted, StatusNotLMAForMN, Status(200)} {
		bi := testBindingInfo()
		bi.Status = status
		m, err := ProxyBindingAck(bi)
		if err != nil {
			t.Fatal(err)
		}
		if got := m.Bytes()[6]; got != byte(status) {
			t.Errorf("status byte = %d; want %d", got, status)
		}
	}
}

func TestBindingAlignment(t *testing.T) {
	for idLen := 0; idLen <= 64; idLen++ {
		bi := testBindingInfo()
		bi.ID = bytes.Repeat([]byte{'a'}, idLen)
		m, err := ProxyBindingUpdate(bi)
		if err != nil {
			t.Fatalf("idLen=%d: %v", idLen, err)
		}
		if m.Len()%8 != 0 {
			t.Fatalf("idLen=%d: Len = %d, not a multiple of 8", idLen, m.Len())
		}
		if want := bindingMessageLen(idLen); m.Len() != want {
			t.Fatalf("idLen=%d: Len = %d; want %d", idLen, m.Len(), want)
		}
		bnd, err := ParseBinding(m.Bytes())
		if err != nil {
			t.Fatalf("idLen=%d: parse: %v", idLen, err)
		}
		if !bytes.Equal(bnd.ID, bi.ID) {
			t.Fatalf("idLen=%d: parsed ID %q; want %q", idLen, bnd.ID, bi.ID)
		}
	}
}

func TestOversizedIdentifier(t *testing.T) {
	// 233 identifier bytes pad to exactly MaxMessageSize; one more
	// must be refused, as must anything larger.
	bi := testBindingInfo()
	bi.ID = bytes.Repeat([]byte{'a'}, 233)
	if _, err := ProxyBindingUpdate(bi); err != nil {
		t.Fatalf("233-byte identifier: %v", err)
	}
	bi.ID = bytes.Repeat([]byte{'a'}, 234)
	if _, err := ProxyBindingUpdate(bi); err != ErrMessageTooLong {
		t.Fatalf("234-byte identifier: err = %v; want ErrMessageTooLong", err)
	}
	bi.ID = bytes.Repeat([]byte{'a'}, 300)
	if _, err := ProxyBindingAck(bi); err != ErrMessageTooLong {
		t.Fatalf("300-byte identifier: err = %v; want ErrMessageTooLong", err)
	}
}

func TestLifetimeUnits(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want uint16
	}{
		{0, 0},
		{-time.Second, 0},
		{3999 * time.Millisecond, 0},
		{4 * time.Second, 1},
		{7999 * time.Millisecond, 1},
		{16 * time.Second, 4},
		{5 * time.Minute, 75},
		{262140 * time.Second, 0xffff},
		{300 * time.Hour, 0xffff},
	}
	for _, tt := range tests {
		if got := lifetimeUnits(tt.d); got != tt.want {
			t.Errorf("lifetimeUnits(%v) = %d; want %d", tt.d, got, tt.want)
		}
	}
}

func TestParseBindingUpdate(t *testing.T) {
	got, err := ParseBinding(pbuGolden)
	if err != nil {
		t.Fatal(err)
	}
	want := &Binding{
		Type:         TypeBindingUpdate,
		AckRequested: true,
		ProxyReg:     true,
		Sequence:     0x1234,
		Lifetime:     16 * time.Second,
		ID:           []byte("mn1"),
		Handoff:      HandoffNewInterface,
		AccessTech:   TechEthernet,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("parsed binding wrong (-want +got):\n%s", diff)
	}
}

func TestParseBindingAck(t *testing.T) {
	got, err := ParseBinding(pbaGolden)
	if err != nil {
		t.Fatal(err)
	}
	want := &Binding{
		Type:       TypeBindingAck,
		Status:     StatusAccepted,
		ProxyReg:   true,
		Sequence:   0x1234,
		Lifetime:   16 * time.Second,
		ID:         []byte("mn1"),
		Handoff:    HandoffNewInterface,
		AccessTech: TechEthernet,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("parsed binding wrong (-want +got):\n%s", diff)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		b    []byte
		want error
	}{
		{"empty", nil, ErrMessageTruncated},
		{"short", pbuGolden[:4], ErrMessageTruncated},
		{"wrong proto", append([]byte{0x3a}, pbuGolden[1:]...), ErrNotMobilityHeader},
		{"declared length past buffer", pbuGolden[:24], ErrMessageTruncated},
	}
	for _, tt := range tests {
		if _, err := ParseBinding(tt.b); err != tt.want {
			t.Errorf("%s: err = %v; want %v", tt.name, err, tt.want)
		}
	}

	unknown := append([]byte(nil), pbuGolden...)
	unknown[2] = 9
	if _, err := ParseBinding(unknown); err == nil {
		t.Error("unknown MH type: parse succeeded")
	}

	// Option length running past the padded end.
	bad := append([]byte(nil), pbuGolden...)
	bad[13] = 200
	if _, err := ParseBinding(bad); err != ErrMessageTruncated {
		t.Errorf("overlong option: err = %v; want ErrMessageTruncated", err)
	}
}

func TestIs(t *testing.T) {
	if !Is(pbuGolden) {
		t.Error("Is(pbuGolden) = false")
	}
	if Is(pbuGolden[:4]) {
		t.Error("Is(short) = true")
	}
	if Is([]byte("not a mobility header, clearly")) {
		t.Error("Is(garbage) = true")
	}
}

func TestBuilderAllocs(t *testing.T) {
	bi := testBindingInfo()
	var m Message
	allocs := testing.AllocsPerRun(1000, func() {
		var err error
		m, err = ProxyBindingUpdate(bi)
		if err != nil {
			t.Fatal(err)
		}
	})
	if allocs != 0 {
		t.Errorf("allocs = %v; want 0", allocs)
	}
	_ = m
}
