// Copyright (c) GoPMIP Authors
// SPDX-License-Identifier: BSD-3-Clause

package mproto

import "fmt"

// MHType identifies a Mobility Header message type (RFC 6275,
// section 6.1.1).
type MHType uint8

const (
	TypeBindingUpdate MHType = 5
	TypeBindingAck    MHType = 6
)

func (t MHType) String() string {
	switch t {
	case TypeBindingUpdate:
		return "binding-update"
	case TypeBindingAck:
		return "binding-ack"
	default:
		return fmt.Sprintf("mh-type-%d", uint8(t))
	}
}

// Mobility option types carried by binding messages.
const (
	optPad1         = 0
	optPadN         = 1
	optMobileNodeID = 8  // RFC 4283
	optHandoff      = 23 // RFC 5213
	optAccessTech   = 24 // RFC 5213
)

// Status is a Binding Acknowledgement status code. Values below 128
// indicate acceptance (RFC 6275, section 6.1.8); RFC 5213 section 8.9
// registers the proxy-registration rejections from 152 up.
type Status uint8

const (
	StatusAccepted                 Status = 0
	StatusAcceptedNeedsPrefix      Status = 1
	StatusUnspecified              Status = 128
	StatusProhibited               Status = 129
	StatusInsufficientResources    Status = 130
	StatusHomeRegUnsupported       Status = 131
	StatusNotHomeSubnet            Status = 132
	StatusNotHomeAgent             Status = 133
	StatusDADFailed                Status = 134
	StatusSequenceOutOfWindow      Status = 135
	StatusProxyRegNotEnabled       Status = 152
	StatusNotLMAForMN              Status = 153
	StatusMAGNotAuthorized         Status = 154
	StatusNotAuthorizedForPrefix   Status = 155
	StatusTimestampMismatch        Status = 156
	StatusTimestampLowerThanPrev   Status = 157
	StatusMissingHomeNetworkPrefix Status = 158
	StatusBCEPBUPrefixesMismatch   Status = 159
	StatusMissingMNIdentifier      Status = 160
	StatusMissingHandoff           Status = 161
	StatusMissingAccessTech        Status = 162
)

// Accepted reports whether s indicates the binding was accepted.
func (s Status) Accepted() bool { return s < 128 }

func (s Status) String() string {
	switch s {
	case StatusAccepted:
		return "accepted"
	case StatusAcceptedNeedsPrefix:
		return "accepted, prefix discovery necessary"
	case StatusUnspecified:
		return "rejected, reason unspecified"
	case StatusProhibited:
		return "administratively prohibited"
	case StatusInsufficientResources:
		return "insufficient resources"
	case StatusHomeRegUnsupported:
		return "home registration not supported"
	case StatusNotHomeSubnet:
		return "not home subnet"
	case StatusNotHomeAgent:
		return "not home agent for this mobile node"
	case StatusDADFailed:
		return "duplicate address detection failed"
	case StatusSequenceOutOfWindow:
		return "sequence number out of window"
	case StatusProxyRegNotEnabled:
		return "proxy registration not enabled"
	case StatusNotLMAForMN:
		return "not LMA for this mobile node"
	case StatusMAGNotAuthorized:
		return "MAG not authorized for proxy registration"
	case StatusNotAuthorizedForPrefix:
		return "not authorized for home network prefix"
	case StatusTimestampMismatch:
		return "timestamp mismatch"
	case StatusTimestampLowerThanPrev:
		return "timestamp lower than previously accepted"
	case StatusMissingHomeNetworkPrefix:
		return "missing home network prefix option"
	case StatusBCEPBUPrefixesMismatch:
		return "BCE and PBU prefix sets do not match"
	case StatusMissingMNIdentifier:
		return "missing mobile node identifier option"
	case StatusMissingHandoff:
		return "missing handoff indicator option"
	case StatusMissingAccessTech:
		return "missing access technology type option"
	default:
		return fmt.Sprintf("status-%d", uint8(s))
	}
}

// HandoffIndicator describes the handoff hint carried in a Proxy
// Binding Update (RFC 5213, section 8.4).
type HandoffIndicator uint8

const (
	HandoffNewInterface      HandoffIndicator = 1 // attachment over a new interface
	HandoffBetweenInterfaces HandoffIndicator = 2
	HandoffBetweenMAGs       HandoffIndicator = 3
	HandoffUnknown           HandoffIndicator = 4
	HandoffNotChanged        HandoffIndicator = 5 // re-registration
)

func (hi HandoffIndicator) String() string {
	switch hi {
	case HandoffNewInterface:
		return "new-interface"
	case HandoffBetweenInterfaces:
		return "between-interfaces"
	case HandoffBetweenMAGs:
		return "between-mags"
	case HandoffUnknown:
		return "unknown"
	case HandoffNotChanged:
		return "not-changed"
	default:
		return fmt.Sprintf("handoff-%d", uint8(hi))
	}
}

// AccessTechnology identifies the access technology the mobile node
// is attached through (RFC 5213, section 8.5).
type AccessTechnology uint8

const (
	TechReserved AccessTechnology = 0
	TechVirtual  AccessTechnology = 1
	TechPPP      AccessTechnology = 2
	TechEthernet AccessTechnology = 3 // IEEE 802.3
	TechWLAN     AccessTechnology = 4 // IEEE 802.11a/b/g
	TechWiMAX    AccessTechnology = 5 // IEEE 802.16e
)

func (at AccessTechnology) String() string {
	switch at {
	case TechReserved:
		return "reserved"
	case TechVirtual:
		return "virtual"
	case TechPPP:
		return "ppp"
	case TechEthernet:
		return "ethernet"
	case TechWLAN:
		return "wlan"
	case TechWiMAX:
		return "wimax"
	default:
		return fmt.Sprintf("att-%d", uint8(at))
	}
}
