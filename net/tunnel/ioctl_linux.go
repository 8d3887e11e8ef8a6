// Copyright (c) GoPMIP Authors
// SPDX-License-Identifier: BSD-3-Clause

package tunnel

import (
	"golang.org/x/sys/unix"
)

// devControl is the per-device control channel for flag and index
// queries. ioctlControl implements it over a datagram socket; tests
// substitute a fake.
type devControl interface {
	flags(name string) (uint16, error)
	setFlags(name string, flags uint16) error
	ifindex(name string) (int, error)
	close() error
}

type ioctlControl struct {
	fd int
}

func dialControl() (devControl, error) {
	fd, err := unix.Socket(unix.AF_INET6, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, err
	}
	return &ioctlControl{fd: fd}, nil
}

func (c *ioctlControl) flags(name string) (uint16, error) {
	ifr, err := unix.NewIfreq(name)
	if err != nil {
		return 0, err
	}
	if err := unix.IoctlIfreq(c.fd, unix.SIOCGIFFLAGS, ifr); err != nil {
		return 0, classify(err)
	}
	return ifr.Uint16(), nil
}

func (c *ioctlControl) setFlags(name string, flags uint16) error {
	ifr, err := unix.NewIfreq(name)
	if err != nil {
		return err
	}
	ifr.SetUint16(flags)
	if err := unix.IoctlIfreq(c.fd, unix.SIOCSIFFLAGS, ifr); err != nil {
		return classify(err)
	}
	return nil
}

func (c *ioctlControl) ifindex(name string) (int, error) {
	ifr, err := unix.NewIfreq(name)
	if err != nil {
		return 0, err
	}
	if err := unix.IoctlIfreq(c.fd, unix.SIOCGIFINDEX, ifr); err != nil {
		return 0, classify(err)
	}
	return int(ifr.Uint32()), nil
}

func (c *ioctlControl) close() error {
	return unix.Close(c.fd)
}
