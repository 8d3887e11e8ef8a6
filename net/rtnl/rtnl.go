// Copyright (c) GoPMIP Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package rtnl describes kernel route table entries the way the
// rtnetlink protocol does and builds route requests from them.
// Everything beyond this doc is Linux-only.
package rtnl
