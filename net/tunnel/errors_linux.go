// Copyright (c) GoPMIP Authors
// SPDX-License-Identifier: BSD-3-Clause

package tunnel

import (
	"errors"
	"fmt"
	"syscall"
)

// classify folds a kernel errno into this package's error taxonomy.
// The original error stays in the chain, so errors.Is still matches
// the errno itself.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return err
	}
	switch errno {
	case syscall.ENODEV, syscall.ENOENT, syscall.ENXIO:
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case syscall.EEXIST:
		return fmt.Errorf("%w: %w", ErrAlreadyExists, err)
	case syscall.EPERM, syscall.EACCES:
		return fmt.Errorf("%w: %w", ErrPermission, err)
	case syscall.EAGAIN, syscall.EINTR, syscall.EBUSY, syscall.ENOBUFS, syscall.ENOMEM:
		return fmt.Errorf("%w: %w", ErrTransient, err)
	}
	return err
}
