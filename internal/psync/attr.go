// Copyright 2025 The gopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package psync

import (
	"github.com/pkg/errors"

	"github.com/kolkov/gopthread/internal/errno"
)

// Kind selects mutex relock and unlock semantics.
type Kind int

const (
	// KindNormal deadlocks on relock by the owner.
	KindNormal Kind = iota
	// KindRecursive counts relocks by the owner.
	KindRecursive
	// KindErrorCheck reports relock with EDEADLK and foreign unlock with
	// EPERM.
	KindErrorCheck

	KindDefault = KindNormal
)

func (k Kind) String() string {
	switch k {
	case KindNormal:
		return "normal"
	case KindRecursive:
		return "recursive"
	case KindErrorCheck:
		return "errorcheck"
	default:
		return "unknown"
	}
}

// Scope is the process-sharing attribute. ScopeShared is accepted but the
// object remains visible to this process only.
type Scope int

const (
	ScopePrivate Scope = iota
	ScopeShared
)

func validScope(s Scope) error {
	if s != ScopePrivate && s != ScopeShared {
		return errors.Wrapf(errno.EINVAL, "unknown process-sharing scope %d", s)
	}
	return nil
}

// MutexAttr configures a mutex at Init.
type MutexAttr struct {
	Kind  Kind
	Scope Scope
}

func (a *MutexAttr) validate() error {
	switch a.Kind {
	case KindNormal, KindRecursive, KindErrorCheck:
	default:
		return errors.Wrapf(errno.EINVAL, "unknown mutex kind %d", a.Kind)
	}
	return validScope(a.Scope)
}

// CondAttr configures a condition variable at Init.
type CondAttr struct {
	Scope Scope
}

// RWLockAttr configures a read-write lock at Init.
type RWLockAttr struct {
	Scope Scope
}

// Object lifecycle shared by every primitive.
type objState uint8

const (
	objUninit objState = iota
	objLive
	objDestroyed
)

func (s objState) check(what string) error {
	switch s {
	case objLive:
		return nil
	case objDestroyed:
		return errors.Wrapf(errno.EINVAL, "%s used after destroy", what)
	default:
		return errors.Wrapf(errno.EINVAL, "%s not initialized", what)
	}
}
