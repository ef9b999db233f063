// Mgmt
// Copyright (C) 2013-2020+ James Shubin and the project contributors
// Written by James Shubin <james@shubin.ca> and the project contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package errwrap contains the error helpers the engine uses to accumulate
// build-time errors across an entire graph description before reporting
// them, instead of stopping at the first bad vertex. A Builder call that
// fails doesn't abort the chain (AddVertex, Dependency, On, ... all still
// return a usable *VertexBuilder); every failure is appended here and
// surfaced once, from Build, as a single multierror a caller can range
// over.
package errwrap

import (
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// Wrapf annotates err with a formatted message, same as errors.Wrapf, but
// passes a nil err through unchanged instead of producing a non-nil error
// out of nothing.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// Append safely folds err onto reterr, either of which may be nil: a nil
// err is a no-op, a nil reterr is replaced by err, and two real errors
// combine into a multierror.Error whose Errors slice grows by one each
// call. Builder.fail uses this as its entire error-accumulation strategy.
func Append(reterr, err error) error {
	if err == nil {
		return reterr
	}
	if reterr == nil {
		return err
	}
	return multierror.Append(reterr, err)
}

// Causes flattens err back into its individual causes: a single error
// slice of length one if err isn't a multierror.Error, or its Errors field
// if it is. Build-failure reporting (e.g. cmd/anyflowd) uses this to print
// one line per distinct problem instead of one run-on message.
func Causes(err error) []error {
	if err == nil {
		return nil
	}
	if merr, ok := err.(*multierror.Error); ok {
		return merr.Errors
	}
	return []error{err}
}

// String returns a string representation of the error. In particular, if
// the error is nil, it returns an empty string instead of panicking.
func String(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
