// Copyright 2024 The RVDBG Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package rvdbgerr defines the closed set of error kinds used across every
// layer of the debug controller, from the wire engine up to the session
// API, plus the bounded error-detail string each failing layer attaches.
package rvdbgerr

import "fmt"

// Kind is a closed set of error categories. New values are never added by
// a caller; every layer of this module returns one of these.
type Kind uint8

const (
	// Ok is never returned as an error; it exists so Kind has a defined
	// zero value that callers can compare against "no error".
	Ok Kind = iota
	Timeout
	Fault
	Protocol
	Parity
	Wait
	NotConnected
	NotInitialized
	NotHalted
	AlreadyHalted
	InvalidParam
	InvalidState
	Alignment
	ResourceBusy
	AbstractCmd
	Verify
)

//go:generate stringer -type=Kind

func (k Kind) String() string {
	switch k {
	case Ok:
		return "Ok"
	case Timeout:
		return "Timeout"
	case Fault:
		return "Fault"
	case Protocol:
		return "Protocol"
	case Parity:
		return "Parity"
	case Wait:
		return "Wait"
	case NotConnected:
		return "NotConnected"
	case NotInitialized:
		return "NotInitialized"
	case NotHalted:
		return "NotHalted"
	case AlreadyHalted:
		return "AlreadyHalted"
	case InvalidParam:
		return "InvalidParam"
	case InvalidState:
		return "InvalidState"
	case Alignment:
		return "Alignment"
	case ResourceBusy:
		return "ResourceBusy"
	case AbstractCmd:
		return "AbstractCmd"
	case Verify:
		return "Verify"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// maxDetail bounds the formatted detail string, per spec: "a formatted
// error-detail string (bounded, e.g. 128 bytes)".
const maxDetail = 128

// Error is the concrete error type returned by every layer. The Kind is
// the stable identity a caller should switch on; Detail is free text for
// logging and is never machine-parsed.
type Error struct {
	Kind   Kind
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// New builds an Error, truncating Detail to the bounded length.
func New(k Kind, format string, args ...interface{}) *Error {
	d := fmt.Sprintf(format, args...)
	if len(d) > maxDetail {
		d = d[:maxDetail]
	}
	return &Error{Kind: k, Detail: d}
}

// Is reports whether err is an *Error of the given Kind. It is meant for
// use with errors.Is-style call sites, e.g.:
//
//	if rvdbgerr.Is(err, rvdbgerr.AlreadyHalted) { ... }
func Is(err error, k Kind) bool {
	var e *Error
	if ae, ok := err.(*Error); ok {
		e = ae
	} else {
		return false
	}
	return e.Kind == k
}

// As extracts the Kind of err, returning Ok, false if err is nil or not
// one of ours.
func As(err error) (Kind, bool) {
	e, ok := err.(*Error)
	if !ok || e == nil {
		return Ok, false
	}
	return e.Kind, true
}
