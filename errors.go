/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package ircd

// Error is a workaround to allow for immutable error strings
// which satisfy the error interface.
type Error string

func (err Error) Error() string {
	return string(err)
}

func (err Error) String() string {
	return string(err)
}

// Immutable error strings
const (
	ErrMessageTooShort Error = "did not receive enough data from the client"
	ErrMessageTooLong  Error = "received data from the client is too long"
	ErrTagsTooLong     Error = "message tags section exceeds the allowed length"
	ErrWhitespace      Error = "all whitespace"
	ErrPrefixed        Error = "prefixed message from client"
	ErrInvalidCapCmd   Error = "invalid CAP command"
	ErrMissingParams   Error = "missing parameters"
	ErrTooManyParams   Error = "too many parameters"
	ErrUserInUse       Error = "this username is currently in use"
	ErrUserRestricted  Error = "this username is restricted"
	ErrUserAlreadySet  Error = "you have already registered"
	ErrNickInUse       Error = "this nickname is currently in use"
	ErrNickRestricted  Error = "this nickname is restricted"
	ErrNickAlreadySet  Error = "you already have that nickname"
	ErrInvalidNick     Error = "erroneous nickname"
	ErrInvalidChannel  Error = "invalid channel name"
	ErrNotImplemented  Error = "that command is not yet implemented"
	ErrNotRegistered   Error = "you must register first"
	ErrNoNickGiven     Error = "no nickname given"
	ErrNoSuchNick      Error = "nick not found"
	ErrNoSuchChan      Error = "channel not found"
	ErrNoSuchServer    Error = "server not found"
	ErrInsuffPerms     Error = "insufficient permissions"
	ErrUnknownMode     Error = "unknown mode"
	ErrModeAlreadySet  Error = "mode already set"
	ErrModeNotSet      Error = "mode is not set"
	ErrNotFound        Error = "entity not found"
	ErrAlreadyExists   Error = "entity already exists"
	ErrSendQExceeded   Error = "send queue exceeded"
	ErrBurstTimeout    Error = "burst completion timed out"
	ErrMalformedBurst  Error = "malformed burst message"
	ErrLinkAuth        Error = "peer link authentication failed"
	ErrConfigInvalid   Error = "configuration is invalid"
	ErrServerClosed    Error = "ircd: server closed"
)

// ErrorKind abstractly classifies an error for propagation-policy purposes:
// client-visible-but-survivable, link-fatal, or internal-only.
type ErrorKind uint8

// Error kind enumeration.
const (
	KindProtocolParse ErrorKind = iota
	KindRegistrationPrecondition
	KindNickInUse
	KindInvalidNickChannel
	KindPermissionDenied
	KindLinkAuth
	KindLinkTransport
	KindSendQueueExceeded
	KindBurstTimeout
	KindConfigInvalid
	KindCacheMiss // internal only, never surfaced to a client or peer
	KindExtensionFailure
)

// String renders a human-readable label for a kind, used in log fields.
func (k ErrorKind) String() string {
	switch k {
	case KindProtocolParse:
		return "protocol_parse"
	case KindRegistrationPrecondition:
		return "registration_precondition"
	case KindNickInUse:
		return "nick_in_use"
	case KindInvalidNickChannel:
		return "invalid_nick_or_channel"
	case KindPermissionDenied:
		return "permission_denied"
	case KindLinkAuth:
		return "link_auth"
	case KindLinkTransport:
		return "link_transport"
	case KindSendQueueExceeded:
		return "sendq_exceeded"
	case KindBurstTimeout:
		return "burst_timeout"
	case KindConfigInvalid:
		return "config_invalid"
	case KindCacheMiss:
		return "cache_miss"
	case KindExtensionFailure:
		return "extension_failure"
	default:
		return "unknown"
	}
}

// KindedError pairs an abstract kind with the underlying cause so dispatcher
// and link-teardown code can switch on kind without string-matching errors.
type KindedError struct {
	Kind  ErrorKind
	Cause error
}

func (e *KindedError) Error() string {
	if e.Cause == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Cause.Error()
}

func (e *KindedError) Unwrap() error {
	return e.Cause
}

// NewKindedError wraps cause with an abstract kind.
func NewKindedError(kind ErrorKind, cause error) *KindedError {
	return &KindedError{Kind: kind, Cause: cause}
}
