/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package ircd

// User permission levels on the server. These gate the dynamic mode registry
// (usermode.go) and are distinct from the operator capability flags below,
// which gate specific operator-only commands per §4.5/§6.
const (
	UPermBan uint8 = iota
	UPermNone
	UPermUser
	UPermHelpOp
	UPermNetOp
	UPermAdmin
	UPermServer
)

// OperFlag is a single granted operator capability, per §6's enumerated flag
// set. A user's operator status is the union of flags granted at OPER time;
// the derived 'o' user mode (§3 invariant 4) is set iff this set is non-empty.
type OperFlag uint32

const (
	OperGlobalOper OperFlag = 1 << iota
	OperLocalOper
	OperRemoteConnect
	OperLocalConnect
	OperAdministrator
	OperSquit
)

// operFlagNames maps each flag to the single-letter token used in command
// preconditions (e.g. SQUIT requires 'S'), matching the style of §4.5's
// worked example.
var operFlagNames = map[OperFlag]byte{
	OperGlobalOper:    'O',
	OperLocalOper:     'o',
	OperRemoteConnect: 'R',
	OperLocalConnect:  'r',
	OperAdministrator: 'A',
	OperSquit:         'S',
}

// OperFlagSet is the set of operator capabilities granted to a user.
type OperFlagSet uint32

// Has reports whether every flag in want is present in the set.
func (s OperFlagSet) Has(want OperFlag) bool {
	return OperFlagSet(want)&s == OperFlagSet(want)
}

// Empty reports whether no operator flags are granted.
func (s OperFlagSet) Empty() bool {
	return s == 0
}

// Grant returns a new set with flag added.
func (s OperFlagSet) Grant(flag OperFlag) OperFlagSet {
	return s | OperFlagSet(flag)
}

// Revoke returns a new set with flag removed.
func (s OperFlagSet) Revoke(flag OperFlag) OperFlagSet {
	return s &^ OperFlagSet(flag)
}

// String renders the set as its letter tokens, e.g. "OAS".
func (s OperFlagSet) String() string {
	out := make([]byte, 0, len(operFlagNames))
	for _, flag := range []OperFlag{
		OperGlobalOper, OperLocalOper, OperRemoteConnect,
		OperLocalConnect, OperAdministrator, OperSquit,
	} {
		if s.Has(flag) {
			out = append(out, operFlagNames[flag])
		}
	}
	return string(out)
}
