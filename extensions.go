/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package ircd

import "sync"

// Veto is the outcome an extension hook returns to the dispatcher:
// Continue lets remaining hooks and the default handler run, Handled stops
// the remaining hooks in the same category and skips the default handler,
// and Rejected aborts the whole chain immediately. The user-lifecycle
// dispatchers stop early only on Rejected.
type Veto uint8

const (
	VetoContinue Veto = iota
	VetoHandled
	VetoRejected
)

// UserExtension observes and can veto user-lifecycle transitions:
// registration completing, nick changes, and disconnection.
type UserExtension interface {
	Name() string
	OnUserRegister(user *User) Veto
	OnUserNickChange(user *User, oldNick string) Veto
	OnUserQuit(user *User, reason string)
}

// MessageExtension observes and can veto ordinary client-to-server command
// processing, with separate pre/post hooks around the router's dispatch.
type MessageExtension interface {
	Name() string
	PreProcess(ctx *MessageContext) Veto
	PostProcess(ctx *MessageContext)
}

// MessageTagExtension supplies or consumes a single IRCv3 message tag key.
// Registration order determines precedence under the first-writer-wins
// collision rule enforced by the extension registry below.
type MessageTagExtension interface {
	Name() string
	TagKey() string
	RenderTag(ctx *MessageContext) (value string, present bool)
}

// BurstExtension contributes additional state to, or consumes additional
// state from, the server-to-server burst (§4.7), beyond the core
// user/channel/server records.
type BurstExtension interface {
	Name() string
	ContributeBurst(peer *RemoteServer) []*Message
	ConsumeBurst(peer *RemoteServer, msg *Message) Veto
}

// ExtensionRegistry holds every registered extension, dispatched in
// registration order. A single RWMutex is adequate here since registration
// happens at startup and dispatch is read-only thereafter; per-category
// slices avoid a type switch on every message.
type ExtensionRegistry struct {
	mu sync.RWMutex

	users    []UserExtension
	messages []MessageExtension
	tags     []MessageTagExtension
	tagKeys  map[string]string // tag key -> owning extension name, first writer wins
	bursts   []BurstExtension
}

// NewExtensionRegistry returns an empty registry.
func NewExtensionRegistry() *ExtensionRegistry {
	return &ExtensionRegistry{
		tagKeys: make(map[string]string),
	}
}

// RegisterUser appends a UserExtension, to be invoked after any
// already-registered ones.
func (r *ExtensionRegistry) RegisterUser(ext UserExtension) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, ext)
}

// RegisterMessage appends a MessageExtension.
func (r *ExtensionRegistry) RegisterMessage(ext MessageExtension) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, ext)
}

// RegisterTag appends a MessageTagExtension, rejecting it if another
// extension already owns that tag key (first-writer-wins).
func (r *ExtensionRegistry) RegisterTag(ext MessageTagExtension) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := ext.TagKey()
	if owner, exists := r.tagKeys[key]; exists && owner != ext.Name() {
		return NewKindedError(KindExtensionFailure, Error("tag key \""+key+"\" already claimed by "+owner))
	}

	r.tagKeys[key] = ext.Name()
	r.tags = append(r.tags, ext)
	return nil
}

// RegisterBurst appends a BurstExtension.
func (r *ExtensionRegistry) RegisterBurst(ext BurstExtension) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bursts = append(r.bursts, ext)
}

// DispatchUserRegister runs every UserExtension's OnUserRegister hook in
// order, stopping at the first Rejected.
func (r *ExtensionRegistry) DispatchUserRegister(user *User) Veto {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ext := range r.users {
		if v := ext.OnUserRegister(user); v == VetoRejected {
			return v
		}
	}
	return VetoContinue
}

// DispatchUserNickChange runs every UserExtension's OnUserNickChange hook.
func (r *ExtensionRegistry) DispatchUserNickChange(user *User, oldNick string) Veto {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ext := range r.users {
		if v := ext.OnUserNickChange(user, oldNick); v == VetoRejected {
			return v
		}
	}
	return VetoContinue
}

// DispatchUserQuit notifies every UserExtension of a disconnect. There is no
// veto: a quit cannot be refused once decided.
func (r *ExtensionRegistry) DispatchUserQuit(user *User, reason string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ext := range r.users {
		ext.OnUserQuit(user, reason)
	}
}

// PreProcess runs every MessageExtension's PreProcess hook before the
// router's default handler, stopping the chain early on Handled or Rejected.
func (r *ExtensionRegistry) PreProcess(ctx *MessageContext) Veto {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ext := range r.messages {
		switch ext.PreProcess(ctx) {
		case VetoRejected:
			return VetoRejected
		case VetoHandled:
			return VetoHandled
		}
	}
	return VetoContinue
}

// PostProcess runs every MessageExtension's PostProcess hook after dispatch.
func (r *ExtensionRegistry) PostProcess(ctx *MessageContext) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ext := range r.messages {
		ext.PostProcess(ctx)
	}
}

// RenderTags evaluates every registered tag extension for ctx and returns
// the resulting tag map, ready to attach to an outbound Message.
func (r *ExtensionRegistry) RenderTags(ctx *MessageContext) map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.tags) == 0 {
		return nil
	}

	out := make(map[string]string, len(r.tags))
	for _, ext := range r.tags {
		if value, present := ext.RenderTag(ctx); present {
			out[ext.TagKey()] = value
		}
	}
	return out
}

// ContributeBurst collects every BurstExtension's additional burst messages
// for peer.
func (r *ExtensionRegistry) ContributeBurst(peer *RemoteServer) []*Message {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var msgs []*Message
	for _, ext := range r.bursts {
		msgs = append(msgs, ext.ContributeBurst(peer)...)
	}
	return msgs
}

// ConsumeBurst offers an inbound burst message to every BurstExtension in
// turn, stopping at the first one that claims it (Handled) or rejects it.
func (r *ExtensionRegistry) ConsumeBurst(peer *RemoteServer, msg *Message) Veto {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, ext := range r.bursts {
		if v := ext.ConsumeBurst(peer, msg); v != VetoContinue {
			return v
		}
	}
	return VetoContinue
}
