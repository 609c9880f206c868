/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package ircd

import (
	"bytes"
	"time"

	"github.com/coreircd/ircd/shared/pool"
)

// Limiter Constants
const (
	// Messages
	MaxMsgLength       int = 512   // bytes, excluding tags, per §4.1
	MaxTaggedMsgLength int = 8191  // bytes, including tags, server-initiated per §4.1
	MaxMsgParams           = 15
	MaxTagsLength      int = 4096

	// Channels
	MaxChanLength  = 200 // §3: canonical name max 200 chars
	MaxKickLength  = 400
	MaxTopicLength = 400
	MaxListItems   = 256
	MaxModeChange  = 6

	// Users
	MaxNickLength  = 30
	MaxUserLength  = 16
	MaxVHostLength = 64
	MaxJoinedChans = 128
	MaxAwayLength  = 200

	// Pools
	MessagePoolMax   = 4096
	BufferPoolMax    = 4096

	// Cache
	DefaultCacheCapacity = 10000

	// WHOWAS
	DefaultHistoryWindow = 100

	// Timing, per §5
	DefaultReadIdleTimeout  = 120 // seconds before a PING is sent
	DefaultPingGrace        = 30  // seconds to await PONG before disconnect
	DefaultBurstTimeout     = 60  // seconds to await EndOfBurst before link teardown
	DefaultShutdownDrain    = 5   // seconds write halves get to drain on shutdown

	// Sendq defaults, per §4.4/§4.7
	DefaultSendQMax      = 1 << 20 // 1 MiB per client connection
	DefaultPeerSendQMax  = 1 << 24 // 16 MiB per server link
	DefaultSendQGrace    = 10      // seconds before a flagged connection is closed
)

// ServerVersion is reported in reply to the VERSION command.
const ServerVersion = "coreircd-1.0"

// KeepAliveTimeout sets the read-idle timeout duration on client connections.
const KeepAliveTimeout time.Duration = time.Duration(DefaultReadIdleTimeout) * time.Second

// WriteTimeout sets the write timeout duration on client connections.
const WriteTimeout time.Duration = 5 * time.Second

// PingTimeout sets the PING/PONG grace duration on client connections.
const PingTimeout time.Duration = time.Duration(DefaultPingGrace) * time.Second

// WriteQueueLength sets the length of each connection's write queue channel.
const WriteQueueLength = 10

// bufpool is the global recycling pool for the bytes.Buffer instances used
// to stage rendered messages before handing them to a connection's write
// queue. bytes.Buffer's own Reset() method satisfies pool.Resettable.
var bufpool = pool.New[*bytes.Buffer](func() *bytes.Buffer {
	return new(bytes.Buffer)
})
