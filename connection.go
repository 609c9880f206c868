/*
   Copyright (c) 2020, btnmasher
   All rights reserved.

   Redistribution and use in source and binary forms, with or without modification, are permitted provided that
   the following conditions are met:

   1. Redistributions of source code must retain the above copyright notice, this list of conditions and the
      following disclaimer.

   2. Redistributions in binary form must reproduce the above copyright notice, this list of conditions and
      the following disclaimer in the documentation and/or other materials provided with the distribution.

   3. Neither the name of the copyright holder nor the names of its contributors may be used to endorse or
      promote products derived from this software without specific prior written permission.

   THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS" AND ANY EXPRESS OR IMPLIED
   WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A
   PARTICULAR PURPOSE ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE LIABLE FOR
   ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT LIMITED
   TO, PROCUREMENT OF SUBSTITUTE GOODS OR SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS INTERRUPTION)
   HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING
   NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE OF THIS SOFTWARE, EVEN IF ADVISED OF THE
   POSSIBILITY OF SUCH DAMAGE.
*/

package ircd

import (
	"bufio"
	"bytes"
	"crypto/tls"
	"net"
	"runtime"
	"sync"
	"time"

	"github.com/btnmasher/random"

	"github.com/coreircd/ircd/shared/concurrentmap"
)

// Conn represents the server side of an IRC connection, whether from an
// ordinary client or a server-to-server peer (wrapped by ServerLink).
type Conn struct {
	sync.RWMutex

	// daemon is the Daemon on which the connection arrived. Immutable;
	// never nil.
	daemon *Daemon

	// sock is the underlying network connection. This is never wrapped by
	// other types and is the value given out to callers needing the raw
	// socket. It is usually of type *net.TCPConn or *tls.Conn.
	sock net.Conn

	// remAddr is sock.RemoteAddr().String(). It is not populated
	// synchronously inside the Listener's Accept goroutine, as some
	// implementations block. It is populated immediately inside serve().
	remAddr string

	user         *User
	channels     concurrentmap.ConcurrentMap[string, *Channel] // keyed by CaseFold(name)
	capabilities *Capabilities
	reg          *Registration
	sasl         SaslState
	tlsState     *tls.ConnectionState

	// pendingPassword holds the most recent PASS argument, consulted by
	// HandleServer to authenticate an incoming server-to-server link
	// (§4.7); client registration does not otherwise need the value kept
	// around once Registration.MarkPasswordProvided has recorded it.
	pendingPassword string

	// link is non-nil once this connection has completed the SERVER
	// handshake and become a peer link rather than an ordinary client.
	link  *ServerLink
	burst *BurstSession

	incoming *bufio.Scanner
	outgoing *bufio.Writer

	writeQueue chan *bytes.Buffer

	heartbeat *time.Timer

	lastPingSent string
	lastPingRecv string

	kill chan bool

	timeoutForced bool
}

// NewConn initializes a new instance of Conn.
func NewConn(daemon *Daemon, sck net.Conn) *Conn {
	conn := &Conn{
		daemon:       daemon,
		sock:         sck,
		heartbeat:    time.NewTimer(PingTimeout),
		channels:     concurrentmap.New[string, *Channel](),
		capabilities: &Capabilities{},
		reg:          &Registration{},
		incoming:     bufio.NewScanner(sck),
		outgoing:     bufio.NewWriter(sck),
		writeQueue:   make(chan *bytes.Buffer, WriteQueueLength),
		kill:         make(chan bool, 5),
	}
	conn.user = NewUser("", "", "", "")
	conn.user.conn = conn
	conn.user.SetServer(daemon.Hostname())
	return conn
}

func serve(conn *Conn) {
	defer conn.cleanup()
	conn.start()

	defer func() {
		if err := recover(); err != nil {
			const size = 64 << 10
			buf := make([]byte, size)
			buf = buf[:runtime.Stack(buf, false)]
			log.Errorf("irc: Panic serving %v: %v\n%s", conn.remAddr, err, buf)
			conn.doQuit("Server Error.")
		}

		conn.sock.Close()
	}()

	if tlsConn, ok := conn.sock.(*tls.Conn); ok {
		conn.setDeadlines()

		if err := tlsConn.Handshake(); err != nil {
			log.Errorf("irc: TLS handshake error from [%s]: %s", conn.remAddr, err)
			return
		}

		state := tlsConn.ConnectionState()
		conn.tlsState = &state
	}

	go conn.writeLoop() // Runs until conn.kill channel is signaled
	conn.readLoop()     // Blocks until error
	log.Debugf("irc: readLoop() exited for [%s]", conn.remAddr)
}

func (conn *Conn) start() {
	conn.Lock()
	defer conn.Unlock()

	// This can block until the address is acquired, so just wait.
	conn.remAddr = conn.sock.RemoteAddr().String()

	log.Debugf("irc: Got new connection remote address: [%s]", conn.remAddr)

	conn.daemon.Conns.Set(conn.remAddr, conn)
}

func (conn *Conn) readLoop() {
	for {
		conn.setReadDeadline()

		if !conn.incoming.Scan() { // Will block here until there is a read or a timeout.
			defer func() { conn.kill <- true }()

			if err := conn.incoming.Err(); err != nil {
				if neterr, ok := err.(net.Error); ok && neterr.Timeout() {
					if !conn.timeoutForced {
						log.Infof("irc: Connection timed out for [%s]", conn.remAddr)
						conn.doQuit("Connection timeout.")
					}
				} else {
					log.Error(err)
				}
			}

			log.Debugf("irc: Closing socket for [%s]", conn.remAddr)

			if err := conn.sock.Close(); err != nil {
				log.Errorf("irc: Socket error when trying to close socket from [%s]: %s", conn.remAddr, err)
			}

			return
		}

		data := conn.incoming.Text()
		log.Debugf("irc: [%s]->[SERVER]: %s", conn.remAddr, data)
		msg, err := Parse(data)

		if err != nil {
			log.Errorf("irc: Error parsing message from client [%s]: %s", conn.remAddr, err)
			continue
		}

		conn.heartbeat.Reset(PingTimeout)
		conn.daemon.Stats.CountCommand(msg.Command)
		conn.daemon.Router.RouteCommand(conn, msg)
	}
}

func (conn *Conn) writeLoop() {
	for {
		select {
		case <-conn.kill:
			log.Debug("irc: conn.kill signal received in writeLoop(), closing goroutine.")
			conn.forceTimeout()
			return

		case buf := <-conn.writeQueue:
			conn.write(buf)

		case <-conn.heartbeat.C:
			conn.doHeartbeat()
		}
	}
}

// Write hands a rendered message buffer over to the write-loop goroutine.
func (conn *Conn) Write(buffer *bytes.Buffer) {
	if buffer.Len() > MaxTaggedMsgLength {
		log.Errorf("irc: Error rendering message to buffer for [%s]: Message too long.", conn.remAddr)
		return
	}

	conn.writeQueue <- buffer
}

func (conn *Conn) write(buffer *bytes.Buffer) {
	defer func() {
		bufpool.Recycle(buffer)
		if err := recover(); err != nil {
			const size = 64 << 10
			buf := make([]byte, size)
			buf = buf[:runtime.Stack(buf, false)]
			log.Errorf("irc: Panic in write socket operation for [%s]: %v\n%s", conn.remAddr, err, buf)

			conn.doQuit("Socket Error.")
		}
	}()

	conn.setWriteDeadline()

	if _, err := conn.outgoing.Write(buffer.Bytes()); err != nil {
		log.Errorf("irc: Error writing to socket for [%s]: %s", conn.remAddr, err)
		conn.doQuit("Socket Error.")
		return
	}

	if err := conn.outgoing.Flush(); err != nil {
		log.Errorf("irc: Error writing to socket [%s]: %s", conn.remAddr, err)
		conn.doQuit("Socket Error.")
		return
	}
}

func (conn *Conn) doHeartbeat() {
	conn.Lock()
	defer conn.Unlock()

	if conn.lastPingRecv != conn.lastPingSent {
		conn.heartbeat.Stop()
		log.Debugf("irc: PING timeout for [%s]: last sent: %s, last received: %s", conn.remAddr, conn.lastPingSent, conn.lastPingRecv)
		conn.doQuit("Connection timeout.")
		return
	}

	str := random.String(10)
	msg := conn.newMessage()
	msg.Command = CmdPing
	msg.Trailing = str
	conn.lastPingSent = str
	conn.heartbeat.Reset(PingTimeout)
	conn.Write(msg.RenderBuffer())
	messagePool.Recycle(msg)
}

// doQuit broadcasts a QUIT to every channel the user is joined to, records a
// WHOWAS entry, and signals the write loop to tear the connection down.
func (conn *Conn) doQuit(reason string) {
	if len(reason) < 1 {
		reason = "Client issued QUIT command."
	}

	if conn.reg.Registered() {
		conn.daemon.Extensions.DispatchUserQuit(conn.user, reason)

		conn.daemon.History.Record(WhowasEntry{
			Nick:   conn.user.Nick(),
			User:   conn.user.Name(),
			Host:   conn.user.RealHostmask(),
			Real:   conn.user.Realname(),
			Server: conn.daemon.Hostname(),
			Quit:   time.Now(),
		})
	}

	if conn.channels.Length() > 0 {
		msg := conn.newMessage()
		msg.Source = conn.user.Hostmask()
		msg.Command = CmdQuit
		msg.Trailing = reason

		conn.channels.ForEach(func(_ string, channel *Channel) error {
			channel.Part(conn.daemon, conn.user, msg)
			return nil
		})

		messagePool.Recycle(msg)
	}

	conn.kill <- true
}

func (conn *Conn) setWriteDeadline() {
	if WriteTimeout != 0 {
		conn.sock.SetWriteDeadline(time.Now().Add(WriteTimeout))
	}
}

func (conn *Conn) setReadDeadline() {
	if KeepAliveTimeout != 0 {
		conn.sock.SetReadDeadline(time.Now().Add(KeepAliveTimeout))
	}
}

func (conn *Conn) forceTimeout() {
	conn.Lock()
	defer conn.Unlock()
	conn.timeoutForced = true
	conn.sock.SetReadDeadline(time.Now().Add(time.Microsecond))
}

func (conn *Conn) setDeadlines() {
	conn.setReadDeadline()
	conn.setWriteDeadline()
}

// cleanup runs once for every connection that goes away, whether an
// ordinary client or a server-to-server peer, and regardless of whether it
// closed via an explicit QUIT/SQUIT or an unplanned socket error - this is
// the single authoritative place the netsplit cascade fires for a direct
// peer link (§4.7), since it runs exactly once per connection no matter why
// it ended.
func (conn *Conn) cleanup() {
	if conn.reg.Registered() {
		conn.daemon.Store.RemoveUser(conn.user)
	}

	if conn.link != nil {
		if peer := conn.link.Peer(); peer != nil {
			conn.daemon.Links.Remove(peer.Name())
			netsplitCascade(conn.daemon, peer.Name(), "Link lost: "+conn.remAddr)
			propagateSquit(conn.daemon, peer.Name(), "Link lost", "")
		}
	}

	conn.daemon.Conns.Delete(conn.remAddr)
	conn.daemon.Stats.CountDisconnect()
}

// completeRegistration finalizes a connection's transition into a fully
// registered user once NICK, USER, and (if started) CAP negotiation have all
// concluded: it indexes the user in the Store, dispatches the UserExtension
// registration hook, and sends the post-registration numeric burst.
func (conn *Conn) completeRegistration() {
	conn.user.SetHostname(hostOf(conn.remAddr))

	subject := conn.user.Name() + "@" + conn.user.Hostname()
	if ban := conn.daemon.Bans.Matching(BanKindKLine, subject); ban != nil {
		conn.doQuit("K-Lined: " + ban.Reason)
		return
	}
	if ban := conn.daemon.Bans.Matching(BanKindGLine, subject); ban != nil {
		conn.doQuit("G-Lined: " + ban.Reason)
		return
	}
	if ban := conn.daemon.Bans.Matching(BanKindXLine, conn.user.Realname()); ban != nil {
		conn.doQuit("X-Lined: " + ban.Reason)
		return
	}

	if err := conn.daemon.Store.AddUser(conn.user); err != nil {
		conn.ReplyNicknameInUse(conn.user.Nick())
		return
	}

	if v := conn.daemon.Extensions.DispatchUserRegister(conn.user); v == VetoRejected {
		conn.daemon.Store.RemoveUser(conn.user)
		conn.doQuit("Registration rejected.")
		return
	}

	conn.ReplyWelcome()
	conn.ReplyISupport()
}

// newMessage returns a pooled Message prefixed with this daemon's hostname,
// ready for a reply to be filled in and rendered.
func (conn *Conn) newMessage() *Message {
	msg := messagePool.New()
	msg.Source = conn.daemon.Hostname()
	return msg
}

// hostOf strips the port from a "host:port" remote address string.
func hostOf(remAddr string) string {
	host, _, err := net.SplitHostPort(remAddr)
	if err != nil {
		return remAddr
	}
	return host
}
