/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package ircd

import (
	"crypto/tls"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/coreircd/ircd/shared/concurrentmap"
	"github.com/coreircd/ircd/shared/logfmt"
)

var log *logrus.Logger

// Daemon holds the state of a single listening IRC server instance (§3's
// local "Server" entity, as distinct from RemoteServer which models a peer).
// It owns every subsystem the rest of the package dispatches through: the
// entity Store, the extension registry, the broadcaster, the link registry
// for server-to-server connections, the atomically-swapped Config, and the
// STATS/WHOWAS/numeric bookkeeping.
type Daemon struct {
	sync.RWMutex

	listenAddr string
	hostname   string
	welcome    string
	support    concurrentmap.ConcurrentMap[string, string]

	Store      *Store
	Conns      concurrentmap.ConcurrentMap[string, *Conn]
	Extensions *ExtensionRegistry
	Broadcast  *Broadcaster
	Links      *LinkRegistry
	Throttle   *Throttle
	Stats      *Stats
	History    *History
	Numerics   *NumericRegistry
	ConfigH    *ConfigHolder
	Router     *Router
	Bans       *BanRegistry

	TLSConfig *tls.Config

	listener net.Listener

	configPath string
	startTime  time.Time
}

// Option configures a Daemon at construction time.
type Option func(*Daemon)

// WithHostname sets the daemon's advertised server name.
func WithHostname(hostname string) Option {
	return func(d *Daemon) { d.hostname = hostname }
}

// WithNetwork sets the ISUPPORT NETWORK token.
func WithNetwork(network string) Option {
	return func(d *Daemon) { d.support.Set("network", network) }
}

// WithListenAddr sets the TCP address ListenAndServe binds by default.
func WithListenAddr(addr string) Option {
	return func(d *Daemon) { d.listenAddr = addr }
}

// WithWelcome sets the text used in the RPL_WELCOME greeting.
func WithWelcome(welcome string) Option {
	return func(d *Daemon) { d.welcome = welcome }
}

// WithConfig attaches a validated Config, wiring its limits into the
// daemon's Store cache capacity and WHOWAS history window.
func WithConfig(cfg *Config) Option {
	return func(d *Daemon) {
		d.ConfigH = NewConfigHolder(cfg)

		cacheCap := cfg.Limits.CacheCapacity
		historyCap := cfg.Limits.HistoryWindow

		d.Store = NewStore(cacheCap)
		d.History = NewHistory(historyCap)

		if cfg.Server.Hostname != "" {
			d.hostname = cfg.Server.Hostname
		}
		if cfg.Server.Network != "" {
			d.support.Set("network", cfg.Server.Network)
		}
		if cfg.Server.ListenAddr != "" {
			d.listenAddr = cfg.Server.ListenAddr
		}
		if cfg.Server.MOTD != "" {
			d.welcome = cfg.Server.MOTD
		}
	}
}

// WithLogger attaches the logrus logger every package-level helper uses,
// styling its output with this daemon's default logfmt formatter unless the
// caller already set one.
func WithLogger(logger *logrus.Logger) Option {
	return func(d *Daemon) {
		if _, ok := logger.Formatter.(*logrus.TextFormatter); ok {
			logger.SetFormatter(logfmt.New(logfmt.WithTimestampFormat(time.StampMilli)))
		}
		log = logger
	}
}

// WithLogLevel sets the attached logger's level.
func WithLogLevel(level logrus.Level) Option {
	return func(d *Daemon) {
		if log != nil {
			log.SetLevel(level)
		}
	}
}

// WithTickBudget overrides the broadcaster's per-wakeup job budget.
func WithTickBudget(budget int) Option {
	return func(d *Daemon) { d.Broadcast = NewBroadcaster(budget) }
}

// WithConfigPath records the filesystem path the active config was loaded
// from, so a later REHASH (§6) can re-read the same file.
func WithConfigPath(path string) Option {
	return func(d *Daemon) { d.configPath = path }
}

// NewDaemon builds a Daemon with sane defaults, then applies opts in order.
func NewDaemon(opts ...Option) *Daemon {
	daemon := &Daemon{
		Store:      NewStore(DefaultCacheCapacity),
		Conns:      concurrentmap.New[string, *Conn](),
		Extensions: NewExtensionRegistry(),
		Broadcast:  NewBroadcaster(64),
		Links:      NewLinkRegistry(),
		Throttle:   NewThrottle(1, 5),
		Stats:      NewStats(),
		History:    NewHistory(DefaultHistoryWindow),
		Numerics:   NewNumericRegistry(),
		ConfigH:    NewConfigHolder(&Config{}),
		Bans:       NewBanRegistry(),
		support:    concurrentmap.New[string, string](),
		startTime:  time.Now(),
	}

	if log == nil {
		log = logrus.New()
		log.SetFormatter(logfmt.New(logfmt.WithTimestampFormat(time.StampMilli)))
	}

	daemon.Router = NewRouter(log.WithField("sub-component", "router"))
	registerHandlers(daemon.Router)

	for _, opt := range opts {
		opt(daemon)
	}

	daemon.setISupport()
	return daemon
}

// Close stops accepting new connections by closing the active listener, if
// any. Connections already in progress are left running; the caller is
// responsible for their own shutdown sequencing (QUIT broadcast, etc.) via
// the extension framework.
func (daemon *Daemon) Close() error {
	daemon.RLock()
	defer daemon.RUnlock()

	if daemon.listener == nil {
		return nil
	}
	return daemon.listener.Close()
}

// Network returns the configured network name, falling back to the hostname.
func (daemon *Daemon) Network() string {
	if val, ok := daemon.support.Get("network"); ok {
		return val
	}
	return daemon.Hostname()
}

// SetNetwork sets the configured network name.
func (daemon *Daemon) SetNetwork(new string) {
	daemon.support.Set("network", new)
}

// Address returns the configured listen address, falling back to the live
// listener's bound address once one exists.
func (daemon *Daemon) Address() string {
	daemon.RLock()
	defer daemon.RUnlock()

	if len(daemon.listenAddr) < 1 {
		if daemon.listener != nil {
			return daemon.listener.Addr().String()
		}
		return ""
	}
	return daemon.listenAddr
}

// SetAddress sets the configured listen address.
func (daemon *Daemon) SetAddress(addr string) {
	daemon.Lock()
	defer daemon.Unlock()
	daemon.listenAddr = addr
}

// Hostname returns the daemon's advertised server name.
func (daemon *Daemon) Hostname() string {
	daemon.RLock()
	defer daemon.RUnlock()

	if len(daemon.hostname) < 1 && daemon.listener != nil {
		return daemon.listener.Addr().String()
	}
	return daemon.hostname
}

// SetHostname sets the daemon's advertised server name.
func (daemon *Daemon) SetHostname(host string) {
	daemon.Lock()
	defer daemon.Unlock()
	daemon.hostname = host
}

// MOTD returns the configured message-of-the-day, sourced from the active
// Config when one is attached.
func (daemon *Daemon) MOTD() string {
	if daemon.ConfigH != nil {
		if motd := daemon.ConfigH.Load().Server.MOTD; motd != "" {
			return motd
		}
	}
	daemon.RLock()
	defer daemon.RUnlock()
	if len(daemon.welcome) < 1 {
		return "Server has no MOTD message set."
	}
	return daemon.welcome
}

// Welcome returns the configured welcome message, used in RPL_WELCOME.
func (daemon *Daemon) Welcome() string {
	daemon.RLock()
	defer daemon.RUnlock()
	if len(daemon.welcome) < 1 {
		return "Server has no welcome message set."
	}
	return daemon.welcome
}

// SetWelcome sets the configured welcome message.
func (daemon *Daemon) SetWelcome(msg string) {
	daemon.Lock()
	defer daemon.Unlock()
	daemon.welcome = msg
}

// ConfigPath returns the filesystem path the active config was loaded from,
// or "" if the daemon was built without WithConfigPath.
func (daemon *Daemon) ConfigPath() string {
	daemon.RLock()
	defer daemon.RUnlock()
	return daemon.configPath
}

// Uptime returns how long the daemon has been running.
func (daemon *Daemon) Uptime() time.Duration {
	return time.Since(daemon.startTime)
}

// ISupport returns a slice of formatted ISUPPORT key[=value] tokens.
func (daemon *Daemon) ISupport() []string {
	keys := daemon.support.Keys()
	support := make([]string, 0, len(keys))

	for _, key := range keys {
		value, _ := daemon.support.Get(key)
		token := strings.ToUpper(key)
		if value != "" {
			token += "=" + value
		}
		support = append(support, token)
	}

	return support
}

func (daemon *Daemon) setISupport() {
	daemon.support.Set("chanmodes", "bhoOv,,LMT,AacEeFHIimNnPpqRrstV")
	daemon.support.Set("prefix", "(Oohv)~@%+")
	daemon.support.Set("maxpara", fmt.Sprint(MaxMsgParams))
	daemon.support.Set("modes", fmt.Sprint(MaxModeChange))
	daemon.support.Set("chanlimit", fmt.Sprintf("#!:%v", MaxJoinedChans))
	daemon.support.Set("nicklen", fmt.Sprint(MaxNickLength))
	daemon.support.Set("maxlist", fmt.Sprintf("bhov:%v,O:1", MaxListItems))
	daemon.support.Set("casemapping", "rfc1459")
	daemon.support.Set("topiclen", fmt.Sprint(MaxTopicLength))
	daemon.support.Set("kicklen", fmt.Sprint(MaxKickLength))
	daemon.support.Set("chanlen", fmt.Sprint(MaxChanLength))
	daemon.support.Set("awaylen", fmt.Sprint(MaxAwayLength))
}

// ListenAndServe listens on the daemon's configured TCP address and then
// calls Serve to handle connections. If no address is configured, ":6667"
// is used.
//
// ListenAndServe always returns a non-nil error.
func (daemon *Daemon) ListenAndServe() error {
	addr := daemon.Address()
	if addr == "" {
		addr = ":6667"
	}

	listen, err := net.Listen("tcp4", addr)
	if err != nil {
		return err
	}

	return daemon.Serve(tcpKeepAliveListener{listen.(*net.TCPListener)})
}

// ListenAndServeTLS listens on the daemon's configured TCP address and then
// calls Serve to handle connections over TLS. If neither the Daemon's
// TLSConfig.Certificates nor TLSConfig.GetCertificate are populated,
// certFile/keyFile must be provided. If no address is configured, ":6697"
// is used.
//
// ListenAndServeTLS always returns a non-nil error.
func (daemon *Daemon) ListenAndServeTLS(certFile, keyFile string) error {
	addr := daemon.Address()
	if addr == "" {
		addr = ":6697"
	}

	config := cloneTLSConfig(daemon.TLSConfig)

	configHasCert := len(config.Certificates) > 0 || config.GetCertificate != nil
	if !configHasCert || certFile != "" || keyFile != "" {
		var err error
		config.Certificates = make([]tls.Certificate, 1)
		config.Certificates[0], err = tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return err
		}
	}

	listen, err := net.Listen("tcp4", addr)
	if err != nil {
		return err
	}

	tlsListener := tls.NewListener(tcpKeepAliveListener{listen.(*net.TCPListener)}, config)
	return daemon.Serve(tlsListener)
}

// Serve accepts connections on the given net.Listener and assigns each to a
// new Conn, gated by the daemon's connection Throttle.
func (daemon *Daemon) Serve(listen net.Listener) error {
	defer listen.Close()

	daemon.Lock()
	daemon.listener = listen
	daemon.Unlock()

	log.Infof("irc: Starting IRC server listener at local address [%s]", listen.Addr())

	var tempDelay time.Duration

	for {
		sock, err := listen.Accept()

		if err != nil {
			if neterr, ok := err.(net.Error); ok && neterr.Timeout() {
				if tempDelay == 0 {
					tempDelay = 5 * time.Millisecond
				} else {
					tempDelay *= 2
				}

				if max := 1 * time.Second; tempDelay > max {
					tempDelay = max
				}

				log.Errorf("irc: Error accepting connection: %v; retrying in %vms", err, tempDelay.Nanoseconds()/int64(time.Millisecond))
				time.Sleep(tempDelay)
				continue
			}

			return err
		}

		remote, _, splitErr := net.SplitHostPort(sock.RemoteAddr().String())
		if splitErr == nil && !daemon.Throttle.Allow(remote) {
			log.Warnf("irc: Rejecting connection from [%s]: rate limit exceeded", remote)
			sock.Close()
			continue
		}

		if splitErr == nil {
			if ban := daemon.Bans.Matching(BanKindDLine, remote); ban != nil {
				log.Warnf("irc: Rejecting connection from [%s]: D-line matched %q", remote, ban.Mask)
				sock.Close()
				continue
			}
		}

		tempDelay = 0
		daemon.Stats.CountConnect()
		conn := NewConn(daemon, sock)
		go serve(conn)
	}
}

// cloneTLSConfig returns a shallow clone of the exported fields of cfg,
// ignoring the unexported sync.Once, which contains a mutex and must not be
// copied.
//
// If cfg is nil, a new zero tls.Config is returned.
func cloneTLSConfig(cfg *tls.Config) *tls.Config {
	if cfg == nil {
		return &tls.Config{}
	}
	return &tls.Config{
		Rand:                     cfg.Rand,
		Time:                     cfg.Time,
		Certificates:             cfg.Certificates,
		GetCertificate:           cfg.GetCertificate,
		RootCAs:                  cfg.RootCAs,
		NextProtos:               cfg.NextProtos,
		ServerName:               cfg.ServerName,
		ClientAuth:               cfg.ClientAuth,
		ClientCAs:                cfg.ClientCAs,
		InsecureSkipVerify:       cfg.InsecureSkipVerify,
		CipherSuites:             cfg.CipherSuites,
		PreferServerCipherSuites: cfg.PreferServerCipherSuites,
		SessionTicketsDisabled:   cfg.SessionTicketsDisabled,
		SessionTicketKey:         cfg.SessionTicketKey,
		ClientSessionCache:       cfg.ClientSessionCache,
		MinVersion:               cfg.MinVersion,
		MaxVersion:               cfg.MaxVersion,
		CurvePreferences:         cfg.CurvePreferences,
	}
}

// tcpKeepAliveListener sets TCP keep-alive timeouts on accepted connections
// so dead TCP connections (e.g. closing a laptop mid-session) eventually go
// away.
type tcpKeepAliveListener struct {
	*net.TCPListener
}

func (listen tcpKeepAliveListener) Accept() (net.Conn, error) {
	conn, err := listen.AcceptTCP()
	if err != nil {
		return nil, err
	}
	conn.SetKeepAlive(true)
	conn.SetKeepAlivePeriod(KeepAliveTimeout)
	return conn, nil
}
