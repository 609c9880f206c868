/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package ircd

import (
	"io"

	"gopkg.in/yaml.v3"
)

// Config is the in-memory configuration surface (§6): server identity,
// operators, links and limits. LoadConfig reads from any io.Reader; the
// cmd/ircd front-end and REHASH open the configured file and pass it in.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Opers  []OperConfig `yaml:"opers"`
	Links  []LinkConfig `yaml:"links"`
	Limits LimitsConfig `yaml:"limits"`
}

// ServerConfig holds the daemon's own identity and listener settings.
type ServerConfig struct {
	Hostname    string `yaml:"hostname"`
	Network     string `yaml:"network"`
	Description string `yaml:"description"`
	ListenAddr  string `yaml:"listen_addr"`
	MOTD        string `yaml:"motd"`
	TLSCert     string `yaml:"tls_cert"`
	TLSKey      string `yaml:"tls_key"`
}

// OperConfig is one operator credential entry, per §6: Argon2id-hashed
// password keyed by nickname + hostmask pattern, with an explicit flag set.
type OperConfig struct {
	Nick         string   `yaml:"nick"`
	HostPattern  string   `yaml:"host_pattern"`
	PasswordHash string   `yaml:"password_hash"`
	Flags        []string `yaml:"flags"`
}

// LinkConfig is one configured server-to-server peer.
type LinkConfig struct {
	Name       string `yaml:"name"`
	Address    string `yaml:"address"`
	Password   string `yaml:"password"`
	AutoConnect bool  `yaml:"auto_connect"`
}

// LimitsConfig overrides the package-level defaults in settings.go on a
// per-deployment basis.
type LimitsConfig struct {
	SendQMax      int `yaml:"sendq_max"`
	PeerSendQMax  int `yaml:"peer_sendq_max"`
	CacheCapacity int `yaml:"cache_capacity"`
	HistoryWindow int `yaml:"history_window"`
}

// LoadConfig parses a YAML configuration document from r and validates it.
func LoadConfig(r io.Reader) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&cfg); err != nil {
		return nil, NewKindedError(KindConfigInvalid, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks structural invariants LoadConfig callers depend on:
// a non-empty hostname, and that every configured operator flag name is
// recognized.
func (c *Config) Validate() error {
	if c.Server.Hostname == "" {
		return NewKindedError(KindConfigInvalid, Error("server.hostname must not be empty"))
	}

	for _, oper := range c.Opers {
		if oper.Nick == "" || oper.PasswordHash == "" {
			return NewKindedError(KindConfigInvalid, Error("oper entries require nick and password_hash"))
		}
		for _, flag := range oper.Flags {
			if _, ok := operFlagByName(flag); !ok {
				return NewKindedError(KindConfigInvalid, Error("unknown oper flag: "+flag))
			}
		}
	}

	return nil
}

func operFlagByName(name string) (OperFlag, bool) {
	switch name {
	case "GlobalOper":
		return OperGlobalOper, true
	case "LocalOper":
		return OperLocalOper, true
	case "RemoteConnect":
		return OperRemoteConnect, true
	case "LocalConnect":
		return OperLocalConnect, true
	case "Administrator":
		return OperAdministrator, true
	case "Squit":
		return OperSquit, true
	default:
		return 0, false
	}
}

// FlagSet parses an OperConfig's flag name list into a bitmask, ignoring
// unrecognized names (Validate rejects those earlier, during load).
func (o OperConfig) FlagSet() OperFlagSet {
	var set OperFlagSet
	for _, name := range o.Flags {
		if flag, ok := operFlagByName(name); ok {
			set = set.Grant(flag)
		}
	}
	return set
}
