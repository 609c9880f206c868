/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package main

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"

	ircd "github.com/coreircd/ircd"
)

func main() {
	configPath := flag.String("config", "ircd.yaml", "path to the server configuration file")
	debug := flag.Bool("debug", false, "enable debug-level logging")
	flag.Parse()

	logger := logrus.New()
	if *debug {
		logger.SetLevel(logrus.DebugLevel)
	}

	file, err := os.Open(*configPath)
	if err != nil {
		logger.Fatalf("irc: cannot open config file %q: %s", *configPath, err)
	}

	cfg, err := ircd.LoadConfig(file)
	file.Close()
	if err != nil {
		logger.Fatalf("irc: invalid config file %q: %s", *configPath, err)
	}

	daemon := ircd.NewDaemon(
		ircd.WithConfig(cfg),
		ircd.WithConfigPath(*configPath),
		ircd.WithLogger(logger),
	)

	wg := conc.NewWaitGroup()
	defer wg.Wait()

	wg.Go(func() {
		if err := daemon.ListenAndServe(); err != nil && !errors.Is(err, net.ErrClosed) {
			logger.Fatal(fmt.Errorf("irc: server stopped: %w", err))
		}
	})

	log := logger.WithField("component", "main")
	killSignals := make(chan os.Signal, 1)
	signal.Notify(killSignals, syscall.SIGINT, syscall.SIGTERM)

	sig := <-killSignals
	log.Infof("irc: shutting down, received signal: %s", sig)
	if err := daemon.Close(); err != nil {
		log.Warnf("irc: error closing listener: %s", err)
	}
}
