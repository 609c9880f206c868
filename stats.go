/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package ircd

import (
	"sort"

	dto "github.com/prometheus/client_model/go"

	"github.com/prometheus/client_golang/prometheus"
)

// Stats backs the STATS command's per-command counters (numerics 212/219)
// with prometheus counters, so the same numbers the client sees over IRC
// are also scrapeable for external monitoring without keeping two separate
// counting paths.
type Stats struct {
	registry    *prometheus.Registry
	commands    *prometheus.CounterVec
	connects    prometheus.Counter
	disconnects prometheus.Counter
}

// NewStats registers the STATS counters against a fresh prometheus
// registry, isolated from prometheus's global default registry so tests can
// construct many Stats instances without collector-already-registered
// panics.
func NewStats() *Stats {
	registry := prometheus.NewRegistry()

	commands := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ircd_commands_total",
		Help: "Count of client commands processed, by command name.",
	}, []string{"command"})

	connects := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ircd_connections_total",
		Help: "Count of accepted client connections.",
	})

	disconnects := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ircd_disconnections_total",
		Help: "Count of client disconnections.",
	})

	registry.MustRegister(commands, connects, disconnects)

	return &Stats{registry: registry, commands: commands, connects: connects, disconnects: disconnects}
}

// CountCommand increments the per-command counter backing numeric 212.
func (s *Stats) CountCommand(command string) {
	s.commands.WithLabelValues(command).Inc()
}

// CountConnect increments the connection counter.
func (s *Stats) CountConnect() {
	s.connects.Inc()
}

// CountDisconnect increments the disconnection counter.
func (s *Stats) CountDisconnect() {
	s.disconnects.Inc()
}

// CommandCount is one row of the STATS 'm' report.
type CommandCount struct {
	Command string
	Count   uint64
}

// CommandCounts returns a snapshot of per-command counts, sorted by command
// name, for rendering the numeric 212/RPL_STATSCOMMANDS series.
func (s *Stats) CommandCounts() []CommandCount {
	metrics := make(chan prometheus.Metric, 256)
	go func() {
		s.commands.Collect(metrics)
		close(metrics)
	}()

	var out []CommandCount
	for m := range metrics {
		pb := &dto.Metric{}
		if err := m.Write(pb); err != nil {
			continue
		}

		var command string
		for _, label := range pb.GetLabel() {
			if label.GetName() == "command" {
				command = label.GetValue()
			}
		}

		out = append(out, CommandCount{
			Command: command,
			Count:   uint64(pb.GetCounter().GetValue()),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Command < out[j].Command })
	return out
}
