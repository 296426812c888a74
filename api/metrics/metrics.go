// Copyright (C) 2020-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Registerer is an interface for registering prometheus metrics
type Registerer interface {
	prometheus.Registerer
}

// Registry is an interface for prometheus registry
type Registry interface {
	prometheus.Registerer
	prometheus.Gatherer
}

// NewRegistry creates a new prometheus registry
func NewRegistry() Registry {
	return prometheus.NewRegistry()
}

// MultiGatherer is a prometheus gatherer that can gather metrics from multiple sources
type MultiGatherer interface {
	prometheus.Gatherer
	
	// Register adds a new gatherer to this multi-gatherer
	Register(string, prometheus.Gatherer) error
}

// multiGatherer implements MultiGatherer
type multiGatherer struct {
	gatherers map[string]prometheus.Gatherer
}

// NewMultiGatherer creates a new multi-gatherer
func NewMultiGatherer() MultiGatherer {
	return &multiGatherer{
		gatherers: make(map[string]prometheus.Gatherer),
	}
}

// Register adds a new gatherer
func (mg *multiGatherer) Register(name string, gatherer prometheus.Gatherer) error {
	mg.gatherers[name] = gatherer
	return nil
}

// Gather implements prometheus.Gatherer
func (mg *multiGatherer) Gather() ([]*dto.MetricFamily, error) {
	var result []*dto.MetricFamily
	for _, g := range mg.gatherers {
		metrics, err := g.Gather()
		if err != nil {
			return nil, err
		}
		result = append(result, metrics...)
	}
	return result, nil
}

// dropKind enumerates the reasons an inbound message never reaches
// Tide, matching the msgs_dropped_{reason} counter family (spec §4.10).
type dropKind string

const (
	DropOversize     dropKind = "oversize"
	DropReplay       dropKind = "replay"
	DropRate         dropKind = "rate"
	DropInvalidSig   dropKind = "invalid_sig"
	DropUnknownPeer  dropKind = "unknown_peer"
)

// Metrics is the node orchestrator's counter set (spec §4.10): inbound
// traffic, per-reason drops, accepted votes, finalized commits, and
// the current finalized height.
type Metrics interface {
	MsgsIn() prometheus.Counter
	MsgsDropped(reason dropKind) prometheus.Counter
	VotesAccepted() prometheus.Counter
	CommitsFinalized() prometheus.Counter
	SetFinalizedHeight(height uint64)
}

type metrics struct {
	msgsIn           prometheus.Counter
	msgsDropped      map[dropKind]prometheus.Counter
	votesAccepted    prometheus.Counter
	commitsFinalized prometheus.Counter
	finalizedHeight  prometheus.Gauge
}

// NewMetrics registers the node's counters under namespace and
// returns the handle the orchestrator increments on every message
// (spec §4.10).
func NewMetrics(namespace string, registerer prometheus.Registerer) (Metrics, error) {
	m := &metrics{
		msgsIn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "msgs_in",
			Help:      "Total inbound consensus messages admitted past decode.",
		}),
		msgsDropped: make(map[dropKind]prometheus.Counter, 5),
		votesAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_accepted",
			Help:      "Total votes accepted by the Tide gadget.",
		}),
		commitsFinalized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commits_finalized",
			Help:      "Total commits that finalized a new height.",
		}),
		finalizedHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "finalized_height",
			Help:      "Highest height finalized contiguously from genesis.",
		}),
	}

	if err := registerer.Register(m.msgsIn); err != nil {
		return nil, err
	}
	if err := registerer.Register(m.votesAccepted); err != nil {
		return nil, err
	}
	if err := registerer.Register(m.commitsFinalized); err != nil {
		return nil, err
	}
	if err := registerer.Register(m.finalizedHeight); err != nil {
		return nil, err
	}

	for _, reason := range []dropKind{DropOversize, DropReplay, DropRate, DropInvalidSig, DropUnknownPeer} {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "msgs_dropped",
			Help:        "Total inbound messages dropped, by reason.",
			ConstLabels: prometheus.Labels{"reason": string(reason)},
		})
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
		m.msgsDropped[reason] = c
	}

	return m, nil
}

func (m *metrics) MsgsIn() prometheus.Counter { return m.msgsIn }

func (m *metrics) MsgsDropped(reason dropKind) prometheus.Counter {
	return m.msgsDropped[reason]
}

func (m *metrics) VotesAccepted() prometheus.Counter { return m.votesAccepted }

func (m *metrics) CommitsFinalized() prometheus.Counter { return m.commitsFinalized }

func (m *metrics) SetFinalizedHeight(height uint64) {
	m.finalizedHeight.Set(float64(height))
}