// Package incident defines the narrow alert-dispatch capability the state
// aggregate's incidents are fanned out through, and the medium-selection
// policy: a group's configured mediums, or every registered dispatcher if
// none are configured.
package incident

import (
	"context"

	"github.com/hashicorp/go-hclog"

	"github.com/watchmesh/watchmesh/internal/config"
	"github.com/watchmesh/watchmesh/internal/state"
)

// Incident is the payload handed to a Dispatcher.
type Incident = state.Incident

// Dispatcher is the single capability every alert medium satisfies. The
// core never names a concrete alerter type — it only knows this interface.
type Dispatcher interface {
	Name() string
	Dispatch(ctx context.Context, inc Incident) error
}

// Router fans incidents for a subject out to the mediums configured for
// that subject's group, falling back to every registered dispatcher.
type Router struct {
	log         hclog.Logger
	dispatchers map[string]Dispatcher
	all         []Dispatcher
	mediumsOf   func(subject string) []string
}

// NewRouter builds a Router. mediumsOf looks up a group's configured
// mediums by name; the caller supplies it since only the config model
// knows the group→mediums mapping.
func NewRouter(log hclog.Logger, dispatchers []Dispatcher, mediumsOf func(subject string) []string) *Router {
	byName := make(map[string]Dispatcher, len(dispatchers))
	for _, d := range dispatchers {
		byName[d.Name()] = d
	}
	return &Router{log: log, dispatchers: byName, all: dispatchers, mediumsOf: mediumsOf}
}

// Route dispatches one incident to its resolved mediums. Dispatch failures
// are logged and never propagated — they must never block the state
// transition that produced the incident.
func (r *Router) Route(ctx context.Context, inc Incident) {
	mediums := r.mediumsOf(inc.Subject)

	targets := r.all
	if len(mediums) > 0 {
		targets = make([]Dispatcher, 0, len(mediums))
		for _, name := range mediums {
			if d, ok := r.dispatchers[name]; ok {
				targets = append(targets, d)
			}
		}
	}

	for _, d := range targets {
		if err := d.Dispatch(ctx, inc); err != nil {
			r.log.Warn("alert dispatch failed", "medium", d.Name(), "subject", inc.Subject, "error", err)
		}
	}
}

// MediumsFromConfig builds a mediumsOf lookup from a parsed config: group
// name -> configured mediums, region name -> no mediums (regions always
// fall back to every dispatcher).
func MediumsFromConfig(cfg config.Config) func(subject string) []string {
	byGroup := make(map[string][]string)
	for _, r := range cfg.Regions {
		for _, g := range r.Groups {
			byGroup[g.Name] = g.Mediums
		}
	}
	return func(subject string) []string {
		return byGroup[subject]
	}
}
