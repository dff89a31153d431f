// Package state is the authoritative server-side availability model: per
// region and per group runtime state machines, the liveness watchdog, and
// the incident ledger, all behind one lock so every reader sees a
// consistent snapshot.
package state

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/watchmesh/watchmesh/internal/config"
)

// RegionStatus is the wire/operator vocabulary for region health.
type RegionStatus string

const (
	RegionInitial RegionStatus = "initial"
	RegionUp      RegionStatus = "up"
	RegionDown    RegionStatus = "down"
	RegionWarn    RegionStatus = "warn"
)

// GroupStatus is the wire/operator vocabulary for group health.
type GroupStatus string

const (
	GroupInitial  GroupStatus = "initial"
	GroupUp       GroupStatus = "up"
	GroupDown     GroupStatus = "down"
	GroupIncident GroupStatus = "incident"
)

// IncidentKind distinguishes ledger entries.
type IncidentKind string

const (
	IncidentOpened IncidentKind = "opened"
	IncidentClosed IncidentKind = "closed"
)

// RegionRuntimeState is the server-side view of one region.
type RegionRuntimeState struct {
	Name           string
	Status         RegionStatus
	Threshold      int
	Interval       time.Duration
	LastUpdate     time.Time // zero value means NONE
	SilenceCounter int
	incidentOpen   bool
}

// GroupRuntimeState is the server-side view of one group.
type GroupRuntimeState struct {
	Name       string
	Region     string
	Status     GroupStatus
	Threshold  int
	FailStreak int
	LastUpdate time.Time
}

// Incident is one append-only ledger entry.
type Incident struct {
	ID        string
	Message   string
	Timestamp time.Time
	Kind      IncidentKind
	Subject   string
}

// GroupResult is one reported cycle outcome for a group.
type GroupResult struct {
	Group  string
	Status string // "ok" or "fail"
}

// Aggregate is the single owned store of region/group runtime state plus
// the incident ledger, guarded by one RWMutex. Its methods are the entire
// external contract: Ingest (relay push), WatchdogTick (liveness), and the
// query methods — none of them talk to the network, so tests drive the
// state machine directly.
type Aggregate struct {
	mu sync.RWMutex

	regions   map[string]*RegionRuntimeState
	groups    map[string]*GroupRuntimeState // keyed by region+"/"+group
	incidents []Incident

	now func() time.Time
}

// New builds an Aggregate seeded with `initial` state for every configured
// region and group.
func New(cfg config.Config) *Aggregate {
	a := &Aggregate{
		regions: make(map[string]*RegionRuntimeState),
		groups:  make(map[string]*GroupRuntimeState),
		now:     time.Now,
	}
	a.reset(cfg)
	return a
}

// SetClock overrides the time source; used by tests to simulate silence
// windows without sleeping.
func (a *Aggregate) SetClock(now func() time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.now = now
}

func groupKey(region, group string) string { return region + "/" + group }

func (a *Aggregate) reset(cfg config.Config) {
	for _, r := range cfg.Regions {
		a.regions[r.Name] = &RegionRuntimeState{
			Name:      r.Name,
			Status:    RegionInitial,
			Threshold: r.Threshold,
			Interval:  r.Interval,
		}
		for _, g := range r.Groups {
			a.groups[groupKey(r.Name, g.Name)] = &GroupRuntimeState{
				Name:      g.Name,
				Region:    r.Name,
				Status:    GroupInitial,
				Threshold: g.Threshold,
			}
		}
	}
}

// Reconfigure replaces the set of known regions/groups to match a new
// config. Existing runtime identity (status, streaks) is preserved for
// regions/groups that still exist by name; new ones start at `initial`;
// removed ones are dropped. Mirrors the relay's own reconcile-on-hash-change
// behavior on the server side.
func (a *Aggregate) Reconfigure(cfg config.Config) {
	a.mu.Lock()
	defer a.mu.Unlock()

	nextRegions := make(map[string]*RegionRuntimeState, len(cfg.Regions))
	nextGroups := make(map[string]*GroupRuntimeState)

	for _, r := range cfg.Regions {
		if existing, ok := a.regions[r.Name]; ok {
			existing.Threshold = r.Threshold
			existing.Interval = r.Interval
			nextRegions[r.Name] = existing
		} else {
			nextRegions[r.Name] = &RegionRuntimeState{
				Name:      r.Name,
				Status:    RegionInitial,
				Threshold: r.Threshold,
				Interval:  r.Interval,
			}
		}

		for _, g := range r.Groups {
			key := groupKey(r.Name, g.Name)
			if existing, ok := a.groups[key]; ok {
				existing.Threshold = g.Threshold
				nextGroups[key] = existing
			} else {
				nextGroups[key] = &GroupRuntimeState{
					Name:      g.Name,
					Region:    r.Name,
					Status:    GroupInitial,
					Threshold: g.Threshold,
				}
			}
		}
	}

	a.regions = nextRegions
	a.groups = nextGroups
}

// IngestResult is returned by Ingest so the caller (HTTP handler) can map
// it onto the right status code without reaching into the aggregate again.
type IngestResult struct {
	UnknownRegion bool
	IgnoredGroups []string
	NewIncidents  []Incident
}

// Ingest applies one relay push for `region`: a batch of group cycle
// results: an "ok" resets a group's fail streak and closes any open
// incident; a "fail" increments the streak and opens an incident exactly
// once when it crosses the group's threshold.
func (a *Aggregate) Ingest(region string, results []GroupResult) IngestResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	rs, ok := a.regions[region]
	if !ok {
		return IngestResult{UnknownRegion: true}
	}

	now := a.now()
	var res IngestResult

	for _, r := range results {
		key := groupKey(region, r.Group)
		gs, ok := a.groups[key]
		if !ok {
			res.IgnoredGroups = append(res.IgnoredGroups, r.Group)
			continue
		}

		gs.LastUpdate = now

		switch r.Status {
		case "ok":
			wasIncident := gs.Status == GroupIncident
			gs.FailStreak = 0
			gs.Status = GroupUp
			if wasIncident {
				inc := a.closeIncident(now, gs.Name, "Group "+gs.Name+" in region "+region+" recovered")
				res.NewIncidents = append(res.NewIncidents, inc)
			}
		case "fail":
			gs.FailStreak++
			if gs.FailStreak >= gs.Threshold {
				if gs.Status != GroupIncident {
					inc := a.openIncident(now, gs.Name, "Group "+gs.Name+" in region "+region+" is in incident")
					res.NewIncidents = append(res.NewIncidents, inc)
				}
				gs.Status = GroupIncident
			} else {
				gs.Status = GroupDown
			}
		default:
			res.IgnoredGroups = append(res.IgnoredGroups, r.Group)
		}
	}

	wasDown := rs.Status == RegionDown && rs.incidentOpen
	rs.LastUpdate = now
	rs.SilenceCounter = 0
	rs.Status = RegionUp
	if wasDown {
		inc := a.closeIncident(now, rs.Name, "Region "+rs.Name+" recovered")
		res.NewIncidents = append(res.NewIncidents, inc)
		rs.incidentOpen = false
	}

	return res
}

// WatchdogTick runs one liveness sweep over every region: a region with no
// ingest within its interval accrues silence, and is marked down exactly
// once it crosses its threshold.
func (a *Aggregate) WatchdogTick() []Incident {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	var opened []Incident

	for _, rs := range a.regions {
		if rs.LastUpdate.IsZero() {
			continue // never observed: stays `initial`
		}

		elapsed := now.Sub(rs.LastUpdate)
		if elapsed <= rs.Interval {
			continue // within cadence: no change
		}

		if rs.SilenceCounter < rs.Threshold {
			rs.SilenceCounter++
		}

		if rs.SilenceCounter >= rs.Threshold {
			if rs.Status != RegionDown {
				inc := a.openIncident(now, rs.Name, "Region "+rs.Name+" is DOWN")
				opened = append(opened, inc)
				rs.incidentOpen = true
			}
			rs.Status = RegionDown
		} else {
			rs.Status = RegionWarn
		}
	}

	return opened
}

func (a *Aggregate) openIncident(at time.Time, subject, message string) Incident {
	inc := Incident{ID: uuid.NewString(), Message: message, Timestamp: at, Kind: IncidentOpened, Subject: subject}
	a.incidents = append(a.incidents, inc)
	return inc
}

func (a *Aggregate) closeIncident(at time.Time, subject, message string) Incident {
	inc := Incident{ID: uuid.NewString(), Message: message, Timestamp: at, Kind: IncidentClosed, Subject: subject}
	a.incidents = append(a.incidents, inc)
	return inc
}

// RegionSnapshot is a read-only view of one region's runtime state.
type RegionSnapshot struct {
	Name           string
	Status         RegionStatus
	LastUpdate     time.Time
	SilenceCounter int
}

// GroupSnapshot is a read-only view of one group's runtime state.
type GroupSnapshot struct {
	Name       string
	Region     string
	Status     GroupStatus
	LastUpdate time.Time
}

// Snapshot returns a consistent point-in-time view for analytics/status
// endpoints.
func (a *Aggregate) Snapshot() (regions []RegionSnapshot, groups []GroupSnapshot, incidents []Incident) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	for _, rs := range a.regions {
		regions = append(regions, RegionSnapshot{Name: rs.Name, Status: rs.Status, LastUpdate: rs.LastUpdate, SilenceCounter: rs.SilenceCounter})
	}
	for _, gs := range a.groups {
		groups = append(groups, GroupSnapshot{Name: gs.Name, Region: gs.Region, Status: gs.Status, LastUpdate: gs.LastUpdate})
	}
	incidents = append(incidents, a.incidents...)
	return regions, groups, incidents
}

// Incidents returns a copy of the full ledger.
func (a *Aggregate) Incidents() []Incident {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]Incident, len(a.incidents))
	copy(out, a.incidents)
	return out
}
