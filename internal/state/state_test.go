package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watchmesh/watchmesh/internal/config"
)

func testConfig(regionThreshold, regionInterval, groupThreshold int) config.Config {
	return config.Config{
		Regions: []config.Region{
			{
				Name:      "r1",
				Interval:  time.Duration(regionInterval) * time.Second,
				Threshold: regionThreshold,
				Groups: []config.Group{
					{Name: "g1", Threshold: groupThreshold},
				},
			},
		},
	}
}

func TestGroupEntersIncidentOnConsecutiveFailures(t *testing.T) {
	a := New(testConfig(3, 1, 2))

	res := a.Ingest("r1", []GroupResult{{Group: "g1", Status: "fail"}})
	assert.Empty(t, res.NewIncidents)
	_, groups, _ := a.Snapshot()
	assert.Equal(t, GroupDown, groups[0].Status)

	res = a.Ingest("r1", []GroupResult{{Group: "g1", Status: "fail"}})
	require.Len(t, res.NewIncidents, 1)
	assert.Equal(t, IncidentOpened, res.NewIncidents[0].Kind)
	_, groups, _ = a.Snapshot()
	assert.Equal(t, GroupIncident, groups[0].Status)
}

func TestInterveningOkResetsFailStreak(t *testing.T) {
	a := New(testConfig(3, 1, 2))

	a.Ingest("r1", []GroupResult{{Group: "g1", Status: "fail"}})
	a.Ingest("r1", []GroupResult{{Group: "g1", Status: "ok"}})
	res := a.Ingest("r1", []GroupResult{{Group: "g1", Status: "fail"}})
	assert.Empty(t, res.NewIncidents, "a single fail after a reset must not open an incident")
}

func TestOkImmediatelyRecoversGroup(t *testing.T) {
	a := New(testConfig(3, 1, 2))

	a.Ingest("r1", []GroupResult{{Group: "g1", Status: "fail"}})
	a.Ingest("r1", []GroupResult{{Group: "g1", Status: "fail"}}) // now incident
	res := a.Ingest("r1", []GroupResult{{Group: "g1", Status: "ok"}})

	require.Len(t, res.NewIncidents, 1)
	assert.Equal(t, IncidentClosed, res.NewIncidents[0].Kind)

	_, groups, _ := a.Snapshot()
	assert.Equal(t, GroupUp, groups[0].Status)
}

// A region that goes silent past threshold*interval is marked down exactly
// once; further silent ticks don't reopen the incident.
func TestRegionDownAfterSilenceBudget(t *testing.T) {
	a := New(testConfig(2, 1, 2))

	clock := time.Now()
	a.SetClock(func() time.Time { return clock })
	a.Ingest("r1", []GroupResult{{Group: "g1", Status: "ok"}})

	// Advance past one interval: silence_counter goes 0 -> 1, status warn.
	clock = clock.Add(2 * time.Second)
	opened := a.WatchdogTick()
	assert.Empty(t, opened)
	regions, _, _ := a.Snapshot()
	assert.Equal(t, RegionWarn, regions[0].Status)

	// Advance again: silence_counter reaches threshold(2), status down,
	// exactly one incident opened.
	clock = clock.Add(2 * time.Second)
	opened = a.WatchdogTick()
	require.Len(t, opened, 1)
	regions, _, _ = a.Snapshot()
	assert.Equal(t, RegionDown, regions[0].Status)

	// Further ticks while still down must not open a second incident.
	clock = clock.Add(2 * time.Second)
	opened = a.WatchdogTick()
	assert.Empty(t, opened)
}

func TestIngestAfterRegionDownClosesIncidentAndRecovers(t *testing.T) {
	a := New(testConfig(1, 1, 2))

	clock := time.Now()
	a.SetClock(func() time.Time { return clock })
	a.Ingest("r1", []GroupResult{{Group: "g1", Status: "ok"}})

	clock = clock.Add(2 * time.Second)
	opened := a.WatchdogTick()
	require.Len(t, opened, 1)

	res := a.Ingest("r1", []GroupResult{{Group: "g1", Status: "ok"}})
	require.Len(t, res.NewIncidents, 1)
	assert.Equal(t, IncidentClosed, res.NewIncidents[0].Kind)

	regions, _, _ := a.Snapshot()
	assert.Equal(t, RegionUp, regions[0].Status)
	assert.Equal(t, 0, regions[0].SilenceCounter)
}

func TestLedgerAlternatesOpenedAndClosedPerSubject(t *testing.T) {
	a := New(testConfig(3, 1, 1))

	a.Ingest("r1", []GroupResult{{Group: "g1", Status: "fail"}}) // opens (threshold 1)
	a.Ingest("r1", []GroupResult{{Group: "g1", Status: "ok"}})   // closes
	a.Ingest("r1", []GroupResult{{Group: "g1", Status: "fail"}}) // opens again
	a.Ingest("r1", []GroupResult{{Group: "g1", Status: "ok"}})   // closes again

	incidents := a.Incidents()
	require.Len(t, incidents, 4)
	kinds := []IncidentKind{incidents[0].Kind, incidents[1].Kind, incidents[2].Kind, incidents[3].Kind}
	assert.Equal(t, []IncidentKind{IncidentOpened, IncidentClosed, IncidentOpened, IncidentClosed}, kinds)
}

func TestUnknownRegionRejected(t *testing.T) {
	a := New(testConfig(3, 1, 2))
	res := a.Ingest("ghost-region", []GroupResult{{Group: "g1", Status: "ok"}})
	assert.True(t, res.UnknownRegion)
}

func TestUnknownGroupIgnoredButOthersApply(t *testing.T) {
	a := New(testConfig(3, 1, 2))
	res := a.Ingest("r1", []GroupResult{
		{Group: "ghost", Status: "ok"},
		{Group: "g1", Status: "ok"},
	})
	assert.Equal(t, []string{"ghost"}, res.IgnoredGroups)

	_, groups, _ := a.Snapshot()
	assert.Equal(t, GroupUp, groups[0].Status)
}

func TestReconfigurePreservesExistingRuntimeIdentity(t *testing.T) {
	a := New(testConfig(3, 1, 2))
	a.Ingest("r1", []GroupResult{{Group: "g1", Status: "fail"}})

	cfg2 := testConfig(3, 1, 2)
	cfg2.Regions[0].Groups = append(cfg2.Regions[0].Groups, config.Group{Name: "g2", Threshold: 2})
	a.Reconfigure(cfg2)

	_, groups, _ := a.Snapshot()
	var g1, g2 *GroupSnapshot
	for i := range groups {
		switch groups[i].Name {
		case "g1":
			g1 = &groups[i]
		case "g2":
			g2 = &groups[i]
		}
	}
	require.NotNil(t, g1)
	require.NotNil(t, g2)
	assert.Equal(t, GroupDown, g1.Status, "existing group keeps its fail streak/status across reconfigure")
	assert.Equal(t, GroupInitial, g2.Status)
}
