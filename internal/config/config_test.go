package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile_NotFound(t *testing.T) {
	snap, err := LoadFile("nonexistent.yaml")
	assert.Error(t, err)
	assert.Nil(t, snap)
}

func TestParse_InvalidYAML(t *testing.T) {
	snap, err := Parse([]byte("not: valid: yaml: :::"))
	assert.Error(t, err)
	assert.Nil(t, snap)
}

func TestParse_Defaults(t *testing.T) {
	snap, err := Parse([]byte(`
regions:
  - name: eu-west
    groups:
      - name: web
        tests:
          - "http https://example.com"
`))
	require.NoError(t, err)
	require.Len(t, snap.Config.Regions, 1)

	r := snap.Config.Regions[0]
	assert.Equal(t, "eu-west", r.Name)
	assert.Equal(t, DefaultInterval, r.Interval)
	assert.Equal(t, DefaultThreshold, r.Threshold)

	require.Len(t, r.Groups, 1)
	g := r.Groups[0]
	assert.Equal(t, DefaultThreshold, g.Threshold)
	require.Len(t, g.Tests, 1)
	assert.Equal(t, ProbeHTTP, g.Tests[0].Kind)
	assert.Equal(t, "https://example.com", g.Tests[0].Target)
}

func TestParse_MediumsScalarOrList(t *testing.T) {
	snap, err := Parse([]byte(`
regions:
  - name: r1
    groups:
      - name: g1
        mediums: webhook
        tests: ["tcp 1.2.3.4:80"]
      - name: g2
        mediums: ["webhook", "log"]
        tests: ["tcp 1.2.3.4:80"]
`))
	require.NoError(t, err)
	r := snap.Config.Regions[0]
	assert.Equal(t, []string{"webhook"}, r.Groups[0].Mediums)
	assert.Equal(t, []string{"webhook", "log"}, r.Groups[1].Mediums)
}

func TestParse_UnknownProbeKind(t *testing.T) {
	_, err := Parse([]byte(`
regions:
  - name: r1
    groups:
      - name: g1
        tests: ["carrier-pigeon example.com"]
`))
	assert.ErrorContains(t, err, "unknown probe kind")
}

func TestParse_DuplicateRegionName(t *testing.T) {
	_, err := Parse([]byte(`
regions:
  - name: r1
    groups: []
  - name: r1
    groups: []
`))
	assert.ErrorContains(t, err, "duplicate region name")
}

func TestParse_DuplicateGroupName(t *testing.T) {
	_, err := Parse([]byte(`
regions:
  - name: r1
    groups:
      - name: g1
        tests: ["tcp a:1"]
      - name: g1
        tests: ["tcp a:1"]
`))
	assert.ErrorContains(t, err, "duplicate group name")
}

func TestParse_NonPositiveIntervalOrThreshold(t *testing.T) {
	_, err := Parse([]byte(`
regions:
  - name: r1
    interval: 0s
    groups: []
`))
	assert.ErrorContains(t, err, "interval must be > 0")

	_, err = Parse([]byte(`
regions:
  - name: r1
    groups:
      - name: g1
        threshold: -1
        tests: ["tcp a:1"]
`))
	assert.ErrorContains(t, err, "threshold must be >= 1")
}

func TestContentHash_StableUnderMediumsReordering(t *testing.T) {
	a, err := Parse([]byte(`
regions:
  - name: r1
    groups:
      - name: g1
        mediums: ["webhook", "log"]
        tests: ["tcp a:1"]
`))
	require.NoError(t, err)

	b, err := Parse([]byte(`
regions:
  - name: r1
    groups:
      - name: g1
        mediums: ["log", "webhook"]
        tests: ["tcp a:1"]
`))
	require.NoError(t, err)

	assert.Equal(t, a.Hash, b.Hash)
}

func TestContentHash_UnstableUnderTestListReordering(t *testing.T) {
	a, err := Parse([]byte(`
regions:
  - name: r1
    groups:
      - name: g1
        tests: ["tcp a:1", "tcp b:2"]
`))
	require.NoError(t, err)

	b, err := Parse([]byte(`
regions:
  - name: r1
    groups:
      - name: g1
        tests: ["tcp b:2", "tcp a:1"]
`))
	require.NoError(t, err)

	assert.NotEqual(t, a.Hash, b.Hash)
}

func TestRegionByName(t *testing.T) {
	snap, err := Parse([]byte(`
regions:
  - name: r1
    groups: []
`))
	require.NoError(t, err)

	_, ok := snap.Config.RegionByName("missing")
	assert.False(t, ok)

	r, ok := snap.Config.RegionByName("r1")
	assert.True(t, ok)
	assert.Equal(t, "r1", r.Name)
}
