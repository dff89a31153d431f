// Package config parses and validates the declarative YAML configuration
// shared by the server and every relay: a list of regions, each holding
// groups of tests.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ProbeKind enumerates the fixed set of probe primitives.
type ProbeKind string

const (
	ProbeHTTP ProbeKind = "http"
	ProbeDNS  ProbeKind = "dns"
	ProbeTCP  ProbeKind = "tcp"
	ProbePing ProbeKind = "ping"
)

const (
	DefaultInterval        = 5 * time.Second
	DefaultThreshold        = 3
	DefaultConfigPollPeriod = 30 * time.Second
	DefaultProbeTimeout     = 2 * time.Second
)

// Test is one probe definition: a kind and a kind-specific target.
type Test struct {
	Kind    ProbeKind
	Target  string
	Timeout time.Duration
}

// Group is a named bundle of tests within a region.
type Group struct {
	Name      string
	Threshold int
	Mediums   []string
	Tests     []Test
}

// Region is a named collection of groups plus cadence, owned by one relay.
type Region struct {
	Name      string
	Interval  time.Duration
	Threshold int
	Groups    []Group
}

// Config is the fully parsed, defaulted, validated configuration tree.
type Config struct {
	Regions []Region
}

// Snapshot pairs a Config with the content hash clients use to detect change.
type Snapshot struct {
	Config Config
	Hash   string
}

// rawConfig mirrors the YAML document shape before normalization.
type rawConfig struct {
	Regions []rawRegion `yaml:"regions"`
}

type rawRegion struct {
	Name      string      `yaml:"name"`
	Interval  string      `yaml:"interval"`
	Threshold int         `yaml:"threshold"`
	Groups    []rawGroup  `yaml:"groups"`
}

type rawGroup struct {
	Name      string      `yaml:"name"`
	Threshold int         `yaml:"threshold"`
	Mediums   rawMediums  `yaml:"mediums"`
	Tests     []string    `yaml:"tests"`
}

// rawMediums accepts either a bare string or a list of strings in YAML.
type rawMediums []string

func (m *rawMediums) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		var s string
		if err := value.Decode(&s); err != nil {
			return err
		}
		if s != "" {
			*m = []string{s}
		}
		return nil
	}
	var list []string
	if err := value.Decode(&list); err != nil {
		return err
	}
	*m = list
	return nil
}

// LoadFile reads and parses the config file at path, returning a validated
// Snapshot. A missing file or validation failure is a fatal caller error.
func LoadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses raw YAML bytes into a validated, defaulted Snapshot.
func Parse(data []byte) (*Snapshot, error) {
	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	cfg, err := normalize(raw)
	if err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}

	return &Snapshot{Config: cfg, Hash: contentHash(cfg)}, nil
}

func normalize(raw rawConfig) (Config, error) {
	cfg := Config{Regions: make([]Region, 0, len(raw.Regions))}

	for _, rr := range raw.Regions {
		region := Region{
			Name:      rr.Name,
			Interval:  DefaultInterval,
			Threshold: DefaultThreshold,
		}
		if rr.Interval != "" {
			d, err := time.ParseDuration(rr.Interval)
			if err != nil {
				return Config{}, fmt.Errorf("config: region %q: invalid interval %q: %w", rr.Name, rr.Interval, err)
			}
			region.Interval = d
		}
		if rr.Threshold != 0 {
			region.Threshold = rr.Threshold
		}

		for _, rg := range rr.Groups {
			group := Group{
				Name:      rg.Name,
				Threshold: DefaultThreshold,
				Mediums:   []string(rg.Mediums),
			}
			if rg.Threshold != 0 {
				group.Threshold = rg.Threshold
			}

			for _, raw := range rg.Tests {
				test, err := parseTest(raw)
				if err != nil {
					return Config{}, fmt.Errorf("config: region %q group %q: %w", rr.Name, rg.Name, err)
				}
				group.Tests = append(group.Tests, test)
			}

			region.Groups = append(region.Groups, group)
		}

		cfg.Regions = append(cfg.Regions, region)
	}

	return cfg, nil
}

// parseTest splits "<kind> <target>" and assigns the default probe timeout.
func parseTest(s string) (Test, error) {
	parts := strings.SplitN(strings.TrimSpace(s), " ", 2)
	if len(parts) != 2 {
		return Test{}, fmt.Errorf("malformed test %q: want \"<kind> <target>\"", s)
	}
	kind := ProbeKind(strings.ToLower(parts[0]))
	switch kind {
	case ProbeHTTP, ProbeDNS, ProbeTCP, ProbePing:
	default:
		return Test{}, fmt.Errorf("unknown probe kind %q in test %q", parts[0], s)
	}
	return Test{Kind: kind, Target: parts[1], Timeout: DefaultProbeTimeout}, nil
}

func validate(cfg Config) error {
	seenRegion := make(map[string]bool, len(cfg.Regions))
	for _, r := range cfg.Regions {
		if r.Name == "" {
			return fmt.Errorf("config: region with empty name")
		}
		if seenRegion[r.Name] {
			return fmt.Errorf("config: duplicate region name %q", r.Name)
		}
		seenRegion[r.Name] = true

		if r.Interval <= 0 {
			return fmt.Errorf("config: region %q: interval must be > 0", r.Name)
		}
		if r.Threshold < 1 {
			return fmt.Errorf("config: region %q: threshold must be >= 1", r.Name)
		}

		seenGroup := make(map[string]bool, len(r.Groups))
		for _, g := range r.Groups {
			if g.Name == "" {
				return fmt.Errorf("config: region %q: group with empty name", r.Name)
			}
			if seenGroup[g.Name] {
				return fmt.Errorf("config: region %q: duplicate group name %q", r.Name, g.Name)
			}
			seenGroup[g.Name] = true

			if g.Threshold < 1 {
				return fmt.Errorf("config: region %q group %q: threshold must be >= 1", r.Name, g.Name)
			}
		}
	}
	return nil
}

// RegionByName returns the region subtree with the given name, if present.
func (c Config) RegionByName(name string) (Region, bool) {
	for _, r := range c.Regions {
		if r.Name == name {
			return r, true
		}
	}
	return Region{}, false
}

// contentHash computes a stable digest over the normalized tree, so YAML
// map-key order never affects it. A group's mediums are treated as an
// unordered set and sorted before hashing; list-valued fields (regions,
// groups, tests) are hashed in their given order, since test order is
// significant.
func contentHash(cfg Config) string {
	var b strings.Builder
	for _, r := range cfg.Regions {
		fmt.Fprintf(&b, "region:%s:%s:%d\n", r.Name, r.Interval, r.Threshold)
		for _, g := range r.Groups {
			mediums := make([]string, len(g.Mediums))
			copy(mediums, g.Mediums)
			sort.Strings(mediums)
			fmt.Fprintf(&b, " group:%s:%d:%s\n", g.Name, g.Threshold, strings.Join(mediums, ","))
			for _, t := range g.Tests {
				fmt.Fprintf(&b, "  test:%s:%s:%s\n", t.Kind, t.Target, t.Timeout)
			}
		}
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
