// Package config holds the ambient, process-level settings every other
// package reads from rather than from global state (§9 "repository context
// value"): hash policy, warning-suppression globs, lease overrides, the
// default branch name, and the manifest sibling-file bitmask (§6.4).
//
// Shape is adapted directly from the teacher's config package: the same
// Unmarshal/LoadConfigFile/LoadConfigString entry points, the same
// eager-validate-at-load-time discipline, the same yaml.v2 library.
package config

import (
	"fmt"
	"os"
	"strings"

	yaml "gopkg.in/yaml.v2"

	"github.com/rcowham/corevcs/hashpolicy"
)

const (
	DefaultBranch      = "trunk"
	DefaultLeaseSecs   = 60
	DefaultSiblingBits = "ru" // raw + uuid, matching fossil's historical default
)

// ManifestSiblings is the §6.4 bitmask over {raw, uuid, tags}.
type ManifestSiblings struct {
	Raw  bool `yaml:"-"`
	UUID bool `yaml:"-"`
	Tags bool `yaml:"-"`
}

// Warnings names the three content warnings of §4.4.3 and the glob patterns
// that suppress each one.
type Warnings struct {
	BinarySuppress   []string `yaml:"binary_suppress"`
	CRLFSuppress     []string `yaml:"crlf_suppress"`
	EncodingSuppress []string `yaml:"encoding_suppress"`
}

// Config is the top-level settings value, unmarshalled from YAML.
type Config struct {
	HashPolicyName string   `yaml:"hash_policy"`
	DefaultBranch  string   `yaml:"default_branch"`
	Warnings       Warnings `yaml:"warnings"`

	// LeaseSeconds is a lease length in seconds; validation rejects zero and
	// negative values. The backoffice package does not read it: Candidate
	// always uses the backoffice.Lease constant.
	LeaseSeconds int `yaml:"lease_seconds"`

	// BackofficeNoDelay and BackofficeDisable mirror fossil's
	// "backoffice-nodelay"/"backoffice-disable" settings (see SPEC_FULL.md
	// supplemented feature 3): short-circuit the OnDeck queue, or skip
	// scheduling entirely.
	BackofficeNoDelay bool `yaml:"backoffice_nodelay"`
	BackofficeDisable bool `yaml:"backoffice_disable"`

	// AllowDeltaManifests lets a repository forbid delta manifests
	// entirely (§4.4.4, "a repository-wide setting can forbid delta
	// manifests").
	AllowDeltaManifests bool `yaml:"allow_delta_manifests"`

	// ManifestSiblingsSpec is the raw §6.4 setting: a bool-ish string
	// ("true"/"false") or letters among r,u,t.
	ManifestSiblingsSpec string `yaml:"manifest_siblings"`

	HashPolicy       hashpolicy.Policy `yaml:"-"`
	ManifestSiblings ManifestSiblings  `yaml:"-"`
}

// Unmarshal parses YAML config bytes, fills in defaults, and validates.
func Unmarshal(raw []byte) (*Config, error) {
	cfg := &Config{
		DefaultBranch:        DefaultBranch,
		LeaseSeconds:         DefaultLeaseSecs,
		ManifestSiblingsSpec: DefaultSiblingBits,
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %v", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfigFile reads and parses a config file from disk.
func LoadConfigFile(filename string) (*Config, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to load %v: %v", filename, err)
	}
	cfg, err := LoadConfigString(content)
	if err != nil {
		return nil, fmt.Errorf("failed to load %v: %v", filename, err)
	}
	return cfg, nil
}

// LoadConfigString parses config from an in-memory byte slice.
func LoadConfigString(content []byte) (*Config, error) {
	return Unmarshal(content)
}

func (c *Config) validate() error {
	policy, err := hashpolicy.Parse(c.HashPolicyName)
	if err != nil {
		return err
	}
	c.HashPolicy = policy

	if c.LeaseSeconds <= 0 {
		return fmt.Errorf("lease_seconds must be positive, got %d", c.LeaseSeconds)
	}

	bits, err := parseSiblingBits(c.ManifestSiblingsSpec)
	if err != nil {
		return err
	}
	c.ManifestSiblings = bits

	return nil
}

func parseSiblingBits(spec string) (ManifestSiblings, error) {
	spec = strings.TrimSpace(strings.ToLower(spec))
	switch spec {
	case "", "false", "0", "off":
		return ManifestSiblings{}, nil
	case "true", "1", "on":
		return ManifestSiblings{Raw: true, UUID: true}, nil
	}
	var bits ManifestSiblings
	for _, r := range spec {
		switch r {
		case 'r':
			bits.Raw = true
		case 'u':
			bits.UUID = true
		case 't':
			bits.Tags = true
		default:
			return ManifestSiblings{}, fmt.Errorf("manifest_siblings: unknown letter %q in %q", r, spec)
		}
	}
	return bits, nil
}
