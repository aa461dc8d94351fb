package config

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rcowham/corevcs/hashpolicy"
)

func loadOrFail(t *testing.T, cfgString string) *Config {
	cfg, err := Unmarshal([]byte(cfgString))
	if err != nil {
		t.Fatalf("Failed to read config: %v", err.Error())
	}
	return cfg
}

func TestEmptyConfigDefaults(t *testing.T) {
	cfg := loadOrFail(t, "")
	assert.Equal(t, DefaultBranch, cfg.DefaultBranch)
	assert.Equal(t, hashpolicy.SHA1, cfg.HashPolicy)
	assert.Equal(t, DefaultLeaseSecs, cfg.LeaseSeconds)
	assert.True(t, cfg.ManifestSiblings.Raw)
	assert.True(t, cfg.ManifestSiblings.UUID)
	assert.False(t, cfg.ManifestSiblings.Tags)
}

func TestHashPolicySHA3(t *testing.T) {
	cfg := loadOrFail(t, "hash_policy: sha3-256\n")
	assert.Equal(t, hashpolicy.SHA3_256, cfg.HashPolicy)
}

func TestHashPolicyInvalid(t *testing.T) {
	_, err := Unmarshal([]byte("hash_policy: crc32\n"))
	assert.Error(t, err)
}

func TestLeaseSecondsOverride(t *testing.T) {
	cfg := loadOrFail(t, "lease_seconds: 5\n")
	assert.Equal(t, 5, cfg.LeaseSeconds)
}

func TestLeaseSecondsMustBePositive(t *testing.T) {
	_, err := Unmarshal([]byte("lease_seconds: 0\n"))
	assert.Error(t, err)
}

func TestManifestSiblingsBoolForms(t *testing.T) {
	cfg := loadOrFail(t, "manifest_siblings: 'true'\n")
	assert.True(t, cfg.ManifestSiblings.Raw)
	assert.True(t, cfg.ManifestSiblings.UUID)
	assert.False(t, cfg.ManifestSiblings.Tags)

	cfg = loadOrFail(t, "manifest_siblings: 'false'\n")
	assert.False(t, cfg.ManifestSiblings.Raw)
	assert.False(t, cfg.ManifestSiblings.UUID)
}

func TestManifestSiblingsLetterForm(t *testing.T) {
	cfg := loadOrFail(t, "manifest_siblings: rut\n")
	assert.True(t, cfg.ManifestSiblings.Raw)
	assert.True(t, cfg.ManifestSiblings.UUID)
	assert.True(t, cfg.ManifestSiblings.Tags)
}

func TestManifestSiblingsBadLetter(t *testing.T) {
	_, err := Unmarshal([]byte("manifest_siblings: x\n"))
	assert.Error(t, err)
}

func TestWarningsGlobsRoundtrip(t *testing.T) {
	const cfgString = `
warnings:
  binary_suppress:
    - "*.png"
  crlf_suppress:
    - "*.bat"
  encoding_suppress:
    - "*.dat"
`
	cfg := loadOrFail(t, cfgString)
	assert.Equal(t, []string{"*.png"}, cfg.Warnings.BinarySuppress)
	assert.Equal(t, []string{"*.bat"}, cfg.Warnings.CRLFSuppress)
	assert.Equal(t, []string{"*.dat"}, cfg.Warnings.EncodingSuppress)
}

func TestBackofficeSwitches(t *testing.T) {
	cfg := loadOrFail(t, "backoffice_nodelay: true\nbackoffice_disable: false\n")
	assert.True(t, cfg.BackofficeNoDelay)
	assert.False(t, cfg.BackofficeDisable)
}

func TestLoadConfigFileMissing(t *testing.T) {
	_, err := LoadConfigFile("/nonexistent/path/to/config.yaml")
	assert.Error(t, err)
}
