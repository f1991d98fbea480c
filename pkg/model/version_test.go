package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		text    string
		version Version
	}{
		{"0.0.0", Version{}},
		{"1.2.3", Version{Major: 1, Minor: 2, Patch: 3}},
		{"1.0.0-SNAPSHOT", Version{Major: 1, Qualifier: "SNAPSHOT"}},
		{"10.20.30-beta1", Version{Major: 10, Minor: 20, Patch: 30, Qualifier: "beta1"}},
		{"4294967295.0.0", Version{Major: 4294967295}},
	}
	for _, test := range tests {
		t.Run(test.text, func(t *testing.T) {
			version, err := ParseVersion(test.text)
			require.NoError(t, err)
			assert.Equal(t, test.version, version)
			assert.Equal(t, test.text, version.String())
		})
	}

	invalid := []string{
		"",
		"1",
		"1.2",
		"1.2.3.4",
		"1.2.3-",
		"1.2.3-a!b",
		"-1.2.3",
		"1.2.3-" + strings.Repeat("q", 256),
		"4294967296.0.0",
	}
	for _, text := range invalid {
		t.Run("invalid_"+text, func(t *testing.T) {
			_, err := ParseVersion(text)
			assert.Error(t, err)
		})
	}
}

func TestVersionSnapshot(t *testing.T) {
	assert.True(t, MustVersion("1.0.0-SNAPSHOT").IsSnapshot())
	assert.False(t, MustVersion("1.0.0").IsSnapshot())
	assert.False(t, MustVersion("1.0.0-snapshot").IsSnapshot())
}

func TestVersionCompare(t *testing.T) {
	tests := []struct {
		name    string
		lesser  string
		greater string
	}{
		{"major", "1.0.0", "2.0.0"},
		{"minor", "1.1.0", "1.2.0"},
		{"patch", "1.1.1", "1.1.2"},
		{"unsigned major", "2147483647.0.0", "4294967295.0.0"},
		{"snapshot before release", "1.0.0-SNAPSHOT", "1.0.0"},
		{"qualifier before release", "1.0.0-beta", "1.0.0"},
		{"qualifiers lexicographic", "1.0.0-alpha", "1.0.0-beta"},
		{"qualifiers lexicographic snapshot", "1.0.0-SNAPSHOT", "1.0.0-alpha"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			lesser := MustVersion(test.lesser)
			greater := MustVersion(test.greater)
			assert.Negative(t, lesser.Compare(greater))
			assert.Positive(t, greater.Compare(lesser))
		})
	}

	v := MustVersion("1.2.3-x")
	assert.Zero(t, v.Compare(v))
}

func TestPackageIdentifier(t *testing.T) {
	identifier, err := ParsePackageIdentifier("com.io7m.example.main:1.0.0-SNAPSHOT")
	require.NoError(t, err)
	assert.Equal(t, "com.io7m.example.main", identifier.Name.String())
	assert.True(t, identifier.Version.IsSnapshot())
	assert.Equal(t, "com.io7m.example.main:1.0.0-SNAPSHOT", identifier.String())

	for _, text := range []string{"", "a.b", "a.b:", ":1.0.0", "A:1.0.0", "a:x"} {
		_, err := ParsePackageIdentifier(text)
		assert.Error(t, err, "text %q", text)
	}
}

func TestPackageIdentifierCompare(t *testing.T) {
	a1 := MustPackageIdentifier("a:1.0.0")
	a2 := MustPackageIdentifier("a:2.0.0")
	b1 := MustPackageIdentifier("b:1.0.0")

	assert.Negative(t, a1.Compare(a2))
	assert.Negative(t, a2.Compare(b1))
	assert.Zero(t, a1.Compare(a1))
}
