package model

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	validVersion   = regexp.MustCompile(`^([0-9]+)\.([0-9]+)\.([0-9]+)(-([A-Za-z_0-9]+))?$`)
	validQualifier = regexp.MustCompile(`^[A-Za-z_0-9]{0,255}$`)
)

// snapshotQualifier marks versions that may be replaced in place.
const snapshotQualifier = "SNAPSHOT"

// Version is a semantic version with unsigned 32-bit components and an
// optional qualifier. The empty qualifier means "absent".
type Version struct {
	Major     uint32
	Minor     uint32
	Patch     uint32
	Qualifier string
}

// NewVersion constructs a version, validating the qualifier.
func NewVersion(major, minor, patch uint32, qualifier string) (Version, error) {
	if !validQualifier.MatchString(qualifier) {
		return Version{}, fmt.Errorf(
			"qualifier %q must match %s", qualifier, validQualifier)
	}
	return Version{
		Major:     major,
		Minor:     minor,
		Patch:     patch,
		Qualifier: qualifier,
	}, nil
}

// ParseVersion parses the textual form "major.minor.patch[-qualifier]".
func ParseVersion(text string) (Version, error) {
	m := validVersion.FindStringSubmatch(text)
	if m == nil {
		return Version{}, fmt.Errorf(
			"version %q must match the pattern %s", text, validVersion)
	}

	major, err := strconv.ParseUint(m[1], 10, 32)
	if err != nil {
		return Version{}, fmt.Errorf("version %q: %w", text, err)
	}
	minor, err := strconv.ParseUint(m[2], 10, 32)
	if err != nil {
		return Version{}, fmt.Errorf("version %q: %w", text, err)
	}
	patch, err := strconv.ParseUint(m[3], 10, 32)
	if err != nil {
		return Version{}, fmt.Errorf("version %q: %w", text, err)
	}

	return NewVersion(uint32(major), uint32(minor), uint32(patch), m[5])
}

// MustVersion is ParseVersion, panicking on error.
func MustVersion(text string) Version {
	version, err := ParseVersion(text)
	if err != nil {
		panic(err)
	}
	return version
}

// IsSnapshot reports whether the qualifier equals "SNAPSHOT".
func (v Version) IsSnapshot() bool {
	return v.Qualifier == snapshotQualifier
}

func (v Version) String() string {
	var text strings.Builder
	fmt.Fprintf(&text, "%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Qualifier != "" {
		text.WriteByte('-')
		text.WriteString(v.Qualifier)
	}
	return text.String()
}

// Compare orders versions by (major, minor, patch) numerically, then by
// qualifier. A version without a qualifier sorts after any version with
// one: a release is greater than its snapshots.
func (v Version) Compare(other Version) int {
	if r := compareUint32(v.Major, other.Major); r != 0 {
		return r
	}
	if r := compareUint32(v.Minor, other.Minor); r != 0 {
		return r
	}
	if r := compareUint32(v.Patch, other.Patch); r != 0 {
		return r
	}
	return compareQualifier(v.Qualifier, other.Qualifier)
}

func compareUint32(x, y uint32) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}

func compareQualifier(x, y string) int {
	if x == y {
		return 0
	}
	if x == "" {
		return 1
	}
	if y == "" {
		return -1
	}
	return strings.Compare(x, y)
}
