// Package model defines the value types of the Sunburst inventory:
// package names, versions, identifiers, virtual paths, hashes, blobs,
// packages, and peers. All types are immutable; constructors validate
// syntax and parsing is the inverse of String for every type.
package model

import (
	"fmt"
	"regexp"
	"strings"
)

// validNameSegment is the grammar for a single dot-separated segment of
// a package name.
var validNameSegment = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// nameLengthMax bounds the textual form of a package name.
const nameLengthMax = 255

// PackageName is a case-sensitive, dot-separated package name such as
// "com.io7m.example.main".
type PackageName struct {
	value string
}

// ParsePackageName validates text as a package name.
func ParsePackageName(text string) (PackageName, error) {
	if len(text) == 0 || len(text) > nameLengthMax {
		return PackageName{}, nameInvalid(text)
	}
	for _, segment := range strings.Split(text, ".") {
		if !validNameSegment.MatchString(segment) {
			return PackageName{}, nameInvalid(text)
		}
	}
	return PackageName{value: text}, nil
}

// MustPackageName is ParsePackageName, panicking on error. For tests
// and compiled-in constants.
func MustPackageName(text string) PackageName {
	name, err := ParsePackageName(text)
	if err != nil {
		panic(err)
	}
	return name
}

func nameInvalid(text string) error {
	return fmt.Errorf(
		"package name %q must consist of >= 1 dot-separated repetitions of %s, and be <= %d characters long",
		text, validNameSegment, nameLengthMax)
}

func (n PackageName) String() string {
	return n.value
}

// Compare orders names lexicographically.
func (n PackageName) Compare(other PackageName) int {
	return strings.Compare(n.value, other.value)
}

// IsEmpty reports whether the name is the zero value.
func (n PackageName) IsEmpty() bool {
	return n.value == ""
}
