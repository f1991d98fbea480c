package model

import (
	"fmt"
	"regexp"
	"strings"
)

// validPathSegment is the grammar for a single path segment.
var validPathSegment = regexp.MustCompile(`^[a-z0-9_-][a-z0-9_.-]*$`)

const (
	pathSegmentLengthMax = 255
	pathLengthMax        = 255
)

// Path is an absolute virtual path within a package, rooted at "/".
// The canonical textual form has no duplicate separators.
type Path struct {
	value string
}

// RootPath returns the root path "/".
func RootPath() Path {
	return Path{value: "/"}
}

// ParsePath parses a "/"-separated textual path. Consecutive slashes
// collapse; the empty string is invalid.
func ParsePath(text string) (Path, error) {
	if text == "" {
		return Path{}, fmt.Errorf("path must not be empty")
	}

	path := RootPath()
	for _, segment := range strings.Split(text, "/") {
		if segment == "" {
			continue
		}
		next, err := path.Plus(segment)
		if err != nil {
			return Path{}, err
		}
		path = next
	}
	return path, nil
}

// MustPath is ParsePath, panicking on error.
func MustPath(text string) Path {
	path, err := ParsePath(text)
	if err != nil {
		panic(err)
	}
	return path
}

// Plus returns the path extended with one more segment.
func (p Path) Plus(segment string) (Path, error) {
	if len(segment) > pathSegmentLengthMax || !validPathSegment.MatchString(segment) {
		return Path{}, fmt.Errorf(
			"path segment %q must match %s and be <= %d characters long",
			segment, validPathSegment, pathSegmentLengthMax)
	}

	value := p.value
	if value == "" {
		value = "/"
	}
	if !strings.HasSuffix(value, "/") {
		value += "/"
	}
	value += segment

	if len(value) > pathLengthMax {
		return Path{}, fmt.Errorf(
			"path %q must be <= %d characters long", value, pathLengthMax)
	}
	return Path{value: value}, nil
}

// Segments returns the path segments in order, empty for the root.
func (p Path) Segments() []string {
	if p.value == "" || p.value == "/" {
		return nil
	}
	return strings.Split(strings.TrimPrefix(p.value, "/"), "/")
}

func (p Path) String() string {
	if p.value == "" {
		return "/"
	}
	return p.value
}

// Compare orders paths lexicographically on the canonical form.
func (p Path) Compare(other Path) int {
	return strings.Compare(p.String(), other.String())
}
