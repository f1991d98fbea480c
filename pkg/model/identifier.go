package model

import (
	"fmt"
	"strings"
)

// PackageIdentifier is a package name paired with a version. The
// textual form is "name:major.minor.patch[-qualifier]".
type PackageIdentifier struct {
	Name    PackageName
	Version Version
}

// ParsePackageIdentifier parses the textual identifier form.
func ParsePackageIdentifier(text string) (PackageIdentifier, error) {
	nameText, versionText, ok := strings.Cut(text, ":")
	if !ok {
		return PackageIdentifier{}, fmt.Errorf(
			"package identifier %q must be of the form name:version", text)
	}

	name, err := ParsePackageName(nameText)
	if err != nil {
		return PackageIdentifier{}, err
	}
	version, err := ParseVersion(versionText)
	if err != nil {
		return PackageIdentifier{}, err
	}

	return PackageIdentifier{Name: name, Version: version}, nil
}

// MustPackageIdentifier is ParsePackageIdentifier, panicking on error.
func MustPackageIdentifier(text string) PackageIdentifier {
	identifier, err := ParsePackageIdentifier(text)
	if err != nil {
		panic(err)
	}
	return identifier
}

func (i PackageIdentifier) String() string {
	return i.Name.String() + ":" + i.Version.String()
}

// Compare orders identifiers by name, then version.
func (i PackageIdentifier) Compare(other PackageIdentifier) int {
	if r := i.Name.Compare(other.Name); r != 0 {
		return r
	}
	return i.Version.Compare(other.Version)
}
