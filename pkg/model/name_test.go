package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePackageName(t *testing.T) {
	valid := []string{
		"a",
		"abc",
		"a.b.c",
		"com.io7m.example.main",
		"x9",
		"a-b_c.d-e",
	}
	for _, text := range valid {
		t.Run(text, func(t *testing.T) {
			name, err := ParsePackageName(text)
			require.NoError(t, err)
			assert.Equal(t, text, name.String())
		})
	}

	invalid := []string{
		"",
		".",
		"a.",
		".a",
		"a..b",
		"A",
		"aB",
		"9a",
		"_a",
		"-a",
		"a b",
		strings.Repeat("a", 256),
	}
	for _, text := range invalid {
		t.Run("invalid_"+text, func(t *testing.T) {
			_, err := ParsePackageName(text)
			assert.Error(t, err)
		})
	}
}

func TestPackageNameCompare(t *testing.T) {
	a := MustPackageName("a.b")
	b := MustPackageName("a.c")
	assert.Negative(t, a.Compare(b))
	assert.Positive(t, b.Compare(a))
	assert.Zero(t, a.Compare(a))
}
