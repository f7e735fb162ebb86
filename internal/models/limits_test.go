package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFitsColumn_CountsCharacters(t *testing.T) {
	assert.True(t, FitsColumn(strings.Repeat("ñ", ReferenceNumberSize), ReferenceNumberSize))
	assert.False(t, FitsColumn(strings.Repeat("a", ReferenceNumberSize+1), ReferenceNumberSize))
	assert.True(t, FitsColumn("", NotesSize))
}

func TestFitsAmount(t *testing.T) {
	cases := map[float64]bool{
		0:              false,
		-1:             false,
		0.01:           true,
		1500:           true,
		9999999999.99:  true,
		9999999999.996: false,
		1e10:           false,
		1e13:           false,
	}
	for amount, want := range cases {
		assert.Equal(t, want, FitsAmount(amount), "%v", amount)
	}
}
