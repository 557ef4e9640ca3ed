package protoerr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusVector_Text_SingleError(t *testing.T) {
	sv := NewStatusVector(335544569, "SYSDBA")

	want := "-335544569 SYSDBA"
	assert.Equal(t, want, sv.Text())
}

func TestStatusVector_Text_WarningAndError(t *testing.T) {
	sv := NewStatusVector(335544321)
	sv.AddWarning(335740540)

	text := sv.Text()
	assert.Contains(t, text, "-335544321")
	assert.Contains(t, text, "+335740540")
}

func TestStatusVector_HasError(t *testing.T) {
	sv := NewStatusVector(0)
	assert.False(t, sv.HasError())

	sv2 := NewStatusVector(335544321)
	assert.True(t, sv2.HasError())
}

func TestStatusVector_HasWarning(t *testing.T) {
	sv := NewStatusVector(0)
	assert.False(t, sv.HasWarning())

	sv.AddWarning(335740540)
	assert.True(t, sv.HasWarning())
}
