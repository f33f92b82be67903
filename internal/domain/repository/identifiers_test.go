package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentifiers(t *testing.T) {
	assert.True(t, IsValidIdentifier("alpha_001"))
	assert.True(t, IsValidIdentifier("rsi_14"))
	assert.False(t, IsValidIdentifier("alpha_001; DROP TABLE x"))
	assert.False(t, IsValidIdentifier("Alpha"))
	assert.False(t, IsValidIdentifier(""))

	assert.NoError(t, ValidateIdentifiers("close", "bias_20"))
	assert.Error(t, ValidateIdentifiers("close", "1x"))

	assert.True(t, IsValidSource(SourceAlphas))
	assert.False(t, IsValidSource("trades"))
}
