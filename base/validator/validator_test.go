package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidAddress(t *testing.T) {
	assert.True(t, IsValidAddress("0xc37c41601bc88c91b6569c701f08d37fa0f565f0"))
	assert.True(t, IsValidAddress("0xC37C41601BC88C91B6569C701F08D37FA0F565F0"))
	assert.False(t, IsValidAddress("c37c41601bc88c91b6569c701f08d37fa0f565f0"))
	assert.False(t, IsValidAddress("0x123"))
	assert.False(t, IsValidAddress(""))
}
