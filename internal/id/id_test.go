package id

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_Uniqueness(t *testing.T) {
	ids := make(map[string]bool)
	count := 1000

	for i := 0; i < count; i++ {
		id := New()
		assert.False(t, ids[id], "ID should be unique: %s", id)
		ids[id] = true
	}

	assert.Len(t, ids, count)
}

func TestIsID(t *testing.T) {
	tests := []struct {
		ref  string
		want bool
	}{
		{New(), true},
		{"9b2d3a52-1f0e-4c4e-9d59-0c1c8f9c4a11", true},
		{"prologue-a1b2c3d4e5f6", false},
		{"", false},
		{"{9b2d3a52-1f0e-4c4e-9d59-0c1c8f9c4a11}", false},
		{"urn:uuid:9b2d3a52-1f0e-4c4e-9d59-0c1c8f9c4a11", false},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			assert.Equal(t, tt.want, IsID(tt.ref))
		})
	}
}
