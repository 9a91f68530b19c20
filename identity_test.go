package main

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUUIDGenerator(t *testing.T) {
	tests := []struct {
		version string
		want    uuid.Version
	}{
		{"", 4},
		{"v4", 4},
		{"v7", 7},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			gen, err := newUUIDGenerator(tt.version)
			require.NoError(t, err)
			s, err := gen()
			require.NoError(t, err)
			u, err := uuid.Parse(s)
			require.NoError(t, err)
			assert.Equal(t, tt.want, u.Version())
			assert.Equal(t, s, u.String(), "canonical lowercase hyphenated form")
		})
	}

	_, err := newUUIDGenerator("v1")
	var unsupported *UnsupportedConfigurationError
	require.ErrorAs(t, err, &unsupported)
}

func TestSequentialUUIDGenerator(t *testing.T) {
	gen := sequentialUUIDGenerator()
	first, _ := gen()
	second, _ := gen()
	assert.Equal(t, "00000000-0000-4000-8000-000000000001", first)
	assert.Equal(t, "00000000-0000-4000-8000-000000000002", second)
}

func TestIdentityMapper_Generate(t *testing.T) {
	mapper, err := NewIdentityMapper(sequentialUUIDGenerator())
	require.NoError(t, err)

	m, err := mapper.Generate([]int64{7, 3, 11})
	require.NoError(t, err)
	assert.Equal(t, 3, m.Len())

	u, ok := m.Lookup(3)
	require.True(t, ok)
	assert.Equal(t, "00000000-0000-4000-8000-000000000002", u)

	_, ok = m.Lookup(4)
	assert.False(t, ok)
}

func TestIdentityMapper_EmptyInput(t *testing.T) {
	mapper, err := NewIdentityMapper(sequentialUUIDGenerator())
	require.NoError(t, err)
	m, err := mapper.Generate(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, m.Len())
}

func TestIdentityMapper_Errors(t *testing.T) {
	_, err := NewIdentityMapper(nil)
	var unsupported *UnsupportedConfigurationError
	require.ErrorAs(t, err, &unsupported)

	mapper, _ := NewIdentityMapper(sequentialUUIDGenerator())
	_, err = mapper.Generate([]int64{1, 1})
	assert.ErrorContains(t, err, "duplicate identifier 1")

	stuck, _ := NewIdentityMapper(func() (string, error) { return "00000000-0000-4000-8000-000000000001", nil })
	_, err = stuck.Generate([]int64{1, 2})
	assert.ErrorContains(t, err, "returned 00000000-0000-4000-8000-000000000001 twice")

	entropy := errors.New("entropy exhausted")
	broken, _ := NewIdentityMapper(func() (string, error) { return "", entropy })
	_, err = broken.Generate([]int64{1})
	assert.ErrorIs(t, err, entropy)
}
