package main

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// UUIDGenerator produces a fresh canonical UUID string.
type UUIDGenerator func() (string, error)

// newUUIDGenerator returns the generator for a configured UUID version.
func newUUIDGenerator(version string) (UUIDGenerator, error) {
	switch version {
	case "", "v4":
		return func() (string, error) {
			u, err := uuid.NewRandom()
			if err != nil {
				return "", err
			}
			return u.String(), nil
		}, nil
	case "v7":
		return func() (string, error) {
			u, err := uuid.NewV7()
			if err != nil {
				return "", err
			}
			return u.String(), nil
		}, nil
	default:
		return nil, &UnsupportedConfigurationError{Reason: fmt.Sprintf("uuid version %q (must be v4 or v7)", version)}
	}
}

// sequentialUUIDGenerator yields 00000000-0000-4000-8000-000000000001,
// ...0002 and so on. Deterministic; meant for tests and dry runs.
func sequentialUUIDGenerator() UUIDGenerator {
	var n atomic.Uint64
	return func() (string, error) {
		v := n.Add(1)
		var u uuid.UUID
		u[6] = 0x40
		u[8] = 0x80
		for i := 15; i >= 10 && v > 0; i-- {
			u[i] = byte(v)
			v >>= 8
		}
		return u.String(), nil
	}
}

// IdentityMap maps old integer identifiers to their new UUIDs. It is filled
// once by IdentityMapper.Generate and read-only afterwards.
type IdentityMap struct {
	byID map[int64]string
}

// Lookup returns the UUID generated for id.
func (m IdentityMap) Lookup(id int64) (string, bool) {
	u, ok := m.byID[id]
	return u, ok
}

// Len returns the number of mapped identifiers.
func (m IdentityMap) Len() int { return len(m.byID) }

// IdentityMapper builds identity maps from a UUID generator.
type IdentityMapper struct {
	generate UUIDGenerator
}

// NewIdentityMapper returns a mapper, or an UnsupportedConfigurationError
// when no generator is available.
func NewIdentityMapper(gen UUIDGenerator) (*IdentityMapper, error) {
	if gen == nil {
		return nil, &UnsupportedConfigurationError{Reason: "no UUID generator available"}
	}
	return &IdentityMapper{generate: gen}, nil
}

// Generate assigns one fresh UUID to every id. Duplicate ids or a generator
// that repeats itself are errors: the mapping must stay one-to-one.
func (im *IdentityMapper) Generate(ids []int64) (IdentityMap, error) {
	m := IdentityMap{byID: make(map[int64]string, len(ids))}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := m.byID[id]; dup {
			return IdentityMap{}, fmt.Errorf("duplicate identifier %d", id)
		}
		u, err := im.generate()
		if err != nil {
			return IdentityMap{}, fmt.Errorf("generate uuid for %d: %w", id, err)
		}
		if _, dup := seen[u]; dup {
			return IdentityMap{}, fmt.Errorf("uuid generator returned %s twice", u)
		}
		seen[u] = struct{}{}
		m.byID[id] = u
	}
	return m, nil
}
