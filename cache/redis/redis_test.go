package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLikeSetMembers_SeededSet(t *testing.T) {
	noteIds, seeded := parseLikeSetMembers([]string{"note1", "@seeded", "note2"})

	assert.True(t, seeded)
	assert.ElementsMatch(t, []string{"note1", "note2"}, noteIds)
}

func TestParseLikeSetMembers_SeededEmptySet(t *testing.T) {
	noteIds, seeded := parseLikeSetMembers([]string{"@seeded"})

	assert.True(t, seeded)
	assert.Empty(t, noteIds)
}

// A set recreated by AddUserLike after the seeded one expired has no marker.
// It only holds the likes made since then, so it must read as a miss rather
// than an under-count.
func TestParseLikeSetMembers_RecreatedSetIsAMiss(t *testing.T) {
	_, seeded := parseLikeSetMembers([]string{"note9"})

	assert.False(t, seeded)
}

func TestParseLikeSetMembers_MissingKeyIsAMiss(t *testing.T) {
	noteIds, seeded := parseLikeSetMembers(nil)

	assert.False(t, seeded)
	assert.Empty(t, noteIds)
}
