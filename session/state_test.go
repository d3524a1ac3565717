package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func party(id, leader string, version int, members ...string) NamedSession {
	s := NamedSession{ID: id, Name: PartySessionName, Type: TypeParty, LeaderID: leader, Version: version}
	for _, m := range members {
		s.Members = append(s.Members, Member{ID: m, Status: StatusJoined})
	}

	return s
}

func TestStateApplyReportsMembershipDiff(t *testing.T) {
	st := NewState()

	diff := st.Apply(party("p1", "u1", 1, "u1"))
	assert.True(t, diff.Created)
	assert.True(t, diff.LeaderChanged)
	assert.Equal(t, []string{"u1"}, diff.Joined)

	diff = st.Apply(party("p1", "u1", 2, "u1", "u2"))
	assert.False(t, diff.Created)
	assert.False(t, diff.LeaderChanged)
	assert.Equal(t, []string{"u2"}, diff.Joined)
	assert.Empty(t, diff.Left)

	diff = st.Apply(party("p1", "u2", 3, "u2"))
	assert.True(t, diff.LeaderChanged)
	assert.Equal(t, []string{"u1"}, diff.Left)

	got, ok := st.Get(PartySessionName)
	require.True(t, ok)
	assert.Equal(t, "u2", got.LeaderID)
	assert.Equal(t, []string{"u2"}, got.ActiveMembers())
}

func TestStateIgnoresStaleVersion(t *testing.T) {
	st := NewState()
	st.Apply(party("p1", "u1", 5, "u1", "u2"))

	diff := st.Apply(party("p1", "u1", 4, "u1"))
	assert.True(t, diff.Stale)

	got, _ := st.Get(PartySessionName)
	assert.Equal(t, 5, got.Version)
	assert.True(t, got.HasMember("u2"))
}

func TestStateInactiveMembersAreNotInRoster(t *testing.T) {
	st := NewState()
	s := party("p1", "u1", 1, "u1")
	s.Members = append(s.Members, Member{ID: "u3", Status: StatusInvited})

	diff := st.Apply(s)
	assert.Equal(t, []string{"u1"}, diff.Joined)

	got, _ := st.Get(PartySessionName)
	assert.False(t, got.HasMember("u3"))
}

func TestStateGetReturnsCopy(t *testing.T) {
	st := NewState()
	st.Apply(party("p1", "u1", 1, "u1"))

	got, _ := st.Get(PartySessionName)
	got.Members[0].ID = "mutated"

	again, _ := st.Get(PartySessionName)
	assert.Equal(t, "u1", again.Members[0].ID)
}

func TestStateRemove(t *testing.T) {
	st := NewState()
	st.Apply(party("p1", "u1", 1, "u1"))
	require.True(t, st.InParty())

	removed, ok := st.Remove(PartySessionName)
	require.True(t, ok)
	assert.Equal(t, "p1", removed.ID)
	assert.False(t, st.InParty())

	_, ok = st.Remove(PartySessionName)
	assert.False(t, ok)
}
