package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog() Catalog {
	return Catalog{
		{ID: 1, Name: "web", Challenges: []Challenge{{ID: 10, Name: "login"}, {ID: 11, Name: "xss"}}},
		{ID: 2, Name: "crypto", Challenges: []Challenge{{ID: 20, Name: "rsa"}}},
	}
}

func TestCatalog_FindChallenge(t *testing.T) {
	catalog := testCatalog()

	chal, cat := catalog.FindChallenge(20)
	require.NotNil(t, chal)
	require.NotNil(t, cat)
	assert.Equal(t, "rsa", chal.Name)
	assert.Equal(t, "crypto", cat.Name)

	chal, cat = catalog.FindChallenge(99)
	assert.Nil(t, chal)
	assert.Nil(t, cat)
}

func TestCatalog_CloneIsIndependent(t *testing.T) {
	catalog := testCatalog()
	clone := catalog.Clone()

	chal, _ := clone.FindChallenge(10)
	require.NotNil(t, chal)
	chal.Solved = true

	orig, _ := catalog.FindChallenge(10)
	assert.False(t, orig.Solved, "clone must not share challenge slices")
	assert.Nil(t, Catalog(nil).Clone())
}

func TestChallenge_TypeTag(t *testing.T) {
	assert.Equal(t, DefaultChallengeType, (&Challenge{}).TypeTag())
	assert.Equal(t, "code", (&Challenge{Type: "code"}).TypeTag())

	var nilChal *Challenge
	assert.Equal(t, DefaultChallengeType, nilChal.TypeTag())
}

func TestTeam_OwnerMember(t *testing.T) {
	team := &Team{ID: 3, Owner: 7, Members: []User{{ID: 5, Username: "bob"}, {ID: 7, Username: "alice"}}}
	owner := team.OwnerMember()
	require.NotNil(t, owner)
	assert.Equal(t, "alice", owner.Username)

	var noTeam *Team
	assert.Nil(t, noTeam.OwnerMember())
}

func TestUser_TwoFactorEnabled(t *testing.T) {
	assert.True(t, (&User{TOTPStatus: TOTPEnabled}).TwoFactorEnabled())
	assert.False(t, (&User{TOTPStatus: TOTPPending}).TwoFactorEnabled())

	var nilUser *User
	assert.False(t, nilUser.TwoFactorEnabled())
}
