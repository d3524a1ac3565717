package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceskypane/abwars/events"
)

const tutorialYAML = `
modules:
  - name: party
groups:
  - id: party-intro
    module: party
    dialogues:
      - id: invite
        message: "Press {0} to invite"
        args: [{value: Invite}]
        highlight: {class: FriendDetails, name: "btn_invite_*"}
      - id: leader
        message: Leaders can kick
        validator: {kind: predefined, name: party.is_leader}
dialogues:
  - id: welcome
    order: -1
    message: Welcome to AccelByte Wars
    buttons:
      - label: Docs
        url: https://docs.accelbyte.io
`

func writeTutorial(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "ftue.yaml")
	require.NoError(t, os.WriteFile(path, []byte(tutorialYAML), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return buf.String(), err
}

func TestRootCommand_HasExpectedSubcommands(t *testing.T) {
	output, err := execute(t, "--help")
	require.NoError(t, err)

	for _, sub := range []string{"ftue", "party", "version"} {
		assert.Contains(t, output, sub, "Help missing %q command", sub)
	}
}

func TestRootCommand_ConfigFlag(t *testing.T) {
	configFile = ""

	_, err := execute(t, "--config", "/etc/abwars.yaml", "--help")
	require.NoError(t, err)
	assert.Equal(t, "/etc/abwars.yaml", configFile)
}

func TestVersionCommand(t *testing.T) {
	output, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, output, "abwars dev")
}

func TestFTUECheck(t *testing.T) {
	output, err := execute(t, "ftue", "check", writeTutorial(t))
	require.NoError(t, err)

	assert.Contains(t, output, "invite")
	assert.Contains(t, output, "predefined:party.is_leader")
	assert.Contains(t, output, "3 dialogues ok")
}

func TestFTUECheckInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dialogues:\n  - id: a\n    module: ghost\n"), 0o600))

	_, err := execute(t, "ftue", "check", path)
	assert.Error(t, err)
}

func TestFTUEPreviewSkipsUnresolvedHighlight(t *testing.T) {
	output, err := execute(t, "ftue", "preview", writeTutorial(t))
	require.NoError(t, err)

	assert.Contains(t, output, "[1/3] welcome")
	assert.Contains(t, output, "buttons: Docs | Next")
	assert.NotContains(t, output, "[2/3] invite")
	assert.Contains(t, output, "[3/3] leader")
	assert.Contains(t, output, "buttons: X")
}

func TestFTUEPreviewWithWidgetAndFailingCheck(t *testing.T) {
	output, err := execute(t, "ftue", "preview", writeTutorial(t),
		"--widget", "FriendDetails/btn_invite_to_party",
		"--fail", "party.is_leader")
	require.NoError(t, err)

	assert.Contains(t, output, "skipped leader: validation invalid")
	assert.Contains(t, output, "[2/2] invite")
	assert.Contains(t, output, "Press <bold>Invite</> to invite")
	assert.Contains(t, output, "highlight: btn_invite_to_party")
}

func TestDescribeEvents(t *testing.T) {
	at := events.Base{At: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}

	assert.Equal(t, "10:00:00.000 party.updated party=p1 leader=u1 members=2",
		describe(events.PartyUpdated{Base: at, PartyID: "p1", LeaderID: "u1", Members: 2}))
	assert.Equal(t, "10:00:00.000 ftue.closed", describe(events.FTUEClosed{Base: at}))
}

func TestWatchFilter(t *testing.T) {
	assert.Nil(t, watchOptions{}.filter())

	filter := watchOptions{
		members:     []string{"u2"},
		leaders:     []string{"u3"},
		invitesFrom: []string{"u4"},
		topics:      []string{"OnPartyKicked"},
	}.filter()
	require.NotNil(t, filter)

	assert.True(t, filter(events.PartyMemberChanged{MemberID: "u2", Joined: true}))
	assert.True(t, filter(events.PartyMemberChanged{MemberID: "u2", Joined: false}))
	assert.False(t, filter(events.PartyMemberChanged{MemberID: "u9", Joined: true}))
	assert.True(t, filter(events.PartyLeaderChanged{LeaderID: "u3"}))
	assert.False(t, filter(events.PartyLeaderChanged{LeaderID: "u2"}))
	assert.True(t, filter(events.PartyInviteReceived{SenderID: "u4"}))
	assert.False(t, filter(events.PartyInviteReceived{SenderID: "u5"}))
	assert.True(t, filter(events.LobbyNotification{Topic: "OnPartyKicked"}))
	assert.False(t, filter(events.FTUEClosed{}))
}

func TestPartyWatchFlags(t *testing.T) {
	cmd := newPartyWatchCmd()

	for _, name := range []string{"member", "leader", "invites-from", "topic"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
}
