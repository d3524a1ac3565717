package ftue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormattedMessageBoldsArguments(t *testing.T) {
	d := &Dialogue{
		Message:     "Press {0} to invite {1}. {0}!",
		MessageArgs: []Argument{{Value: "Invite"}, {Predefined: "friend_name"}},
	}

	provider := func(name string) string {
		if name == "friend_name" {
			return "Ayla"
		}
		return ""
	}

	assert.Equal(t, "Press <bold>Invite</> to invite <bold>Ayla</>. <bold>Invite</>!", d.FormattedMessage(provider))
	assert.Equal(t, "plain", (&Dialogue{Message: "plain"}).FormattedMessage(nil))
}

func TestButtonFormattingIsPlain(t *testing.T) {
	b := Button{
		Label:     "Open {0}",
		LabelArgs: []Argument{{Value: "docs"}},
		URL:       "https://docs.example.com/{0}/{1}",
		URLArgs:   []Argument{{Value: "party"}, {Predefined: "lang"}},
	}

	provider := func(string) string { return "en" }

	assert.Equal(t, "Open docs", b.FormattedLabel(provider))
	assert.Equal(t, "https://docs.example.com/party/en", b.FormattedURL(provider))
}

func TestAnchor(t *testing.T) {
	cases := []struct {
		h    HorizontalAnchor
		v    VerticalAnchor
		x, y float64
	}{
		{HMiddle, VMiddle, 0.5, 0.5},
		{HLeft, VTop, 0, 0},
		{HRight, VBottom, 1, 1},
		{HLeft, VBottom, 0, 1},
	}

	for _, tc := range cases {
		x, y := Anchor(tc.h, tc.v)
		assert.Equal(t, tc.x, x)
		assert.Equal(t, tc.y, y)
	}
}

func TestSortDialoguesByGroupThenOrderStable(t *testing.T) {
	a := &Dialogue{ID: "a", GroupOrder: 1, Order: 0}
	b := &Dialogue{ID: "b", GroupOrder: 0, Order: 2}
	c := &Dialogue{ID: "c", GroupOrder: 0, Order: 1}
	d := &Dialogue{ID: "d", GroupOrder: 0, Order: 1}

	ds := []*Dialogue{a, b, c, d}
	sortDialogues(ds)

	var ids []string
	for _, x := range ds {
		ids = append(ids, x.ID)
	}
	assert.Equal(t, []string{"c", "d", "b", "a"}, ids)
}

func TestRepeatable(t *testing.T) {
	assert.False(t, (&Dialogue{}).Repeatable())
	assert.True(t, (&Dialogue{Module: StaticModule{AlwaysActive: true}}).Repeatable())
	assert.True(t, (&Dialogue{Group: &Group{ForceAlwaysShow: true}}).Repeatable())
}

func TestGroupSetAlreadyShownMarksMembers(t *testing.T) {
	g := &Group{ID: "intro"}
	a := &Dialogue{ID: "a", Group: g}
	b := &Dialogue{ID: "b", Group: g}
	g.Dialogues = []*Dialogue{a, b}

	g.SetAlreadyShown(true)

	assert.True(t, g.AlreadyShown())
	assert.True(t, a.AlreadyShown())
	assert.True(t, b.AlreadyShown())
}
