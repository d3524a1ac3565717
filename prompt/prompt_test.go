package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestCatalogFormatsEnglish(t *testing.T) {
	c := NewCatalog(language.English)

	assert.Equal(t, "Alice is now the party leader", c.Text(KeyPartyNewLeader, "Alice"))
	assert.Equal(t, "You have been kicked from the party", c.Text(KeyPartyKicked))
}

func TestCatalogMatchesRegionalPortuguese(t *testing.T) {
	c := NewCatalog(language.MustParse("pt-PT"))

	assert.Equal(t, "pt-BR", c.Tag().String())
	assert.Equal(t, "Bob entrou no grupo", c.Text(KeyPartyMemberJoined, "Bob"))
}

func TestCatalogFallsBackToEnglish(t *testing.T) {
	c := NewCatalog(language.Japanese)

	assert.Equal(t, "Accept", c.Text(KeyAccept))
}

func TestEveryKeyHasAllTranslations(t *testing.T) {
	for key, texts := range messages {
		for i, text := range texts {
			assert.NotEmpty(t, text, "key %s missing translation %d", key, i)
		}
	}
}

func TestLogSinkAnswersPopUp(t *testing.T) {
	sink := NewLogSink(nil, Declined)

	var got []Response
	sink.ShowDialoguePopUp(PopUp{Kind: PopUpYesNo, OnResponse: func(r Response) { got = append(got, r) }})
	sink.PushNotification(Notification{Message: "hello"})

	assert.Equal(t, []Response{Declined}, got)
}

func TestRecorderKeepsOrder(t *testing.T) {
	rec := &Recorder{}
	rec.PushNotification(Notification{Message: "one"})
	rec.PushNotification(Notification{Message: "two"})
	rec.ShowDialoguePopUp(PopUp{Title: "t"})

	assert.Equal(t, []string{"one", "two"}, rec.Messages())
	assert.Len(t, rec.PopUps(), 1)
	assert.Len(t, rec.Notifications(), 2)
}
