package prompt

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Key identifies a user-facing message.
type Key string

const (
	KeyPartyNewLeader      Key = "party.new_leader"
	KeyPartyMemberJoined   Key = "party.member_joined"
	KeyPartyMemberLeft     Key = "party.member_left"
	KeyPartyInviteReceived Key = "party.invite_received"
	KeyPartyInviteSent     Key = "party.invite_sent"
	KeyPartyInviteFailed   Key = "party.invite_failed"
	KeyPartyInviteRejected Key = "party.invite_rejected"
	KeyPartyKicked         Key = "party.kicked"
	KeyPartyKickFailed     Key = "party.kick_failed"
	KeyPartyPromoteFailed  Key = "party.promote_failed"
	KeyPartyJoinFailed     Key = "party.join_failed"
	KeyPartyJoinTitle      Key = "party.join_title"
	KeyPartyJoinConfirm    Key = "party.join_confirm"
	KeyFTUENext            Key = "ftue.next"
	KeyFTUEClose           Key = "ftue.close"
	KeyFTUENoneAvailable   Key = "ftue.none_available"
	KeyAccept              Key = "common.accept"
	KeyReject              Key = "common.reject"
)

var supportedTags = []language.Tag{
	language.English,
	language.MustParse("pt-BR"),
}

var messages = map[Key][2]string{
	KeyPartyNewLeader:      {"%s is now the party leader", "%s agora é o líder do grupo"},
	KeyPartyMemberJoined:   {"%s joined the party", "%s entrou no grupo"},
	KeyPartyMemberLeft:     {"%s left the party", "%s saiu do grupo"},
	KeyPartyInviteReceived: {"%s invited you to a party", "%s convidou você para um grupo"},
	KeyPartyInviteSent:     {"Party invitation sent", "Convite para o grupo enviado"},
	KeyPartyInviteFailed:   {"Failed to send party invitation", "Falha ao enviar convite para o grupo"},
	KeyPartyInviteRejected: {"%s rejected your party invitation", "%s recusou seu convite para o grupo"},
	KeyPartyKicked:         {"You have been kicked from the party", "Você foi removido do grupo"},
	KeyPartyKickFailed:     {"Failed to kick party member", "Falha ao remover membro do grupo"},
	KeyPartyPromoteFailed:  {"Failed to promote party leader", "Falha ao promover líder do grupo"},
	KeyPartyJoinFailed:     {"Failed to join party: %s", "Falha ao entrar no grupo: %s"},
	KeyPartyJoinTitle:      {"Join Party", "Entrar no grupo"},
	KeyPartyJoinConfirm:    {"Joining a new party will leave your current party. Continue?", "Entrar em um novo grupo fará você sair do grupo atual. Continuar?"},
	KeyFTUENext:            {"Next", "Próximo"},
	KeyFTUEClose:           {"X", "X"},
	KeyFTUENoneAvailable:   {"No tutorial available right now", "Nenhum tutorial disponível no momento"},
	KeyAccept:              {"Accept", "Aceitar"},
	KeyReject:              {"Reject", "Recusar"},
}

// Catalog renders message keys for one language.
type Catalog struct {
	tag     language.Tag
	printer *message.Printer
}

func NewCatalog(tag language.Tag) *Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for key, texts := range messages {
		for i, supported := range supportedTags {
			_ = b.SetString(supported, string(key), texts[i])
		}
	}

	matched, _, _ := language.NewMatcher(supportedTags).Match(tag)
	base, _ := matched.Base()
	for _, supported := range supportedTags {
		if supportedBase, _ := supported.Base(); supportedBase == base {
			matched = supported
			break
		}
	}

	return &Catalog{tag: matched, printer: message.NewPrinter(matched, message.Catalog(b))}
}

func (c *Catalog) Tag() language.Tag {
	return c.tag
}

func (c *Catalog) Text(key Key, args ...any) string {
	return c.printer.Sprintf(string(key), args...)
}

// Supported returns the languages the catalog carries.
func Supported() []language.Tag {
	tags := make([]language.Tag, len(supportedTags))
	copy(tags, supportedTags)
	return tags
}
