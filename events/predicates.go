package events

func IsName(name Name) Predicate {
	return func(evt Event) bool {
		if evt == nil {
			return false
		}

		return evt.Name() == name
	}
}

func PartyMemberChangedFor(memberID string, joined bool) Predicate {
	return func(evt Event) bool {
		change, ok := evt.(PartyMemberChanged)
		if !ok {
			return false
		}

		if memberID != "" && change.MemberID != memberID {
			return false
		}

		return change.Joined == joined
	}
}

func PartyLeaderIs(leaderID string) Predicate {
	return func(evt Event) bool {
		change, ok := evt.(PartyLeaderChanged)
		if !ok {
			return false
		}

		return change.LeaderID == leaderID
	}
}

func PartyCreatedOK() Predicate {
	return func(evt Event) bool {
		created, ok := evt.(PartyCreated)
		return ok && created.Err == nil
	}
}

func InviteReceivedFrom(senderID string) Predicate {
	return func(evt Event) bool {
		invite, ok := evt.(PartyInviteReceived)
		if !ok {
			return false
		}

		if senderID == "" {
			return true
		}

		return invite.SenderID == senderID
	}
}

func LobbyTopic(topic string) Predicate {
	return func(evt Event) bool {
		notif, ok := evt.(LobbyNotification)
		if !ok {
			return false
		}

		return notif.Topic == topic
	}
}

func FTUEDialogueShown(dialogueID string) Predicate {
	return func(evt Event) bool {
		shown, ok := evt.(FTUEShown)
		if !ok {
			return false
		}

		if dialogueID == "" {
			return true
		}

		return shown.DialogueID == dialogueID
	}
}

func Any(predicates ...Predicate) Predicate {
	return func(evt Event) bool {
		for _, predicate := range predicates {
			if predicate == nil {
				continue
			}

			if predicate(evt) {
				return true
			}
		}

		return false
	}
}
