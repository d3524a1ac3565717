package party

// ShowFriend binds the friend-detail buttons to friendID. An empty id hides
// them.
func (s *Session) ShowFriend(friendID string) {
	s.friend = friendID
	s.refreshWidgets()
}

func (s *Session) setInviting(inviting bool) {
	s.inviting = inviting
	if s.widgets != nil {
		s.widgets.SetEnabled(WidgetInvite, !inviting)
	}
}

func (s *Session) refreshWidgets() {
	if s.widgets == nil {
		return
	}

	if s.friend == "" {
		s.widgets.SetVisible(WidgetInvite, false)
		s.widgets.SetVisible(WidgetKick, false)
		s.widgets.SetVisible(WidgetPromote, false)
		return
	}

	local, _ := s.localID()
	friendInParty := s.IsInParty(s.friend)
	leading := local != "" && s.IsLeader(local)

	s.widgets.SetVisible(WidgetInvite, !friendInParty)
	s.widgets.SetEnabled(WidgetInvite, !s.inviting)
	s.widgets.SetVisible(WidgetKick, leading && friendInParty)
	s.widgets.SetVisible(WidgetPromote, leading && friendInParty)
}
