// Package prompt is the notification surface the session and tutorial
// layers report to.
package prompt

import "time"

type Button struct {
	Label   string
	OnClick func()
}

type Notification struct {
	Message     string
	AvatarURL   string
	Interactive bool
	Buttons     []Button
	Timeout     time.Duration
}

type PopUpKind int

const (
	PopUpOK PopUpKind = iota
	PopUpYesNo
)

type Response int

const (
	Confirmed Response = iota
	Declined
	Closed
)

func (r Response) String() string {
	switch r {
	case Confirmed:
		return "confirmed"
	case Declined:
		return "declined"
	default:
		return "closed"
	}
}

type PopUp struct {
	Title      string
	Message    string
	Kind       PopUpKind
	OnResponse func(Response)
}

type Sink interface {
	PushNotification(n Notification)
	ShowDialoguePopUp(p PopUp)
}
