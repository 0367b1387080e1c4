package session

import "time"

type Level string

const (
	LevelInfo        Level = "info"
	LevelSuccess     Level = "success"
	LevelError       Level = "error"
	LevelAchievement Level = "achievement"
)

type Notification struct {
	Level  Level     `json:"level"`
	Action Action    `json:"action,omitempty"`
	Text   string    `json:"text"`
	At     time.Time `json:"at"`
}

type Notifier interface {
	Notify(Notification)
}

type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// Fanout delivers each notification to every non-nil notifier in order.
type Fanout []Notifier

func (f Fanout) Notify(n Notification) {
	for _, x := range f {
		if x != nil {
			x.Notify(n)
		}
	}
}

// RenderSink receives a fresh View whenever the store changes in a way the user
// should see.
type RenderSink interface {
	Render(View)
}

type RenderFunc func(View)

func (f RenderFunc) Render(v View) { f(v) }
