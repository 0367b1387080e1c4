// Package observerproto is the JSON message set spoken between the session's view
// bridge and a browser or terminal front-end over a websocket.
package observerproto

import (
	"time"

	"rybalka.web/internal/game"
	"rybalka.web/internal/session"
)

const Version = "0.1"

const (
	TypeSubscribe = "SUBSCRIBE"
	TypeSnapshot  = "SNAPSHOT"
	TypeNotice    = "NOTICE"
	TypeAction    = "ACTION"
	TypeResult    = "RESULT"
)

// Client -> Server. First message on the connection.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	// Notices opts out of NOTICE messages when false. Defaults to true.
	Notices *bool `json:"notices,omitempty"`
}

func (m SubscribeMsg) WantsNotices() bool { return m.Notices == nil || *m.Notices }

// HTTP response for GET /view/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string          `json:"protocol_version"`
	UserID          string          `json:"user_id"`
	Slots           []SlotInfo      `json:"slots"`
	Categories      []game.Category `json:"categories"`
	WormPrice       int64           `json:"worm_price"`
}

type SlotInfo struct {
	Kind  game.SlotKind `json:"kind"`
	Label string        `json:"label"`
}

// Server -> Client. Sent on subscribe and after every store change.
type SnapshotMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	View            session.View `json:"view"`
	// BonusLines is the formatted bonus panel, baseline kinds omitted.
	BonusLines []string `json:"bonus_lines"`
}

// Server -> Client.
type NoticeMsg struct {
	Type            string        `json:"type"`
	ProtocolVersion string        `json:"protocol_version"`
	Level           session.Level `json:"level"`
	Action          string        `json:"action,omitempty"`
	Text            string        `json:"text"`
	At              time.Time     `json:"at"`
}

// Client -> Server. One user gesture.
type ActionMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	ID              string          `json:"id,omitempty"`
	Command         session.Command `json:"command"`
}

// Server -> Client. Answer to one ActionMsg, matched by ID.
type ResultMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	ID              string          `json:"id,omitempty"`
	OK              bool            `json:"ok"`
	Kind            string          `json:"kind,omitempty"`
	Error           string          `json:"error,omitempty"`
	Result          *session.Result `json:"result,omitempty"`
}

func NewSnapshot(v session.View) SnapshotMsg {
	lines := v.Snapshot.Bonuses.Lines()
	if lines == nil {
		lines = []string{}
	}
	return SnapshotMsg{Type: TypeSnapshot, ProtocolVersion: Version, View: v, BonusLines: lines}
}

func NewNotice(n session.Notification) NoticeMsg {
	return NoticeMsg{
		Type:            TypeNotice,
		ProtocolVersion: Version,
		Level:           n.Level,
		Action:          string(n.Action),
		Text:            n.Text,
		At:              n.At,
	}
}

// NewResult builds the answer for a dispatched action. A nil error is success.
func NewResult(id string, res session.Result, err error) ResultMsg {
	m := ResultMsg{Type: TypeResult, ProtocolVersion: Version, ID: id}
	if err != nil {
		m.Kind = session.Classify(err).String()
		m.Error = session.UserMessage(err)
		return m
	}
	m.OK = true
	m.Result = &res
	return m
}
