package models

import "time"

// NotProvided is the player id reported when none could be found in the input.
const NotProvided = "NOT_PROVIDED"

type Registrant struct {
	Nickname     string
	PlayerID     string
	AccountID    int64
	RegisteredAt time.Time
}

// Row is the spreadsheet layout: nickname, player id, account id, timestamp.
func (r Registrant) Row() []interface{} {
	ts := ""
	if !r.RegisteredAt.IsZero() {
		ts = r.RegisteredAt.Format(time.RFC3339)
	}
	return []interface{}{r.Nickname, r.PlayerID, r.AccountID, ts}
}

type LobbyPlayer struct {
	AccountID int64  `json:"telegram_id"`
	Nickname  string `json:"nickname"`
}

type Match struct {
	MatchID   string
	LobbyID   string
	Password  string
	Players   []LobbyPlayer
	CreatedAt time.Time
}

// Submitter identifies the chat user behind an incoming event.
type Submitter struct {
	AccountID int64
	FirstName string
	LastName  string
	Username  string
}

func (s Submitter) FullName() string {
	if s.LastName == "" {
		return s.FirstName
	}
	return s.FirstName + " " + s.LastName
}

type AttachmentKind int

const (
	AttachmentPhoto AttachmentKind = iota
	AttachmentDocument
)

type Attachment struct {
	Kind   AttachmentKind
	FileID string
}
