// internal/gmail/types.go
package gmail

import "time"

type MessageID string
type LabelID string

// Message is a fetched mail in the shape the snapshot keeps: the headers
// rules can filter on plus the first text/plain body part.
type Message struct {
	ID      MessageID
	Subject string
	From    string
	Date    time.Time
	Body    string
}

// ModifyOps describes label changes for a single message. MarkRead and
// Archive remove UNREAD and INBOX only when the message carries them.
type ModifyOps struct {
	AddLabels    []LabelID
	RemoveLabels []LabelID
	MarkRead     bool
	Archive      bool
}

type Query struct {
	Raw string // Gmail query string, already formed (e.g., `in:inbox -is:chat`)
}

// ListPage is one page of message IDs from a list call.
type ListPage struct {
	IDs           []MessageID
	NextPageToken string
}
