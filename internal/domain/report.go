package domain

import "time"

// Report status values recorded by the archive.
const (
	ReportPosted     = "posted"
	ReportPostFailed = "post_failed"
)

// Entry pairs a question prompt with the answer given to it.
type Entry struct {
	Question string
	Answer   string
}

// Report is the consolidated summary of one finished conversation.
type Report struct {
	UserID      string
	RoundID     string
	ChannelID   string
	Entries     []Entry
	Text        string
	CompletedAt time.Time
}
