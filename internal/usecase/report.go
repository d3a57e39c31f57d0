package usecase

import (
	"strings"
	"time"

	"standup-bot/internal/domain"
)

func buildReport(conv domain.Conversation, questions []string, channelID string, completed time.Time) domain.Report {
	entries := make([]domain.Entry, 0, len(conv.Answers))
	for i, answer := range conv.Answers {
		if i >= len(questions) {
			break
		}
		entries = append(entries, domain.Entry{Question: questions[i], Answer: answer})
	}
	return domain.Report{
		UserID:      conv.UserID,
		RoundID:     conv.RoundID,
		ChannelID:   channelID,
		Entries:     entries,
		Text:        formatReport(conv.UserID, entries),
		CompletedAt: completed,
	}
}

// formatReport renders a report in Slack mrkdwn: a header mentioning the user,
// then each question in bold followed by its answer.
func formatReport(userID string, entries []domain.Entry) string {
	var b strings.Builder
	b.WriteString("📢 *Standup report from <@")
	b.WriteString(userID)
	b.WriteString(">:*\n")
	for _, e := range entries {
		b.WriteString("\n*")
		b.WriteString(e.Question)
		b.WriteString("*\n👉 ")
		b.WriteString(e.Answer)
		b.WriteString("\n")
	}
	return b.String()
}
