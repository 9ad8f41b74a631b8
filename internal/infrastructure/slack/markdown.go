package slack

import (
	"fmt"
	"regexp"
	"strings"
)

// Answer text arrives as standard markdown from the LLM; Slack renders
// its own mrkdwn dialect. Conversion covers the constructs models
// actually emit: bold, links and headings. Anything else passes
// through untouched.
var (
	mdBold    = regexp.MustCompile(`\*\*(.+?)\*\*`)
	mdBoldAlt = regexp.MustCompile(`__(.+?)__`)
	mdLink    = regexp.MustCompile(`\[([^\]]+)\]\(([^)\s]+)\)`)
	mdHeading = regexp.MustCompile(`(?m)^#{1,6}\s+(.+)$`)
)

// ToMrkdwn converts markdown emphasis, links and headings to Slack
// mrkdwn.
func ToMrkdwn(text string) string {
	out := mdBold.ReplaceAllString(text, "*$1*")
	out = mdBoldAlt.ReplaceAllString(out, "*$1*")
	out = mdLink.ReplaceAllString(out, "<$2|$1>")
	out = mdHeading.ReplaceAllString(out, "*$1*")
	return out
}

// Mention renders an in-text mention of the given user.
func Mention(userID string) string {
	return fmt.Sprintf("<@%s>", userID)
}

// StripMention removes every mention of botUserID from text and trims
// the remainder, leaving the bare query. Mentions of other users are
// left alone.
func StripMention(text, botUserID string) string {
	out := strings.ReplaceAll(text, Mention(botUserID), "")
	return strings.TrimSpace(out)
}

// ContainsMention reports whether text mentions the given user anywhere.
func ContainsMention(text, botUserID string) bool {
	return strings.Contains(text, Mention(botUserID))
}
