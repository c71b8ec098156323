package ai

import (
	"fmt"
	"strings"
)

// maxPromptContent bounds how much article text is sent to the model
const maxPromptContent = 4000

// PromptTemplates contains the prompts used for newsletter summarization
var PromptTemplates = struct {
	SummarySystem   string
	Summary         string
	KeyPointsSystem string
	KeyPoints       string
}{
	SummarySystem: "You are a professional newsletter editor. " +
		"Summarize content in a concise, engaging way for newsletter readers. " +
		"Focus on key insights and actionable information.",

	Summary: `Summarize the following article for a newsletter audience.
Keep it concise but informative (2-4 sentences).
Only state facts that appear in the article.

Title: %s

Article:
%s

Summary:`,

	KeyPointsSystem: "Extract key points clearly and concisely.",

	KeyPoints: `Extract the %d most important points from this article.
Format as a numbered list. Each point should be one clear, concise sentence.

Article:
%s

Key Points:`,
}

// BuildSummaryPrompt creates the user prompt for a summary
func BuildSummaryPrompt(title, content string) string {
	return fmt.Sprintf(PromptTemplates.Summary, escapeForPrompt(title), truncateForPrompt(content))
}

// BuildKeyPointsPrompt creates the user prompt for key point extraction
func BuildKeyPointsPrompt(content string, maxPoints int) string {
	if maxPoints < 1 {
		maxPoints = 5
	}
	return fmt.Sprintf(PromptTemplates.KeyPoints, maxPoints, truncateForPrompt(content))
}

// escapeForPrompt flattens a single-line field
func escapeForPrompt(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\t", " ")
	return strings.TrimSpace(s)
}

func truncateForPrompt(s string) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= maxPromptContent {
		return s
	}
	return string(r[:maxPromptContent]) + "..."
}
