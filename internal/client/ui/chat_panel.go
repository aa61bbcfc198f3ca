package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/yourusername/chatbubble/internal/chat"
)

const emptyHistoryText = "No messages yet. Ask me anything!"

// renderHistory lays out the conversation for the viewport. User messages sit on the
// right, bot messages on the left.
func renderHistory(history chat.History, width int) string {
	if len(history) == 0 {
		return mutedStyle.Render(emptyHistoryText)
	}
	if width < 10 {
		width = 10
	}
	bubbleWidth := width * 3 / 4

	blocks := make([]string, 0, len(history))
	for _, msg := range history {
		blocks = append(blocks, renderMessage(msg, bubbleWidth, width))
	}
	return strings.Join(blocks, "\n\n")
}

func renderMessage(msg chat.Message, bubbleWidth, width int) string {
	sender, style, align := "Bot", botMessageStyle, lipgloss.Left
	if msg.IsUser {
		sender, style, align = "You", userMessageStyle, lipgloss.Right
	}

	body := style.Width(min(bubbleWidth, lipgloss.Width(msg.Content)+2)).Render(msg.Content)
	block := lipgloss.JoinVertical(align, senderStyle.Render(sender), body)
	return lipgloss.PlaceHorizontal(width, align, block)
}
