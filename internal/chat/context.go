package chat

import (
	"github.com/shillcollin/parley/internal/conversation"
	"github.com/shillcollin/parley/internal/core"
)

// contextExchanges bounds how much stored history is replayed to the
// model per turn. Independent of the store's own history cap.
const contextExchanges = 5

const systemPrompt = `You are a helpful, knowledgeable, and friendly AI assistant powered by DeepSeek R1T2 Chimera.

Guidelines:
- Provide clear, accurate, and helpful responses
- If you need to think through a problem, show your reasoning process
- Be conversational and engaging
- Format code blocks properly with language specification
- Use markdown formatting for better readability
- Keep responses concise but comprehensive
- If asked about your capabilities, mention you're powered by DeepSeek R1T2 Chimera via OpenRouter`

// BuildContext assembles the context window for one turn: the fixed
// system instruction, then a user/assistant pair for each of the most
// recent stored exchanges in chronological order, then the new message.
// Reasoning and usage metadata from history are not forwarded.
func BuildContext(history []conversation.Exchange, message string) []core.Message {
	recent := history
	if len(recent) > contextExchanges {
		recent = recent[len(recent)-contextExchanges:]
	}

	messages := make([]core.Message, 0, len(recent)*2+2)
	messages = append(messages, core.SystemMessage(systemPrompt))
	for _, entry := range recent {
		messages = append(messages,
			core.UserMessage(entry.UserMessage),
			core.AssistantMessage(entry.BotResponse),
		)
	}
	return append(messages, core.UserMessage(message))
}
