package chat

import (
	"slices"
	"strings"

	"github.com/PbVrCt/serverless-chat-demo/internal/completion"
	"github.com/PbVrCt/serverless-chat-demo/internal/database"
	"github.com/PbVrCt/serverless-chat-demo/internal/identity"
)

// DisplayNamePlaceholder is replaced in the persona by the requester's
// display name.
const DisplayNamePlaceholder = "{display_name}"

// turnOverheadTokens approximates the per-turn formatting cost.
const turnOverheadTokens = 15

// EstimateTokens provides a simple ballpark token count
// that works reasonably well across different models.
func EstimateTokens(text string) int {
	return len(text)/3 + 5
}

func turnTokens(t completion.Turn) int {
	return EstimateTokens(t.Content) + turnOverheadTokens
}

// SortByCreatedAt orders messages by CreatedAt ascending. Ties keep the
// order they arrived in.
func SortByCreatedAt(messages []database.Message) {
	slices.SortStableFunc(messages, func(a, b database.Message) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
}

// BuildContext assembles the conversation sent to the model: the persona as
// a system turn, every AI-generated message in chronological order, then the
// prompt. AI messages of the requester's tenant are the assistant's own
// turns; those of other tenants are presented as user turns. Human messages
// never enter the context.
func BuildContext(persona string, requester identity.Identity, messages []database.Message, prompt string) []completion.Turn {
	history := make([]database.Message, 0, len(messages))
	for _, m := range messages {
		if m.AIGenerated {
			history = append(history, m)
		}
	}
	SortByCreatedAt(history)

	turns := make([]completion.Turn, 0, len(history)+2)
	turns = append(turns, completion.Turn{
		Role:    completion.RoleSystem,
		Content: strings.ReplaceAll(persona, DisplayNamePlaceholder, requester.DisplayName),
	})

	for _, m := range history {
		role := completion.RoleUser
		if m.TenantID == requester.TenantID {
			role = completion.RoleAssistant
		}
		turns = append(turns, completion.Turn{Role: role, Content: m.Text})
	}

	return append(turns, completion.Turn{Role: completion.RoleUser, Content: prompt})
}

// FitWindow drops the oldest history turns until the estimated size of turns
// fits maxTokens. The first (system) and last (prompt) turns are always
// kept, even if they alone exceed the window. maxTokens <= 0 disables
// truncation. It returns the kept turns and the number dropped.
func FitWindow(turns []completion.Turn, maxTokens int) ([]completion.Turn, int) {
	if maxTokens <= 0 || len(turns) <= 2 {
		return turns, 0
	}

	system, history, prompt := turns[0], turns[1:len(turns)-1], turns[len(turns)-1]
	available := maxTokens - turnTokens(system) - turnTokens(prompt)

	// Count backward from the most recent history turn.
	used := 0
	first := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		cost := turnTokens(history[i])
		if used+cost > available {
			break
		}
		used += cost
		first = i
	}

	kept := make([]completion.Turn, 0, len(history)-first+2)
	kept = append(kept, system)
	kept = append(kept, history[first:]...)
	kept = append(kept, prompt)
	return kept, first
}
