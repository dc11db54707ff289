package match

import (
	"fmt"

	"github.com/talentsync/talentsync/internal/llm"
)

const systemPrompt = `You are a recruiting assistant. Given a job description and one candidate
profile, explain in a short paragraph how well the candidate fits the role.
Mention concrete strengths and gaps. Finish with a final line of the exact
form "SCORE: N/100" where N is an integer between 0 and 100.`

// buildPrompt assembles the per-candidate explanation prompt.
func buildPrompt(queryText, candidateText string) *llm.Prompt {
	user := fmt.Sprintf("Job description:\n%s\n\nCandidate profile:\n%s", queryText, candidateText)
	return llm.UserPrompt(systemPrompt, user)
}
