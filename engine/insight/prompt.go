package insight

import (
	"fmt"
	"strings"

	"github.com/scentmatch/scentmatch/engine/domain"
)

// questionLabels name the ten questionnaire answers in the prompt, in
// question order.
var questionLabels = [10]string{
	"Longevity preference",
	"When it is worn",
	"Personality",
	"Favorite aroma",
	"Scent nuance",
	"Main activity",
	"A memorable perfume",
	"Gender lean",
	"Scent intensity",
	"Time of day",
}

// BuildPrompt renders the questionnaire into the generation prompt. The
// service is asked for a bare JSON object with exactly four string fields;
// the length limits are requested, not enforced locally.
func BuildPrompt(a domain.QuestionnaireAnswers) string {
	var b strings.Builder

	b.WriteString("Act as a perfume expert recommending the best possible perfume for anyone.\n")
	fmt.Fprintf(&b, "Based on %s's answers about their perfume preferences:\n\n", a.Name)

	for i, answer := range a.Answers() {
		fmt.Fprintf(&b, "%d %s: %s\n", i+1, questionLabels[i], answer)
	}

	b.WriteString(`
Your tasks:
1. Analyze the user's personality from their perfume choices.
2. Describe their ideal perfume persuasively.
3. Write a short perfume search query for a vector database.
4. Make the answer engaging, persuasive, and informative; you may address the user by name.

Expected JSON format:
{
`)
	fmt.Fprintf(&b, "  \"characteristics\": \"A short sketch of %s's personality... max 225 characters\",\n", a.Name)
	b.WriteString("  \"ideal_scent\": \"A description of the perfume and notes that would suit them... max 300 characters\",\n")
	fmt.Fprintf(&b, "  \"persona\": \"One word that describes %s\",\n", a.Name)
	b.WriteString("  \"query\": \"A short perfume search query\"\n}\n")

	return b.String()
}
