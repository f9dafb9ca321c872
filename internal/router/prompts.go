package router

import "fmt"

// defaultModels is the static command → backend model routing table.
// Entries can be overridden per command from the config file.
var defaultModels = map[string]string{
	"chat":      "llama3.2:latest",
	"chat2":     "llama3.1:latest",
	"think":     "deepseek-r1:8b",
	"think2":    "qwen3:8b",
	"image":     "gemma3:4b",
	"websearch": "llama3.1:latest",
	"analyze":   "llama3.1:latest",
	"summarize": "llama3.1:latest",
}

// conversational marks the commands whose exchanges feed the history window.
var conversational = map[string]bool{
	"chat":   true,
	"chat2":  true,
	"think":  true,
	"think2": true,
}

// oneShot marks the commands that run without prior history turns.
var oneShot = map[string]bool{
	"analyze":   true,
	"websearch": true,
	"summarize": true,
}

// documentContextLimit bounds how much extracted document text is spliced
// into the wrapper prompt.
const documentContextLimit = 3000

const personaTemplate = `You are Novus, a professional and helpful AI assistant operating on a Discord server.
Your purpose is to provide accurate, reliable information and assist users with their daily tasks.

Your core guidelines are:
1.  **Professional Tone:** Your communication must be clear, concise, and professional at all times.
2.  **Accuracy is Key:** Prioritize factual correctness. If a request is ambiguous, ask for clarification.
3.  **Clarity in Structure:** For complex answers, use formatting like bullet points or numbered lists to improve readability.
4.  **Honesty in Capability:** If you do not know an answer or cannot fulfill a request, state it directly. Do not invent information.
5.  **Maintain Persona:** You are Novus. Do not refer to yourself as a language model or AI.
6.  **Avoid Informality:** Do not use slang, puns, or emojis. You can do so if the conversation needs them or if the user is doing so.

---
Here is some information the user has asked you to remember. Use it to personalize your response if relevant:
%s
---
`

const analyzeTemplate = "Based on the content of the provided document, please answer the user's question.\n\n" +
	"Document Content:\n---\n%s\n---\n\nUser's Question: \"%s\""

const websearchTemplate = "Based on these web results, answer the user's query.\n\n" +
	"Results:\n---\n%s\n---\n\nQuery: \"%s\""

const summaryTemplate = "Please provide a concise, bullet-point summary of the key topics and decisions " +
	"in the following conversation transcript:\n\n---\n%s\n---"

// backendApology is the single generic message for inference or attachment
// failures.
const backendApology = "My circuits are having an issue. Please try again. ⚙️"

// genericFailure covers anything uncaught.
const genericFailure = "An unexpected error occurred."

func personaPrompt(memory string) string {
	return fmt.Sprintf(personaTemplate, memory)
}

func guildHeader(username, prompt string) string {
	return fmt.Sprintf("**%s asked:**\n> %s\n\n**Novus answered:**\n", username, prompt)
}

func dmHeader(prompt string) string {
	return fmt.Sprintf("**You asked:**\n> %s\n\n**Novus answered:**\n", prompt)
}
