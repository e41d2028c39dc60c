package ai

import (
	"strings"

	"github.com/suPer8Hu/providentia/internal/rag"
)

const systemPrompt = `You are Providentia, an expert EPFO (Employees' Provident Fund Organisation) assistant. Answer EPF-related questions accurately and professionally.

Instructions:
1. Answer ONLY based on the provided context
2. Be precise, concise, and professional
3. If the context doesn't contain enough information, clearly state what is missing
4. Cite relevant sections or rules when possible
5. Provide step-by-step guidance for complex procedures`

const noContextPrompt = `You are Providentia, an expert EPFO (Employees' Provident Fund Organisation) assistant. No source documents were found for this question, so answer from general knowledge and say explicitly that the answer is not backed by retrieved sources. If more specific information is needed for a complete answer, tell the user what details would help.`

// BuildMessages turns a question and its retrieved passages into the
// chat transcript sent to the model. With no passages the model is told
// to answer unsupported rather than refuse.
func BuildMessages(question string, passages []rag.Passage) []Message {
	if len(passages) == 0 {
		return []Message{
			{Role: "system", Content: noContextPrompt},
			{Role: "user", Content: question},
		}
	}

	var sb strings.Builder
	sb.WriteString("Context:\n")
	for i, p := range passages {
		if i > 0 {
			sb.WriteString("\n\n---\n\n")
		}
		sb.WriteString("[Source: ")
		sb.WriteString(p.Source)
		sb.WriteString("]\n")
		sb.WriteString(p.Text)
	}
	sb.WriteString("\n\nQuestion: ")
	sb.WriteString(question)

	return []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: sb.String()},
	}
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
