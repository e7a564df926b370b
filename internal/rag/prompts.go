package rag

import (
	"fmt"
	"strings"
)

// PromptPair is a system/user prompt pair for one completion call.
type PromptPair struct {
	System string
	User   string
}

// PromptWithCitations extends PromptPair with the citation records allocated
// for this request and the ordered list of valid cN tokens.
type PromptWithCitations struct {
	System           string
	User             string
	Citations        []CitationData
	ValidCitationIDs []string
}

const jsonFormatInstruction = `You MUST respond with a JSON object in this exact format:
{
  "answer": "Your response text here",
  "citations": []
}`

const noDocumentsSystemPrompt = `You are a helpful document assistant. Currently, no documents have been uploaded.

Your only task is to inform the user that they need to upload documents before you can answer questions about them.`

const emptyRetrievalSystemPrompt = `You are a helpful document assistant. The user has uploaded documents, but no relevant information was found for their query.

IMPORTANT RULES:
1. Do NOT make up or invent any information
2. Do NOT answer based on general knowledge
3. Politely inform the user that their question could not be answered based on the uploaded documents
4. Suggest they try rephrasing their question or check if the relevant document was uploaded`

// BuildPrompt produces a system/user prompt pair conditioned on the retrieval
// state, instructing the model to emit a single JSON object with inline
// {{cite:cX}} markers when context is available.
func BuildPrompt(query string, result RetrievalResult, hasDocuments bool) PromptWithCitations {
	if !hasDocuments {
		return PromptWithCitations{
			System: noDocumentsSystemPrompt + "\n\n" + jsonFormatInstruction + "\n\nBe polite and helpful in your response.",
			User:   query,
		}
	}

	if result.IsEmpty || len(result.Chunks) == 0 {
		return PromptWithCitations{
			System: emptyRetrievalSystemPrompt + "\n\n" + jsonFormatInstruction + "\n\nBe concise and helpful.",
			User:   query,
		}
	}

	assembled := AssembleContext(result)
	validIDs := make([]string, 0, len(assembled.Citations))
	for _, citation := range assembled.Citations {
		validIDs = append(validIDs, citation.ID)
	}

	system := fmt.Sprintf(`You are a helpful document assistant. Answer the user's question using ONLY the information from the provided context.

CRITICAL: YOUR ENTIRE RESPONSE MUST BE A SINGLE JSON OBJECT. DO NOT OUTPUT ANYTHING BEFORE OR AFTER THE JSON.

CITATION INSTRUCTIONS:
- Each source in the context has a Citation ID (%s)
- You MUST add {{cite:cX}} markers inline with your answer text
- Place citation markers immediately after each claim from that source
- Example: "The event occurred in 1872{{cite:c1}} and involved soldiers{{cite:c2}}."

RESPONSE FORMAT - RETURN ONLY THIS JSON:
{
  "answer": "Your answer with {{cite:c1}} markers inline.",
  "citations": []
}

RULES:
1. Use ONLY information from the provided context
2. Add {{cite:cX}} after EVERY claim that comes from a source
3. Use plain text only, no markdown
4. The "citations" array should be empty - the system fills it

EXAMPLE RESPONSE:
{"answer": "The capital of France is Paris{{cite:c1}}. It has a population of 2 million{{cite:c1}}.", "citations": []}`,
		strings.Join(validIDs, ", "))

	return PromptWithCitations{
		System:           system,
		User:             buildContextUserPrompt(assembled.ContextString, query),
		Citations:        assembled.Citations,
		ValidCitationIDs: validIDs,
	}
}

// BuildLegacyPrompt is the non-citation variant: the model answers from the
// plain context block without structured output or markers.
func BuildLegacyPrompt(query string, result RetrievalResult, hasDocuments bool) PromptPair {
	if !hasDocuments {
		return PromptPair{
			System: noDocumentsSystemPrompt + "\n\nBe polite and helpful in your response.",
			User:   query,
		}
	}

	if result.IsEmpty || len(result.Chunks) == 0 {
		return PromptPair{
			System: emptyRetrievalSystemPrompt + "\n\nBe concise and helpful.",
			User:   query,
		}
	}

	system := `You are a helpful document assistant. Answer the user's question using ONLY the information from the provided context.

IMPORTANT RULES:
1. Use ONLY information from the provided context - extract specific names, values, and details
2. Be specific and detailed - include actual names, numbers, and descriptions from the documents
3. If asked to list things, provide the actual names/items found in the context
4. If the context doesn't contain enough information to fully answer, say so
5. Do NOT make up or invent information beyond what's in the context
6. Do NOT cite source numbers (no "[Source 1]" references)
7. FORMATTING: Use plain text only. NO asterisks (*), NO bullet points, NO markdown. For lists, use numbered lists (1. 2. 3.) or separate items with commas.
8. Be helpful and informative, not vague or generic`

	return PromptPair{
		System: system,
		User:   buildContextUserPrompt(FormatContext(result), query),
	}
}

func buildContextUserPrompt(context, query string) string {
	return fmt.Sprintf("Context from uploaded documents:\n\n%s\n\n---\n\nUser question: %s", context, query)
}
