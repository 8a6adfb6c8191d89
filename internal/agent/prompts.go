package agent

import "fmt"

// Worker system prompts.
const (
	fsSystemPrompt = `You are a file operations specialist. You read, write, and manage files on behalf of the user.`

	shellSystemPrompt = `You are a system operations specialist. You execute shell commands and scripts.`

	browserSystemPrompt = `You are a web research specialist. You browse the web, search for information, and extract data.`
)

// fileWritePrompt is the system prompt for the staged content-synthesis
// step, entered when a write is requested without content.
func fileWritePrompt(instruction string) string {
	return fmt.Sprintf(`You are an expert at synthesizing content according to the provided instructions and conversation history.
%s

When receiving a content creation instruction, assess whether adequate research has been done. If not, recommend returning to research phase first.

File write strategy: Overwrite contents`, instruction)
}

// Knowledge-base pipeline prompts.
const (
	relevanceSystemPrompt = `You are a grader assessing the relevance of retrieved documents to a user question.

Respond with ONLY "yes" if the documents contain information relevant to answering the question.
Respond with ONLY "no" if the documents do not contain information relevant to the question.`

	rewriteSystemPrompt = `You are an expert at improving search queries to get better results from a knowledge base.
Rewrite the given query to be more specific, include relevant keywords, and make it more effective for retrieval.
Return ONLY the rewritten query, nothing else.`

	generateSystemPrompt = `You are a helpful assistant that generates accurate, informative answers based on retrieved information.
When answering:
1. Stick to the information provided in the retrieved documents
2. If the documents don't contain the complete answer, acknowledge the limitations
3. Format your response clearly with appropriate structure
4. Be concise but comprehensive
5. Cite sources using reference numbers [1], [2], etc. where appropriate
6. Include a "Sources" section at the end of your answer if you reference any sources`
)

func relevanceUserPrompt(query, documents string) string {
	return fmt.Sprintf(`User question: %s

Retrieved documents:
%s

Are these documents relevant to the question? Answer with ONLY "yes" or "no".`, query, documents)
}

func rewriteUserPrompt(query string) string {
	return fmt.Sprintf(`Original query: %s

Rewritten query:`, query)
}

func generateUserPrompt(query, documents, sourcesText string) string {
	return fmt.Sprintf(`User question: %s

Retrieved information:
%s

%s

Please provide a helpful answer based on this information, citing sources where appropriate:`,
		query, documents, sourcesText)
}
