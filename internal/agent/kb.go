package agent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"foreman/internal/kb"
	"foreman/internal/reasoner"
	"foreman/internal/state"
)

// KBWorker answers a step from the knowledge base with a graded retrieval
// pipeline: retrieve, grade relevance, then either generate an answer or
// rewrite the query and retrieve again. The rewrite loop is bounded; once
// the ceiling is hit a best-effort answer is generated from whatever the
// last retrieval returned.
type KBWorker struct {
	client      reasoner.Client
	store       *kb.Store
	topK        int
	maxRewrites int
	log         *zap.Logger
}

// NewKBWorker builds the knowledge-base worker.
func NewKBWorker(client reasoner.Client, store *kb.Store, topK, maxRewrites int, log *zap.Logger) *KBWorker {
	if topK <= 0 {
		topK = 5
	}
	if maxRewrites < 0 {
		maxRewrites = 3
	}
	return &KBWorker{
		client:      client,
		store:       store,
		topK:        topK,
		maxRewrites: maxRewrites,
		log:         log,
	}
}

func (w *KBWorker) Name() string { return WorkerKB }

func (w *KBWorker) Run(ctx context.Context, st *state.State) (Outcome, error) {
	query := st.Instruction
	instruction := state.HumanMessage(query)
	msgs := []state.Message{instruction}

	searchQuery := query
	var documents string
	var sources []string

	for attempt := 0; ; attempt++ {
		docs, err := w.store.Search(ctx, searchQuery, w.topK)
		if err != nil {
			return Outcome{Route: RouteTerminate, Update: state.Update{Messages: msgs}},
				fmt.Errorf("kb retrieval: %w", err)
		}
		documents, sources = collate(docs)
		msgs = append(msgs, state.ToolMessage("retrieve_information", "retrieve_information", documents))

		relevant, err := w.grade(ctx, query, documents)
		if err != nil {
			return Outcome{Route: RouteTerminate, Update: state.Update{Messages: msgs}}, err
		}
		if relevant {
			break
		}
		if attempt >= w.maxRewrites {
			w.log.Warn("query rewrite ceiling reached, generating best-effort answer",
				zap.Int("rewrites", attempt))
			break
		}

		rewritten, err := w.rewrite(ctx, query)
		if err != nil {
			return Outcome{Route: RouteTerminate, Update: state.Update{Messages: msgs}}, err
		}
		searchQuery = rewritten
		msgs = append(msgs, state.AIMessage(
			fmt.Sprintf("I'll try to improve the search with a more specific query: %q", rewritten)))
	}

	answer, err := w.generate(ctx, query, documents, sources)
	if err != nil {
		return Outcome{Route: RouteTerminate, Update: state.Update{Messages: msgs}}, err
	}
	msgs = append(msgs, state.AIMessage(answer))

	return Outcome{
		Route:  RouteSupervisor,
		Update: state.Update{Messages: msgs, Sources: sources},
	}, nil
}

// grade asks the reasoner whether the retrieved documents can answer the
// query. Anything other than a clear yes counts as no.
func (w *KBWorker) grade(ctx context.Context, query, documents string) (bool, error) {
	if strings.TrimSpace(documents) == "" {
		return false, nil
	}
	verdict, err := w.client.Complete(ctx, relevanceSystemPrompt, relevanceUserPrompt(query, documents))
	if err != nil {
		return false, fmt.Errorf("kb relevance grading: %w", err)
	}
	return strings.Contains(strings.ToLower(verdict), "yes"), nil
}

func (w *KBWorker) rewrite(ctx context.Context, query string) (string, error) {
	rewritten, err := w.client.Complete(ctx, rewriteSystemPrompt, rewriteUserPrompt(query))
	if err != nil {
		return "", fmt.Errorf("kb query rewrite: %w", err)
	}
	return strings.TrimSpace(rewritten), nil
}

func (w *KBWorker) generate(ctx context.Context, query, documents string, sources []string) (string, error) {
	if strings.TrimSpace(documents) == "" {
		return "I couldn't find relevant information to answer your question.", nil
	}

	sourcesText := "No specific sources available."
	if len(sources) > 0 {
		var sb strings.Builder
		sb.WriteString("Sources:\n")
		for i, src := range sources {
			fmt.Fprintf(&sb, "[%d] %s\n", i+1, src)
		}
		sourcesText = strings.TrimRight(sb.String(), "\n")
	}

	answer, err := w.client.Complete(ctx, generateSystemPrompt,
		generateUserPrompt(query, documents, sourcesText))
	if err != nil {
		return "", fmt.Errorf("kb answer generation: %w", err)
	}
	return answer, nil
}

// collate joins document contents and deduplicates their sources in order.
func collate(docs []kb.Document) (string, []string) {
	var contents []string
	var sources []string
	seen := make(map[string]bool)
	for _, doc := range docs {
		contents = append(contents, doc.Content)
		src := doc.Source
		if src == "" {
			src = "Unknown source"
		}
		if !seen[src] {
			seen[src] = true
			sources = append(sources, src)
		}
	}
	return strings.Join(contents, "\n\n"), sources
}
