package rag

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/manualqa/manualqa/internal/index"
	"github.com/manualqa/manualqa/internal/log"
)

const systemPrompt = `You are a documentation assistant. Answer the question using only the numbered context passages below. If the context does not contain the answer, say that the documentation does not cover it. Do not use outside knowledge.`

// excerptLimit caps the per-source excerpt returned alongside an answer.
const excerptLimit = 200

// Engine runs the full question-answering chain: retrieve, assemble the
// prompt, generate.
type Engine struct {
	retriever       *Retriever
	generator       Generator
	maxContextChars int
	logger          log.Logger
}

// NewEngine wires a retriever and generator into an engine. maxContextChars
// bounds the total context stuffed into one prompt; retrieved chunks beyond
// it are dropped from the lowest rank up.
func NewEngine(retriever *Retriever, generator Generator, maxContextChars int, logger log.Logger) (*Engine, error) {
	if retriever == nil {
		return nil, fmt.Errorf("engine requires a retriever")
	}
	if generator == nil {
		return nil, fmt.Errorf("engine requires a generator")
	}
	if maxContextChars < 1 {
		return nil, fmt.Errorf("engine requires max_context_chars >= 1, got %d", maxContextChars)
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Engine{
		retriever:       retriever,
		generator:       generator,
		maxContextChars: maxContextChars,
		logger:          logger,
	}, nil
}

// Answer answers question from indexed documentation. It returns
// ErrInsufficientContext when retrieval yields nothing, so callers can
// distinguish "nothing to ground on" from generation failures.
func (e *Engine) Answer(ctx context.Context, question string) (*Answer, error) {
	results, err := e.retriever.Retrieve(ctx, question)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, ErrInsufficientContext
	}

	kept, truncated := e.fitContext(results)
	if len(kept) == 0 {
		return nil, ErrInsufficientContext
	}

	prompt := buildPrompt(question, kept)
	text, err := e.generator.Generate(ctx, systemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("generating answer: %w", err)
	}

	e.logger.Debug("answer generated",
		"retrieved", len(results),
		"used", len(kept),
		"truncated", truncated,
		"model", e.generator.ModelName())

	return &Answer{
		Text:      text,
		Sources:   sourcesOf(kept),
		Model:     e.generator.ModelName(),
		Truncated: truncated,
	}, nil
}

// fitContext keeps as many retrieved chunks as fit within maxContextChars,
// dropping from the lowest-similarity rank up. The top-ranked chunk is
// always kept, hard-trimmed if it alone exceeds the budget.
func (e *Engine) fitContext(results []index.Result) ([]index.Result, bool) {
	total := 0
	for i, r := range results {
		total += len(r.Entry.Content)
		if total > e.maxContextChars {
			if i == 0 {
				first := results[0]
				first.Entry.Content = trimToRune(first.Entry.Content, e.maxContextChars)
				return []index.Result{first}, true
			}
			return results[:i], true
		}
	}
	return results, false
}

func buildPrompt(question string, results []index.Result) string {
	var b strings.Builder
	b.WriteString("Context:\n")
	for i, r := range results {
		fmt.Fprintf(&b, "\n[%d] (source: %s", i+1, r.Entry.SourcePath)
		if r.Entry.Page > 0 {
			fmt.Fprintf(&b, ", page %d", r.Entry.Page)
		}
		b.WriteString(")\n")
		b.WriteString(r.Entry.Content)
		b.WriteString("\n")
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(question)
	return b.String()
}

func sourcesOf(results []index.Result) []Source {
	sources := make([]Source, len(results))
	for i, r := range results {
		sources[i] = Source{
			SourcePath: r.Entry.SourcePath,
			Page:       r.Entry.Page,
			Excerpt:    trimToRune(r.Entry.Content, excerptLimit),
		}
	}
	return sources
}

// trimToRune cuts s to at most n bytes without splitting a UTF-8 sequence.
func trimToRune(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
