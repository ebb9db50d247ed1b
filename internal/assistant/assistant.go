// Package assistant answers marketplace questions: canned replies first, then
// help topics, then catalog search for short queries, then an LLM.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"campusmart/pkg/ai"
	"campusmart/pkg/domain"
)

type Source string

const (
	SourceCanned Source = "canned"
	SourceHelp   Source = "help"
	SourceSearch Source = "search"
	SourceLLM    Source = "llm"
)

const (
	maxPromptLength = 2000
	maxHistoryTurns = 10
	maxSearchHits   = 5
)

var (
	ErrPromptRequired = errors.New("prompt is required")
	ErrPromptTooLong  = errors.New("prompt exceeds 2000 characters")
	// ErrModel wraps LLM failures.
	ErrModel = errors.New("assistant model error")
)

const systemInstruction = `You are the help assistant for Campusmart, a marketplace where students of one campus buy and sell used items.
Sign-in is through the campus single sign-on. Sellers list items with a title, description, price in rupees, photo, category and subcategory.
Buyers add items to a cart and check out; checkout creates one order per seller and shows the buyer a 6-digit OTP.
The buyer meets the seller, hands over payment and tells the seller the OTP; the seller enters it to complete the order.
Buyers and sellers can chat in the app. Keep answers short and practical. If you do not know something about a specific listing, suggest searching the catalog or messaging the seller.`

const noModelReply = "I can help with selling, buying, carts, OTPs, payments, chat and your account, or search listings if you type an item name. For anything else, please contact support from the Help page."

// Catalog is the product source used for search.
type Catalog interface {
	ListProducts(category, subCategory string) ([]domain.Product, error)
}

// Reply is the assistant's answer and where it came from.
type Reply struct {
	Text   string `json:"generatedText"`
	Source Source `json:"source"`
}

type Assistant struct {
	catalog Catalog
	model   ai.ChatModel
}

// New builds an assistant. model may be nil, in which case prompts that reach
// the LLM stage get a fixed reply.
func New(catalog Catalog, model ai.ChatModel) *Assistant {
	return &Assistant{catalog: catalog, model: model}
}

// Respond answers prompt given the prior conversation.
func (a *Assistant) Respond(ctx context.Context, prompt string, history []ai.Turn) (Reply, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return Reply{}, ErrPromptRequired
	}
	if utf8.RuneCountInString(prompt) > maxPromptLength {
		return Reply{}, ErrPromptTooLong
	}
	norm := normalize(prompt)

	if text, ok := cannedReply(norm); ok {
		return Reply{Text: text, Source: SourceCanned}, nil
	}
	if text, ok := helpReply(norm); ok {
		return Reply{Text: text, Source: SourceHelp}, nil
	}
	if isProductQuery(prompt, norm) && a.catalog != nil {
		hits, err := a.search(norm)
		if err != nil {
			return Reply{}, err
		}
		return Reply{Text: formatHits(norm, hits), Source: SourceSearch}, nil
	}

	if a.model == nil {
		return Reply{Text: noModelReply, Source: SourceCanned}, nil
	}
	turns := trimHistory(history)
	turns = append(turns, ai.Turn{Role: ai.RoleUser, Text: prompt})
	text, err := a.model.Chat(ctx, systemInstruction, turns)
	if err != nil {
		return Reply{}, fmt.Errorf("%w: %v", ErrModel, err)
	}
	return Reply{Text: text, Source: SourceLLM}, nil
}

func trimHistory(history []ai.Turn) []ai.Turn {
	out := make([]ai.Turn, 0, maxHistoryTurns+1)
	for _, t := range history {
		if (t.Role == ai.RoleUser || t.Role == ai.RoleAssistant) && strings.TrimSpace(t.Text) != "" {
			out = append(out, t)
		}
	}
	if len(out) > maxHistoryTurns {
		out = out[len(out)-maxHistoryTurns:]
	}
	return out
}

// normalize lowercases, collapses whitespace and strips edge punctuation.
func normalize(s string) string {
	s = strings.Join(strings.Fields(strings.ToLower(s)), " ")
	return strings.Trim(s, " .,!?;:'\"")
}
