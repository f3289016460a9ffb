package service

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"docuquery/internal/util"
	"docuquery/pkg/domain"
	"docuquery/pkg/store"
)

type cannedAnswer struct {
	keywords []string
	text     string
}

var cannedAnswers = []cannedAnswer{
	{
		keywords: []string{"revenue", "financial", "q2", "profit"},
		text:     "Revenue for Q2 2023 reached $4.2M, up 18% year over year. Growth came mainly from enterprise subscriptions, while operating costs stayed flat against Q1.",
	},
	{
		keywords: []string{"marketing", "campaign", "strategy"},
		text:     "The 2023 marketing strategy focuses on three channels: content marketing, partner co-selling and targeted events. Budget is weighted toward the second half of the year.",
	},
	{
		keywords: []string{"handbook", "employee", "policy", "vacation", "leave"},
		text:     "The employee handbook covers working hours, remote work eligibility, 25 days of paid leave, the code of conduct and the expense reimbursement process.",
	},
	{
		keywords: []string{"product", "specification", "spec", "feature"},
		text:     "The product specifications describe a multi-tenant platform with SSO, role-based access, a REST API and a 99.9% availability target.",
	},
	{
		keywords: []string{"contract", "client", "template", "clause"},
		text:     "The client contract template includes scope of work, payment terms (net 30), confidentiality, liability limits and a 30-day termination clause.",
	},
}

const fallbackAnswer = "Based on the documents available, I found related passages but not a direct answer. Try rephrasing the question or upload a document that covers this topic."

var fallbackSources = []domain.Source{
	{Title: "Company Overview", UploadDate: "2023-01-15", Excerpt: "This overview summarizes our mission, structure and core business lines."},
	{Title: "FAQ", UploadDate: "2023-03-02", Excerpt: "Answers to the questions we receive most often from customers and staff."},
}

// QAService returns canned answers with citations drawn from processed documents.
type QAService struct {
	docs     store.DocumentRepository
	messages store.MessageRepository
	latency  Latency
	now      func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

func NewQAService(docs store.DocumentRepository, messages store.MessageRepository, latency Latency) *QAService {
	return &QAService{
		docs:     docs,
		messages: messages,
		latency:  latency,
		now:      time.Now,
		rng:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// AskQuestion answers question for userID and appends both to the history.
// An empty userID skips the history.
func (s *QAService) AskQuestion(ctx context.Context, userID, question string) (domain.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return domain.Answer{}, fmt.Errorf("%w: question required", ErrInvalidInput)
	}
	if err := s.latency.Wait(ctx); err != nil {
		return domain.Answer{}, err
	}
	docs, err := s.docs.ListDocuments()
	if err != nil {
		return domain.Answer{}, fmt.Errorf("list documents: %w", err)
	}
	now := s.now().UTC()
	answer := domain.Answer{
		Question:  question,
		Answer:    pickAnswer(question),
		Sources:   s.pickSources(question, docs),
		CreatedAt: now,
	}
	if userID == "" || s.messages == nil {
		return answer, nil
	}
	if err := s.messages.AppendMessage(domain.Message{
		ID:        util.NewID(),
		UserID:    userID,
		Role:      "user",
		Content:   question,
		CreatedAt: now,
	}); err != nil {
		return domain.Answer{}, fmt.Errorf("save question: %w", err)
	}
	if err := s.messages.AppendMessage(domain.Message{
		ID:        util.NewID(),
		UserID:    userID,
		Role:      "assistant",
		Content:   answer.Answer,
		Sources:   answer.Sources,
		CreatedAt: now,
	}); err != nil {
		return domain.Answer{}, fmt.Errorf("save answer: %w", err)
	}
	return answer, nil
}

// History returns the newest limit messages of userID, oldest first.
func (s *QAService) History(ctx context.Context, userID string, limit int) ([]domain.Message, error) {
	if err := s.latency.Wait(ctx); err != nil {
		return nil, err
	}
	if s.messages == nil {
		return nil, nil
	}
	msgs, err := s.messages.ListMessages(userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

func pickAnswer(question string) string {
	q := strings.ToLower(question)
	for _, c := range cannedAnswers {
		for _, kw := range c.keywords {
			if strings.Contains(q, kw) {
				return c.text
			}
		}
	}
	return fallbackAnswer
}

// pickSources cites one to three processed documents. Documents whose title
// shares a word with the question come first.
func (s *QAService) pickSources(question string, docs []domain.Document) []domain.Source {
	words := strings.Fields(strings.ToLower(question))
	var matched, others []domain.Document
	for _, d := range docs {
		if d.Status != domain.DocumentProcessed {
			continue
		}
		if titleMatches(d.Title, words) {
			matched = append(matched, d)
		} else {
			others = append(others, d)
		}
	}
	if len(matched)+len(others) == 0 {
		return append([]domain.Source(nil), fallbackSources...)
	}

	s.mu.Lock()
	s.rng.Shuffle(len(others), func(i, j int) { others[i], others[j] = others[j], others[i] })
	n := 1 + s.rng.IntN(3)
	s.mu.Unlock()

	picked := append(matched, others...)
	if n > len(picked) {
		n = len(picked)
	}
	if len(matched) > n {
		n = min(len(matched), 3)
	}
	sources := make([]domain.Source, 0, n)
	for _, d := range picked[:n] {
		sources = append(sources, domain.Source{
			DocumentID: d.ID,
			Title:      d.Title,
			UploadDate: d.UploadDate,
			Excerpt:    excerptFor(d),
		})
	}
	return sources
}

func titleMatches(title string, words []string) bool {
	t := strings.ToLower(title)
	for _, w := range words {
		w = strings.Trim(w, "?!.,;:'\"")
		if len(w) >= 4 && strings.Contains(t, w) {
			return true
		}
	}
	return false
}

func excerptFor(d domain.Document) string {
	return fmt.Sprintf("...relevant passage from %q (%s, %s) supporting this answer...", d.Title, d.Type, d.Size)
}
