package bills

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/zombor/auto-bills/internal/document"
	"github.com/zombor/auto-bills/internal/extract"
	"github.com/zombor/auto-bills/internal/mailbox"
)

// ErrCycleInProgress is returned when a poll cycle is requested while one is running
var ErrCycleInProgress = errors.New("poll cycle already in progress")

// Mailbox opens sessions against the inbox
type Mailbox interface {
	Open(ctx context.Context) (mailbox.Session, error)
}

// Extractor turns a message into bill data
type Extractor interface {
	Process(ctx context.Context, msg extract.Message) (*extract.Result, error)
}

// Notifier forwards extracted bill data to a recipient. It reports whether
// the summary was delivered, even when a later message failed.
type Notifier interface {
	Notify(ctx context.Context, recipient string, result *extract.Result) (bool, error)
}

// Discarder removes stored attachments of a message that stays unseen
type Discarder interface {
	Discard(paths []string)
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type defaultTimeSource struct{}

func (defaultTimeSource) Now() time.Time {
	return time.Now()
}

// MessageReport is the outcome of one message within a cycle
type MessageReport struct {
	UID     uint32          `json:"uid"`
	From    string          `json:"from"`
	Subject string          `json:"subject"`
	Outcome string          `json:"outcome"`
	Result  *extract.Result `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// CycleReport summarizes a poll cycle
type CycleReport struct {
	ID         string          `json:"id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Messages   []MessageReport `json:"messages"`
	Error      string          `json:"error,omitempty"`
}

// Service runs poll cycles: fetch unseen mail, extract, notify, mark seen
type Service struct {
	mailbox     Mailbox
	extractor   Extractor
	notifier    Notifier
	attachments Discarder
	recipient   string
	metrics     *Metrics
	idGenerator IDGenerator
	timeSource  TimeSource

	running sync.Mutex

	mu   sync.RWMutex
	last *CycleReport
}

// NewService creates a new Service with default ID generator and time source.
// attachments may be nil when nothing is materialized.
func NewService(mb Mailbox, extractor Extractor, notifier Notifier, attachments Discarder, recipient string, metrics *Metrics) *Service {
	return NewServiceWithDeps(mb, extractor, notifier, attachments, recipient, metrics, uuidGenerator{}, defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(mb Mailbox, extractor Extractor, notifier Notifier, attachments Discarder, recipient string, metrics *Metrics, idGen IDGenerator, timeSrc TimeSource) *Service {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Service{
		mailbox:     mb,
		extractor:   extractor,
		notifier:    notifier,
		attachments: attachments,
		recipient:   recipient,
		metrics:     metrics,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// RunCycle processes every unseen message once. A failing message is left
// unseen and does not stop the others.
func (s *Service) RunCycle(ctx context.Context) (*CycleReport, error) {
	if !s.running.TryLock() {
		return nil, ErrCycleInProgress
	}
	defer s.running.Unlock()

	report := &CycleReport{
		ID:        s.idGenerator.Generate(),
		StartedAt: s.timeSource.Now(),
		Messages:  []MessageReport{},
	}
	err := s.cycle(ctx, report)
	report.FinishedAt = s.timeSource.Now()
	if err != nil {
		report.Error = err.Error()
		slog.Error("Failed to run poll cycle", "cycle", report.ID, "error", err)
	} else {
		slog.Info("Poll cycle finished", "cycle", report.ID, "messages", len(report.Messages))
	}
	s.metrics.observeCycle(err, report.FinishedAt.Sub(report.StartedAt).Seconds())

	s.mu.Lock()
	s.last = report
	s.mu.Unlock()

	return report, err
}

func (s *Service) cycle(ctx context.Context, report *CycleReport) error {
	session, err := s.mailbox.Open(ctx)
	if err != nil {
		return fmt.Errorf("opening mailbox: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			slog.Warn("Failed to close mailbox session", "error", err)
		}
	}()

	envelopes, err := session.Unseen(ctx)
	if err != nil {
		return fmt.Errorf("fetching unseen messages: %w", err)
	}

	for _, env := range envelopes {
		if err := ctx.Err(); err != nil {
			return err
		}
		msgReport := s.handle(ctx, session, env)
		s.metrics.observeMessage(msgReport)
		report.Messages = append(report.Messages, msgReport)
	}
	return nil
}

func (s *Service) handle(ctx context.Context, session mailbox.Session, env *mailbox.Envelope) MessageReport {
	report := MessageReport{UID: env.UID, From: env.From, Subject: env.Subject}
	slog.Info("Processing message", "uid", env.UID, "from", env.From, "subject", env.Subject)

	result, err := s.Extract(ctx, extract.Message{
		Body:        messageBody(env),
		Attachments: env.Attachments,
	})
	if err != nil {
		slog.Error("Failed to extract bill data", "uid", env.UID, "error", err)
		report.Outcome = OutcomeFailed
		report.Error = err.Error()
		return report
	}
	report.Result = result

	notified, err := s.notifier.Notify(ctx, s.recipient, result)
	switch {
	case err != nil && !notified:
		slog.Error("Failed to send notification", "uid", env.UID, "error", err)
		report.Outcome = OutcomeFailed
		report.Error = err.Error()
		// the next cycle stores the attachments again
		if s.attachments != nil && len(result.Materialized) > 0 {
			s.attachments.Discard(result.Materialized)
		}
		return report
	case err != nil:
		// Retrying would repeat the summary the recipient already has.
		slog.Warn("Bill partially notified", "uid", env.UID, "error", err)
		report.Error = err.Error()
	}

	if notified {
		report.Outcome = OutcomeNotified
		slog.Info("Bill notified", "uid", env.UID, "category", result.Category, "has_code", result.HasCode(), "has_value", result.HasValue())
	} else {
		report.Outcome = OutcomeNoData
		slog.Info("No bill data detected", "uid", env.UID, "subject", env.Subject)
	}

	if err := session.MarkSeen(ctx, env.UID); err != nil {
		slog.Error("Failed to mark message seen", "uid", env.UID, "error", err)
		report.Error = err.Error()
	}
	return report
}

// Extract runs the extraction engine on a message without notifying
func (s *Service) Extract(ctx context.Context, msg extract.Message) (*extract.Result, error) {
	result, err := s.extractor.Process(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("extracting bill data: %w", err)
	}
	return result, nil
}

// LastCycle returns the report of the most recent cycle, or nil
func (s *Service) LastCycle() *CycleReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// messageBody prefers the plain text part and falls back to the visible
// text of the HTML part.
func messageBody(env *mailbox.Envelope) string {
	if strings.TrimSpace(env.Text) != "" {
		return env.Text
	}
	if env.HTML == "" {
		return ""
	}
	text, err := document.HTMLText([]byte(env.HTML))
	if err != nil {
		slog.Warn("Failed to read HTML body", "uid", env.UID, "error", err)
		return ""
	}
	return text
}
