package mailbox

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
)

// Config holds IMAP connection settings
type Config struct {
	Addr     string // host:port
	Username string
	Password string
	TLS      bool
	Mailbox  string
	Timeout  time.Duration
}

// IMAP opens sessions against an IMAP server
type IMAP struct {
	cfg Config
}

// NewIMAP creates a new IMAP instance
func NewIMAP(cfg Config) (*IMAP, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("imap address is required")
	}
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &IMAP{cfg: cfg}, nil
}

// Open connects, logs in and selects the configured mailbox
func (m *IMAP) Open(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dialer := &net.Dialer{Timeout: m.cfg.Timeout}
	var (
		c   *client.Client
		err error
	)
	if m.cfg.TLS {
		host, _, splitErr := net.SplitHostPort(m.cfg.Addr)
		if splitErr != nil {
			return nil, fmt.Errorf("parsing imap address: %w", splitErr)
		}
		c, err = client.DialWithDialerTLS(dialer, m.cfg.Addr, &tls.Config{ServerName: host})
	} else {
		c, err = client.DialWithDialer(dialer, m.cfg.Addr)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", m.cfg.Addr, err)
	}
	c.Timeout = m.cfg.Timeout

	if err := c.Login(m.cfg.Username, m.cfg.Password); err != nil {
		c.Logout()
		return nil, fmt.Errorf("logging in: %w", err)
	}
	if _, err := c.Select(m.cfg.Mailbox, false); err != nil {
		c.Logout()
		return nil, fmt.Errorf("selecting mailbox %s: %w", m.cfg.Mailbox, err)
	}

	return &imapSession{client: c}, nil
}

type imapSession struct {
	client *client.Client
}

func (s *imapSession) Unseen(ctx context.Context) ([]*Envelope, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	uids, err := s.client.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("searching unseen messages: %w", err)
	}
	if len(uids) == 0 {
		return nil, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)
	// PEEK keeps the messages unseen until they are fully processed
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{section.FetchItem(), imap.FetchUid}

	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- s.client.UidFetch(seqset, items, messages)
	}()

	envelopes := make([]*Envelope, 0, len(uids))
	for msg := range messages {
		body := msg.GetBody(section)
		if body == nil {
			slog.Warn("Server returned no body", "uid", msg.Uid)
			continue
		}
		env, err := Parse(body)
		if err != nil {
			slog.Warn("Failed to parse message", "uid", msg.Uid, "error", err)
			continue
		}
		env.UID = msg.Uid
		envelopes = append(envelopes, env)
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("fetching messages: %w", err)
	}

	return envelopes, nil
}

func (s *imapSession) MarkSeen(ctx context.Context, uid uint32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)
	item := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := s.client.UidStore(seqset, item, []interface{}{imap.SeenFlag}, nil); err != nil {
		return fmt.Errorf("marking message %d seen: %w", uid, err)
	}
	return nil
}

func (s *imapSession) Close() error {
	if err := s.client.Logout(); err != nil {
		return fmt.Errorf("logging out: %w", err)
	}
	return nil
}
