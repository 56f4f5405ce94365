package bills

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// DefaultSchedule polls once a minute
const DefaultSchedule = "@every 1m"

// Cycler runs one poll cycle
type Cycler interface {
	RunCycle(ctx context.Context) (*CycleReport, error)
}

// Poller runs cycles on a cron schedule, never overlapping
type Poller struct {
	cron   *cron.Cron
	entry  cron.EntryID
	cycler Cycler

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPoller parses schedule (standard five-field cron or a descriptor such as "@every 30s")
func NewPoller(schedule string, cycler Cycler) (*Poller, error) {
	logger := cronLogger{}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	p := &Poller{
		cron:   c,
		cycler: cycler,
		ctx:    ctx,
		cancel: cancel,
	}

	entry, err := c.AddJob(schedule, cron.FuncJob(p.tick))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("parsing schedule %q: %w", schedule, err)
	}
	p.entry = entry
	return p, nil
}

// Start runs a cycle right away and then follows the schedule
func (p *Poller) Start() {
	slog.Info("Starting poller")
	job := p.cron.Entry(p.entry).WrappedJob
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		job.Run()
	}()
	p.cron.Start()
}

// Stop cancels the running cycle and waits for it to return
func (p *Poller) Stop() {
	p.cancel()
	<-p.cron.Stop().Done()
	p.wg.Wait()
	slog.Info("Poller stopped")
}

func (p *Poller) tick() {
	if p.ctx.Err() != nil {
		return
	}
	// errors are logged and reported by the cycler
	_, _ = p.cycler.RunCycle(p.ctx)
}

// cronLogger routes cron's logging through slog
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	slog.Debug(msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	slog.Error(msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
