package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/service"
	"github.com/damoang/angple-messenger/pkg/logger"
)

// JobRunner is the part of the broadcast engine the dispatcher drives
type JobRunner interface {
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]*domain.BroadcastJob, error)
	Execute(ctx context.Context, job *domain.BroadcastJob) (*service.BroadcastResult, error)
}

// Dispatcher 예약 발송 디스패처.
// cron 주기마다 due job을 claim 한 뒤 실행한다. 여러 인스턴스가 동시에 돌아도
// claim 이 조건부 UPDATE 이므로 job 은 한 번만 실행된다.
type Dispatcher struct {
	runner    JobRunner
	cron      string
	batchSize int
	now       func() time.Time

	mu      sync.Mutex
	running bool
	status  Status

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Status 디스패처 상태 (모니터링용)
type Status struct {
	Cron      string    `json:"cron"`
	LastRun   time.Time `json:"last_run"`
	NextRun   time.Time `json:"next_run"`
	RunCount  int64     `json:"run_count"`
	Executed  int64     `json:"executed"`
	LastError *string   `json:"last_error,omitempty"`
}

// NewDispatcher creates a dispatcher; cron must be a valid five-field expression
func NewDispatcher(runner JobRunner, cron string, batchSize int) (*Dispatcher, error) {
	if !gronx.New().IsValid(cron) {
		return nil, fmt.Errorf("invalid broadcast cron expression: %q", cron)
	}
	if batchSize < 1 {
		batchSize = 1
	}
	return &Dispatcher{
		runner:    runner,
		cron:      cron,
		batchSize: batchSize,
		now:       time.Now,
		status:    Status{Cron: cron},
	}, nil
}

// Start runs the schedule loop in the background until ctx is done or Stop is called
func (d *Dispatcher) Start(ctx context.Context) {
	ctx, d.cancel = context.WithCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.scheduleLoop(ctx)
	}()
	logger.GetLogger().Info().Str("cron", d.cron).Msg("broadcast dispatcher started")
}

// Stop cancels the loop and waits for an in-flight tick to finish
func (d *Dispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
	logger.GetLogger().Info().Msg("broadcast dispatcher stopped")
}

func (d *Dispatcher) scheduleLoop(ctx context.Context) {
	for {
		next, err := gronx.NextTickAfter(d.cron, d.now(), false)
		if err != nil {
			logger.GetLogger().Error().Err(err).Str("cron", d.cron).Msg("broadcast dispatcher next tick failed")
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		d.mu.Lock()
		d.status.NextRun = next
		d.mu.Unlock()

		select {
		case <-time.After(time.Until(next)):
			if _, err := d.Tick(ctx); err != nil {
				logger.GetLogger().Error().Err(err).Msg("broadcast dispatcher tick failed")
			}
		case <-ctx.Done():
			return
		}
	}
}

// Tick claims the due jobs and executes them one by one. Returns how many jobs ran.
// A tick that overlaps a running one is skipped.
func (d *Dispatcher) Tick(ctx context.Context) (int, error) {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return 0, nil
	}
	d.running = true
	d.mu.Unlock()

	now := d.now()
	executed, err := d.runDue(ctx, now)

	d.mu.Lock()
	d.running = false
	d.status.LastRun = now
	d.status.RunCount++
	d.status.Executed += int64(executed)
	if err != nil {
		msg := err.Error()
		d.status.LastError = &msg
	} else {
		d.status.LastError = nil
	}
	d.mu.Unlock()
	return executed, err
}

func (d *Dispatcher) runDue(ctx context.Context, now time.Time) (int, error) {
	jobs, err := d.runner.ClaimDue(ctx, now, d.batchSize)
	executed := 0
	for _, job := range jobs {
		// claim 된 job 은 ctx 가 취소되어도 끝까지 보낸다
		result, execErr := d.runner.Execute(context.WithoutCancel(ctx), job)
		executed++
		log := logger.GetLogger().Info()
		if execErr != nil {
			log = logger.GetLogger().Warn().Err(execErr)
		}
		delivered := 0
		if result != nil {
			delivered = result.Delivered
		}
		log.Uint64("job_id", job.ID).
			Str("status", string(job.Status)).
			Int("delivered", delivered).
			Int("targets", job.TargetCount).
			Msg("scheduled broadcast executed")
	}
	return executed, err
}

// Status returns a snapshot of the dispatcher state
func (d *Dispatcher) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.status
	return s
}
