package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rifadigital/raffle-gateway/internal/model"
	"github.com/rifadigital/raffle-gateway/internal/queue"
	"github.com/rifadigital/raffle-gateway/pkg/logger"
	"github.com/rifadigital/raffle-gateway/pkg/redis"
	"github.com/rifadigital/raffle-gateway/pkg/worker"
)

const DeliveryTimeout = 15 * time.Second
const HealthInterval = 30 * time.Second
const ShutdownTimeout = time.Minute

type ServiceConfig struct {
	RaffleName string
	Queue      queue.Config
	Consumers  int
	Workers    int
}

// Service drains purchase-confirmation jobs from the stream and delivers
// them by email through a bounded worker pool. A failed delivery is left
// unacked so the queue retries it; exhausted jobs land in the dead letter
// stream for operators.
type Service struct {
	adapter redis.RedisAdapter
	mailer  Mailer
	config  ServiceConfig
	queues  []*queue.Queue
	metrics *deliveryMetrics
	worker  *worker.WorkerManager
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewService(adapter redis.RedisAdapter, mailer Mailer, config ServiceConfig) *Service {
	if config.Consumers <= 0 {
		config.Consumers = 2
	}
	if config.Workers <= 0 {
		config.Workers = 10
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Service{
		adapter: adapter,
		mailer:  mailer,
		config:  config,
		queues:  make([]*queue.Queue, 0, config.Consumers),
		metrics: newDeliveryMetrics(),
		worker:  worker.NewWorkerManager(1000, config.Workers, nil),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (s *Service) Start() error {
	s.worker.SetWorker(s.workerHandler)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.worker.Start(); err != nil {
			logger.Error("worker manager stopped", "error", err)
		}
	}()

	for i := 0; i < s.config.Consumers; i++ {
		qc := s.config.Queue
		qc.ConsumerName = fmt.Sprintf("%s-instance-%d", qc.ConsumerName, i)

		q, err := queue.New(s.adapter, qc)
		if err != nil {
			return fmt.Errorf("create consumer %d: %w", i, err)
		}
		if err := q.Consume(s.jobHandler); err != nil {
			return fmt.Errorf("start consumer %d: %w", i, err)
		}

		s.queues = append(s.queues, q)
	}

	s.wg.Add(1)
	go s.healthChecker()

	logger.Info("notifier started",
		"consumers", len(s.queues),
		"workers", s.config.Workers)

	return nil
}

type delivery struct {
	job        *queue.Job
	resultChan chan error
	ctx        context.Context
}

// jobHandler bridges the queue consumer to the worker pool and blocks until
// the worker reports the outcome, so ack/nack reflects the actual send.
func (s *Service) jobHandler(ctx context.Context, job *queue.Job) error {
	resultChan := make(chan error, 1)

	jobCtx, cancel := context.WithTimeout(ctx, DeliveryTimeout+time.Second)
	defer cancel()

	s.worker.Enqueue(&delivery{
		job:        job,
		resultChan: resultChan,
		ctx:        jobCtx,
	})

	select {
	case err := <-resultChan:
		return err
	case <-jobCtx.Done():
		return fmt.Errorf("timeout waiting for delivery worker: %w", jobCtx.Err())
	}
}

func (s *Service) workerHandler(workerIndex int, job interface{}) {
	d, ok := job.(*delivery)
	if !ok {
		logger.Error("invalid job type in worker", "worker", workerIndex)
		return
	}

	select {
	case <-d.ctx.Done():
		return
	default:
	}

	start := time.Now()
	resultErr := s.deliver(d.job)
	if resultErr != nil {
		s.metrics.RecordFailure()
		logger.Error("confirmation delivery failed",
			"worker", workerIndex,
			"job_id", d.job.ID,
			"error", resultErr)
	} else {
		s.metrics.RecordSent(time.Since(start))
	}

	select {
	case d.resultChan <- resultErr:
	case <-d.ctx.Done():
	}
}

func (s *Service) deliver(job *queue.Job) error {
	var confirmation model.PurchaseConfirmation
	if err := json.Unmarshal(job.Data, &confirmation); err != nil {
		// undecodable payloads never succeed on retry, ack and move on
		logger.Warn("dropping undecodable confirmation job", "job_id", job.ID, "error", err)
		return nil
	}
	if confirmation.Email == "" {
		logger.Warn("dropping confirmation without recipient", "job_id", job.ID)
		return nil
	}

	subject, body := BuildConfirmationEmail(s.config.RaffleName, confirmation)
	if err := s.mailer.Send(confirmation.Email, subject, body); err != nil {
		return fmt.Errorf("send confirmation to %s: %w", confirmation.Email, err)
	}

	logger.Info("confirmation sent",
		"payment_id", confirmation.PaymentID,
		"numbers", len(confirmation.Numbers))

	return nil
}

func (s *Service) healthChecker() {
	defer s.wg.Done()

	ticker := time.NewTicker(HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.reportHealth()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Service) reportHealth() {
	if err := s.adapter.Client().Ping(context.Background()).Err(); err != nil {
		logger.Error("health check failed: redis unreachable", "error", err)
		return
	}

	stats := s.metrics.Stats()
	logger.Info("notifier health",
		"total_sent", stats["total_sent"],
		"total_failed", stats["total_failed"],
		"rate_per_second", stats["rate_per_second"])

	for i, q := range s.queues {
		if qStats, err := q.GetStats(); err == nil && qStats.PendingJobs > 1000 {
			logger.Warn("confirmation queue has high lag",
				"consumer", i,
				"pending_jobs", qStats.PendingJobs)
		}
	}
}

func (s *Service) Stop() {
	s.cancel()

	stopChan := make(chan bool, len(s.queues))
	for i, q := range s.queues {
		go func(index int, q *queue.Queue) {
			if err := q.Stop(ShutdownTimeout); err != nil {
				logger.Error("error stopping consumer", "consumer", index, "error", err)
			}
			stopChan <- true
		}(i, q)
	}
	for range s.queues {
		select {
		case <-stopChan:
		case <-time.After(ShutdownTimeout + 5*time.Second):
			logger.Warn("timeout waiting for consumers to stop")
		}
	}

	s.worker.Exit()
	s.wg.Wait()

	logger.Info("notifier stopped")
}
