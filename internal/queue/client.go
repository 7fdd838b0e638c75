package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/brandaudit/internal/config"
)

// ErrDuplicate is returned when the same audit is already queued or running.
var ErrDuplicate = errors.New("task already enqueued")

// AuditQueue is the asynq queue audit runs are placed on.
const AuditQueue = "default"

type Client struct {
	client      *asynq.Client
	inspector   *asynq.Inspector
	taskTimeout time.Duration
}

func NewClient(cfg config.RedisConfig, taskTimeout time.Duration) *Client {
	if taskTimeout <= 0 {
		taskTimeout = 40 * time.Minute
	}
	return &Client{
		client:      asynq.NewClient(RedisOpt(cfg)),
		inspector:   asynq.NewInspector(RedisOpt(cfg)),
		taskTimeout: taskTimeout,
	}
}

// RedisOpt maps the Redis config onto asynq's connection options.
func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

func (c *Client) Close() error {
	return errors.Join(c.client.Close(), c.inspector.Close())
}

// EnqueueAuditRun queues an audit. The task id is derived from the audit so
// the same audit cannot be queued twice while a task for it is pending or
// running. A finished task still holding the id (archived after its last
// failure, or retained as completed) is removed and the audit queued again.
func (c *Client) EnqueueAuditRun(payload AuditRunPayload) error {
	taskID := AuditTaskID(payload.AuditID)
	opts := []asynq.Option{
		asynq.Queue(AuditQueue),
		asynq.TaskID(taskID),
		asynq.MaxRetry(2),
		asynq.Timeout(c.taskTimeout),
	}

	err := c.enqueue(TypeAuditRun, payload, opts...)
	if !errors.Is(err, ErrDuplicate) {
		return err
	}

	released, err := c.releaseFinished(taskID)
	if err != nil {
		return err
	}
	if !released {
		return ErrDuplicate
	}
	slog.Info("replaced finished audit task", "task_id", taskID)
	return c.enqueue(TypeAuditRun, payload, opts...)
}

// releaseFinished deletes the task holding taskID when it can no longer run.
func (c *Client) releaseFinished(taskID string) (bool, error) {
	info, err := c.inspector.GetTaskInfo(AuditQueue, taskID)
	if errors.Is(err, asynq.ErrTaskNotFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("inspect task %s: %w", taskID, err)
	}
	switch info.State {
	case asynq.TaskStateArchived, asynq.TaskStateCompleted:
	default:
		return false, nil
	}
	if err := c.inspector.DeleteTask(AuditQueue, taskID); err != nil && !errors.Is(err, asynq.ErrTaskNotFound) {
		return false, fmt.Errorf("delete task %s: %w", taskID, err)
	}
	return true, nil
}

// AuditTaskID is the asynq task id of an audit run.
func AuditTaskID(auditID string) string {
	return TypeAuditRun + ":" + auditID
}

func (c *Client) enqueue(taskType string, payload any, opts ...asynq.Option) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(taskType, data)
	_, err = c.client.Enqueue(task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	return nil
}
