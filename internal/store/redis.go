package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Tim-Alpha/video-description-api/internal/model"
)

// RedisStore persists task records as JSON blobs under task:{id} with a
// bounded retention TTL, so completed tasks eventually expire instead of
// growing without bound.
type RedisStore struct {
	client    *redis.Client
	retention time.Duration
}

func NewRedisStore(client *redis.Client, retention time.Duration) *RedisStore {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &RedisStore{client: client, retention: retention}
}

func taskKey(id string) string {
	return fmt.Sprintf("task:%s", id)
}

func (s *RedisStore) Create(ctx context.Context, source model.TaskSource, identifier string) (*model.Task, error) {
	task := &model.Task{
		ID:         uuid.New().String(),
		Status:     model.TaskStatusPending,
		Source:     source,
		Identifier: identifier,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.save(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to save task: %w", err)
	}
	return task, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*model.Task, error) {
	data, err := s.client.Get(ctx, taskKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}

	var task model.Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task: %w", err)
	}
	return &task, nil
}

// UpdateStatus runs under WATCH so two writers racing on the same ID
// serialize: the loser retries, re-checks the transition and is rejected
// once the task is terminal.
func (s *RedisStore) UpdateStatus(ctx context.Context, id string, status model.TaskStatus, result *model.AnalysisResult, errMsg string) error {
	return s.watchUpdate(ctx, id, func(task *model.Task) (bool, error) {
		if !validTransition(task.Status, status) {
			return false, ErrInvalidTransition
		}
		applyStatus(task, status, result, errMsg)
		return true, nil
	})
}

// UpdateProgress uses the same WATCH loop as UpdateStatus so a progress
// write racing a terminal write can never clobber the terminal record
// with stale processing-era state.
func (s *RedisStore) UpdateProgress(ctx context.Context, id string, progress int, step string) error {
	return s.watchUpdate(ctx, id, func(task *model.Task) (bool, error) {
		if task.Status.Terminal() {
			return false, nil
		}
		task.Progress = progress
		task.CurrentStep = step
		return true, nil
	})
}

// watchUpdate applies mutate to the record under WATCH and writes it back
// atomically. mutate returns false to skip the write; the loser of a
// concurrent write retries against the fresh record.
func (s *RedisStore) watchUpdate(ctx context.Context, id string, mutate func(*model.Task) (bool, error)) error {
	key := taskKey(id)

	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrTaskNotFound
			}
			return err
		}

		var task model.Task
		if err := json.Unmarshal(data, &task); err != nil {
			return fmt.Errorf("failed to unmarshal task: %w", err)
		}

		write, err := mutate(&task)
		if err != nil {
			return err
		}
		if !write {
			return nil
		}

		updated, err := json.Marshal(&task)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, s.retention)
			return nil
		})
		return err
	}

	for i := 0; i < 3; i++ {
		err := s.client.Watch(ctx, txn, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("failed to update task %s: too much contention", id)
}

func (s *RedisStore) save(ctx context.Context, task *model.Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, taskKey(task.ID), data, s.retention).Err()
}
