// Package deletion defers the destruction of GPU objects until the device can no longer be
// using them. Actions are executed in reverse order of registration.
package deletion

import (
	"sync"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"
)

// Executor carries out a single deletion action
type Executor interface {
	Execute(action Action) error
}

// Queue is a LIFO list of pending deletion actions
type Queue struct {
	name   string
	logger *slog.Logger

	mutex   sync.Mutex
	actions []Action
}

func NewQueue(name string, logger *slog.Logger) *Queue {
	return &Queue{
		name:   name,
		logger: logger,
	}
}

func (q *Queue) Name() string {
	return q.name
}

// Push registers an action to run at the next Drain
func (q *Queue) Push(action Action) {
	q.logger.Debug("DeletionQueue::Push", slog.String("queue", q.name), slog.String("action", action.String()))

	q.mutex.Lock()
	defer q.mutex.Unlock()

	q.actions = append(q.actions, action)
}

func (q *Queue) Len() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	return len(q.actions)
}

// Drain executes every pending action exactly once, most recently pushed first. A failing
// action does not stop the drain; every failure is returned combined. The queue is empty
// afterwards.
func (q *Queue) Drain(executor Executor) error {
	q.mutex.Lock()
	actions := q.actions
	q.actions = nil
	q.mutex.Unlock()

	q.logger.Debug("DeletionQueue::Drain", slog.String("queue", q.name), slog.Int("actions", len(actions)))

	var err error
	for i := len(actions) - 1; i >= 0; i-- {
		actionErr := executor.Execute(actions[i])
		if actionErr != nil {
			actionErr = errors.Wrapf(actionErr, "%s deletion queue: %s", q.name, actions[i])
			q.logger.Error("deletion action failed", slog.String("queue", q.name), slog.Any("error", actionErr))
			err = errors.CombineErrors(err, actionErr)
		}
	}

	return err
}
