package notification

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"questline/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type enqueueRecorder struct {
	mu    sync.Mutex
	tasks []*asynq.Task
	err   error
}

func (e *enqueueRecorder) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	e.tasks = append(e.tasks, task)
	return &asynq.TaskInfo{ID: task.Type(), Type: task.Type()}, nil
}

func TestQueueDispatcherEnqueuesDeliverTask(t *testing.T) {
	enq := &enqueueRecorder{}
	dispatcher := &QueueDispatcher{asynq: enq}

	require.NoError(t, dispatcher.Dispatch(context.Background(), "user-1", Payload{
		Icon:      "coin",
		Title:     "You received 10 coins!",
		ActionURL: "/wallet",
	}))

	require.Len(t, enq.tasks, 1)
	require.Equal(t, TaskDeliver, enq.tasks[0].Type())

	var payload DeliverPayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &payload))
	require.Equal(t, "user-1", payload.UserID)
	require.Equal(t, "You received 10 coins!", payload.Title)
	require.Equal(t, "/wallet", payload.ActionURL)
}

func TestQueueDispatcherReturnsEnqueueError(t *testing.T) {
	enq := &enqueueRecorder{err: errors.New("redis down")}
	dispatcher := &QueueDispatcher{asynq: enq}

	err := dispatcher.Dispatch(context.Background(), "user-1", Payload{Title: "hello"})
	require.Error(t, err)
}

func TestHandleDeliverTaskPersistsNotification(t *testing.T) {
	db := testutil.NewTestDB(t, &Notification{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	task := NewTask(TaskParams{DB: db, Node: node})

	payload, err := json.Marshal(DeliverPayload{
		UserID:    "user-1",
		Icon:      "title",
		Title:     "You earned a new title: Collector!",
		ActionURL: "/profile/titles",
	})
	require.NoError(t, err)

	require.NoError(t, task.HandleDeliverTask(context.Background(),
		asynq.NewTask(TaskDeliver, payload)))

	var rows []Notification
	require.NoError(t, db.Find(&rows, "user_id = ?", "user-1").Error)
	require.Len(t, rows, 1)
	require.Equal(t, "You earned a new title: Collector!", rows[0].Title)
	require.Equal(t, "title", rows[0].Icon)
	require.Nil(t, rows[0].ReadAt)
}

func TestHandleDeliverTaskInvalidPayload(t *testing.T) {
	db := testutil.NewTestDB(t, &Notification{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	task := NewTask(TaskParams{DB: db, Node: node})

	err = task.HandleDeliverTask(context.Background(),
		asynq.NewTask(TaskDeliver, []byte("not json")))
	require.Error(t, err)
}
