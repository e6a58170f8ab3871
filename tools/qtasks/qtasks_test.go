package qtasks_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chloepilonv/mcp-server-qarnot/internal/qarnot"
	"github.com/chloepilonv/mcp-server-qarnot/internal/testutil"
	"github.com/chloepilonv/mcp-server-qarnot/tools"
	"github.com/chloepilonv/mcp-server-qarnot/tools/qtasks"
)

const (
	runningUUID  = "f78fdff8-7081-46e1-bb2f-d9cd4e185ece"
	finishedUUID = "7b9f43b4-2623-4b7f-b9c8-4f2f1b0a0001"
	unknownUUID  = "00000000-0000-0000-0000-000000000000"
)

func newFake() *testutil.FakeConnection {
	fake := testutil.NewFakeConnection()
	fake.AddTask(qarnot.TaskDetail{
		TaskSummary: qarnot.TaskSummary{
			UUID:                 runningUUID,
			Name:                 "simulation",
			State:                "FullyExecuting",
			Progress:             42.5,
			InstanceCount:        4,
			RunningInstanceCount: 3,
			CreationDate:         "2023-12-01T10:00:00Z",
		},
		RunningCoreCount: 16,
		ExecutionTime:    "01:30:00",
		WallTime:         "02:00:00",
		ActiveForwards: []qarnot.Forward{
			{InstanceID: 0, ApplicationPort: 22, Host: "fwd.qarnot.com", Port: 20622},
			{InstanceID: 1, ApplicationPort: 8888, Host: "fwd.qarnot.com", Port: 20888},
		},
	})
	fake.AddTask(qarnot.TaskDetail{
		TaskSummary: qarnot.TaskSummary{
			UUID:    finishedUUID,
			Name:    "render",
			State:   "Success",
			EndDate: "2023-12-02T08:00:00Z",
		},
	})
	fake.SetOutput(runningUUID, "step 1 done\n", "")
	return fake
}

func TestListTasks(t *testing.T) {
	tool, err := qtasks.NewListTasks(newFake().Provider())
	require.NoError(t, err)

	assert.Equal(t, qtasks.ListTasksName, tool.Name())
	assert.Contains(t, tool.Description(), "List all Qarnot tasks")

	out, err := tool.Call(context.Background(), "")
	require.NoError(t, err)

	var rows []qtasks.TaskRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "simulation", rows[0].Name)
	assert.Equal(t, "42.5%", rows[0].Progress)
	assert.Equal(t, "N/A", rows[0].EndDate)
	assert.Equal(t, "2023-12-02T08:00:00Z", rows[1].EndDate)
}

func TestListTasksEmpty(t *testing.T) {
	tool, err := qtasks.NewListTasks(testutil.NewFakeConnection().Provider())
	require.NoError(t, err)

	out, err := tool.Call(context.Background(), "{}")
	require.NoError(t, err)
	assert.Equal(t, "[]", out)
}

func TestTaskStatus(t *testing.T) {
	tool, err := qtasks.NewTaskStatus(newFake().Provider())
	require.NoError(t, err)

	resp, err := tool.Run(context.Background(), &qtasks.TaskStatusRequest{UUID: runningUUID})
	require.NoError(t, err)
	assert.Equal(t, 16, resp.RunningCores)
	assert.Equal(t, "01:30:00", resp.ExecutionTime)

	forwards, ok := resp.SSHConnections.([]qtasks.SSHForward)
	require.True(t, ok)
	require.Len(t, forwards, 2)
	assert.Equal(t, "ssh -p 20622 user@fwd.qarnot.com", forwards[0].SSHCommand)
	assert.Empty(t, forwards[1].SSHCommand)
}

func TestTaskStatusNoForwards(t *testing.T) {
	tool, err := qtasks.NewTaskStatus(newFake().Provider())
	require.NoError(t, err)

	resp, err := tool.Run(context.Background(), &qtasks.TaskStatusRequest{UUID: finishedUUID})
	require.NoError(t, err)
	assert.Equal(t, "No active SSH forwards", resp.SSHConnections)
}

func TestTaskStatusNotFound(t *testing.T) {
	tool, err := qtasks.NewTaskStatus(newFake().Provider())
	require.NoError(t, err)

	_, err = tool.Run(context.Background(), &qtasks.TaskStatusRequest{UUID: unknownUUID})
	require.Error(t, err)
	assert.True(t, errors.Is(err, qarnot.ErrNotFound))

	// malformed uuid is rejected before the remote call
	_, err = tool.Run(context.Background(), &qtasks.TaskStatusRequest{UUID: "not-a-uuid"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, qarnot.ErrNotFound))
}

func TestTaskStatusBadInput(t *testing.T) {
	tool, err := qtasks.NewTaskStatus(newFake().Provider())
	require.NoError(t, err)

	_, err = tool.Call(context.Background(), "{bad json")
	require.Error(t, err)
	assert.True(t, errors.Is(err, tools.ErrFailedUnmarshalInput))
}

func TestTaskStdout(t *testing.T) {
	tool, err := qtasks.NewTaskOutput(newFake().Provider(), qtasks.TaskStdoutName)
	require.NoError(t, err)

	assert.Contains(t, tool.Description(), "stdout")

	out, err := tool.Call(context.Background(), `{"uuid": "`+runningUUID+`"}`)
	require.NoError(t, err)
	assert.Equal(t, "step 1 done\n", out)
}

func TestTaskStderrEmpty(t *testing.T) {
	tool, err := qtasks.NewTaskOutput(newFake().Provider(), qtasks.TaskStderrName)
	require.NoError(t, err)

	assert.Contains(t, tool.Description(), "stderr")

	out, err := tool.Call(context.Background(), `{"uuid": "`+runningUUID+`"}`)
	require.NoError(t, err)
	assert.Equal(t, "(no error output)", out)
}

func TestCancelTask(t *testing.T) {
	fake := newFake()
	tool, err := qtasks.NewCancelTask(fake.Provider())
	require.NoError(t, err)

	out, err := tool.Call(context.Background(), `{"uuid": "`+runningUUID+`"}`)
	require.NoError(t, err)
	assert.Equal(t, "Task "+runningUUID+" has been cancelled.", out)
	assert.Equal(t, []string{runningUUID}, fake.Aborted)
}

func TestCancelTaskTerminal(t *testing.T) {
	fake := newFake()
	tool, err := qtasks.NewCancelTask(fake.Provider())
	require.NoError(t, err)

	out, err := tool.Call(context.Background(), `{"uuid": "`+finishedUUID+`"}`)
	require.NoError(t, err)
	assert.Equal(t, "Task "+finishedUUID+" is already in state 'Success' and cannot be cancelled.", out)
	// the abort endpoint is never hit
	assert.Empty(t, fake.Aborted)
}

func TestNewRegistersAllTools(t *testing.T) {
	list, err := qtasks.New(newFake().Provider())
	require.NoError(t, err)
	require.Len(t, list, 5)

	names := make([]string, 0, len(list))
	for _, tool := range list {
		names = append(names, tool.Name())
		assert.NotEmpty(t, tool.Description())
		assert.NotNil(t, tool.Parameters())
	}
	assert.Equal(t, []string{
		qtasks.ListTasksName,
		qtasks.TaskStatusName,
		qtasks.TaskStdoutName,
		qtasks.TaskStderrName,
		qtasks.CancelTaskName,
	}, names)
}
