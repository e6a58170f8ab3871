package qarnot_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chloepilonv/mcp-server-qarnot/internal/qarnot"
)

const testToken = "secret-token"

func newTestClient(t *testing.T, handler http.HandlerFunc) *qarnot.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := qarnot.New(testToken, qarnot.WithClusterURL(server.URL), qarnot.WithHTTPClient(server.Client()))
	require.NoError(t, err)
	return c
}

func TestNewRequiresToken(t *testing.T) {
	_, err := qarnot.New("")
	assert.EqualError(t, err, "api token is required")
}

func TestTasks(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/tasks", r.URL.Path)
		assert.Equal(t, testToken, r.Header.Get("Authorization"))

		_ = json.NewEncoder(w).Encode([]map[string]any{
			{
				"uuid":                 "f78fdff8-7081-46e1-bb2f-d9cd4e185ece",
				"name":                 "simulation",
				"state":                "FullyExecuting",
				"progress":             42.5,
				"instanceCount":        4,
				"runningInstanceCount": 3,
				"creationDate":         "2023-12-01T10:00:00Z",
			},
		})
	})

	tasks, err := c.Tasks(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "f78fdff8-7081-46e1-bb2f-d9cd4e185ece", tasks[0].UUID)
	assert.Equal(t, "simulation", tasks[0].Name)
	assert.Equal(t, "FullyExecuting", tasks[0].State)
	assert.Equal(t, 42.5, tasks[0].Progress)
	assert.Equal(t, 4, tasks[0].InstanceCount)
	assert.Equal(t, 3, tasks[0].RunningInstanceCount)
	assert.Empty(t, tasks[0].EndDate)
}

func TestTasksEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("[]"))
	})

	tasks, err := c.Tasks(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, tasks)
	assert.Empty(t, tasks)
}

func TestTaskNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "no such task"})
	})

	_, err := c.Task(context.Background(), "00000000-0000-0000-0000-000000000000")
	require.Error(t, err)
	assert.True(t, errors.Is(err, qarnot.ErrNotFound))
}

func TestTaskForwards(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tasks/abc", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"uuid":             "abc",
			"name":             "notebook",
			"state":            "FullyExecuting",
			"runningCoreCount": 8,
			"executionTime":    "00:10:00",
			"wallTime":         "00:12:00",
			"status": map[string]any{
				"runningInstancesInfo": map[string]any{
					"perRunningInstanceInfo": []map[string]any{
						{
							"instanceId": 0,
							"activeForwards": []map[string]any{
								{"applicationPort": 22, "forwarderHost": "fwd.qarnot.com", "forwarderPort": 20622},
							},
						},
					},
				},
			},
		})
	})

	task, err := c.Task(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, 8, task.RunningCoreCount)
	assert.Equal(t, "00:10:00", task.ExecutionTime)
	require.Len(t, task.ActiveForwards, 1)
	assert.Equal(t, 22, task.ActiveForwards[0].ApplicationPort)
	assert.Equal(t, "fwd.qarnot.com", task.ActiveForwards[0].Host)
	assert.Equal(t, 20622, task.ActiveForwards[0].Port)
}

func TestTaskStdout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tasks/abc/stdout", r.URL.Path)
		_, _ = w.Write([]byte("hello from the task\n"))
	})

	out, err := c.TaskStdout(context.Background(), "abc", nil)
	require.NoError(t, err)
	assert.Equal(t, "hello from the task\n", out)
}

func TestTaskStderrInstance(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tasks/abc/instances/2/stderr", r.URL.Path)
		_, _ = w.Write([]byte("oops"))
	})

	instance := 2
	out, err := c.TaskStderr(context.Background(), "abc", &instance)
	require.NoError(t, err)
	assert.Equal(t, "oops", out)
}

func TestAbortTask(t *testing.T) {
	var aborted bool
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/tasks/abc/abort", r.URL.Path)
		aborted = true
	})

	require.NoError(t, c.AbortTask(context.Background(), "abc"))
	assert.True(t, aborted)
}

func TestAbortTaskConflict(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "task is completed"})
	})

	err := c.AbortTask(context.Background(), "abc")
	require.Error(t, err)
	assert.True(t, errors.Is(err, qarnot.ErrInvalidState))
}

func TestAPIErrorMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "invalid token"})
	})

	_, err := c.Tasks(context.Background())
	require.Error(t, err)
	var apiErr *qarnot.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, "invalid token", apiErr.Message)
	assert.Contains(t, err.Error(), "status 403")
}

func TestLazyProvider(t *testing.T) {
	var dials int
	provider := qarnot.Lazy(func() (qarnot.Connection, error) {
		dials++
		return qarnot.New(testToken)
	})

	ctx := context.Background()
	first, err := provider(ctx)
	require.NoError(t, err)
	second, err := provider(ctx)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, dials)
}
