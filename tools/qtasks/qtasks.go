// Package qtasks provides the task-management tools: listing tasks,
// fetching task status and output streams, and cancelling tasks.
package qtasks

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/cockroachdb/errors"
	guuid "github.com/google/uuid"

	"github.com/chloepilonv/mcp-server-qarnot/internal/qarnot"
	"github.com/chloepilonv/mcp-server-qarnot/schema"
	"github.com/chloepilonv/mcp-server-qarnot/tools"
	"github.com/chloepilonv/mcp-server-qarnot/utils"
)

const (
	ListTasksName  = "list_tasks"
	TaskStatusName = "get_task_status"
	TaskStdoutName = "get_task_stdout"
	TaskStderrName = "get_task_stderr"
	CancelTaskName = "cancel_task"
)

// terminalStates are the task states in which cancellation is a no-op.
var terminalStates = map[string]bool{
	"Cancelled": true,
	"Success":   true,
	"Failure":   true,
}

// New returns all task tools backed by the given connection provider.
func New(conn qarnot.Provider) ([]tools.ITool, error) {
	listTasks, err := NewListTasks(conn)
	if err != nil {
		return nil, err
	}
	status, err := NewTaskStatus(conn)
	if err != nil {
		return nil, err
	}
	stdout, err := NewTaskOutput(conn, TaskStdoutName)
	if err != nil {
		return nil, err
	}
	stderr, err := NewTaskOutput(conn, TaskStderrName)
	if err != nil {
		return nil, err
	}
	cancel, err := NewCancelTask(conn)
	if err != nil {
		return nil, err
	}
	return []tools.ITool{listTasks, status, stdout, stderr, cancel}, nil
}

func unmarshalInput(input string, req any) error {
	if strings.TrimSpace(input) == "" {
		return nil
	}
	if err := json.Unmarshal(utils.CleanJSON([]byte(input)), req); err != nil {
		return errors.WithStack(tools.ErrFailedUnmarshalInput)
	}
	return nil
}

// validUUID rejects malformed task identifiers before the remote call.
func validUUID(uuid string) error {
	if _, err := guuid.Parse(uuid); err != nil {
		return errors.Wrapf(qarnot.ErrNotFound, "invalid task uuid %q", uuid)
	}
	return nil
}

// TaskRow is the serialized projection of one task in a list.
type TaskRow struct {
	UUID             string `json:"uuid"`
	Name             string `json:"name"`
	State            string `json:"state"`
	Progress         string `json:"progress"`
	InstanceCount    int    `json:"instance_count"`
	RunningInstances int    `json:"running_instances"`
	CreationDate     string `json:"creation_date"`
	EndDate          string `json:"end_date"`
}

func taskRow(s qarnot.TaskSummary) TaskRow {
	endDate := s.EndDate
	if endDate == "" {
		endDate = "N/A"
	}
	return TaskRow{
		UUID:             s.UUID,
		Name:             s.Name,
		State:            s.State,
		Progress:         fmt.Sprintf("%g%%", s.Progress),
		InstanceCount:    s.InstanceCount,
		RunningInstances: s.RunningInstanceCount,
		CreationDate:     s.CreationDate,
		EndDate:          endDate,
	}
}

// ListTasksRequest is the tool input; the tool takes no arguments.
type ListTasksRequest struct{}

// TaskList is the tool output.
type TaskList struct {
	Tasks []TaskRow
}

func (r *TaskList) String() string {
	rows := r.Tasks
	if rows == nil {
		rows = []TaskRow{}
	}
	return utils.ToJSONIndent(rows)
}

// ListTasks lists all tasks of the account.
type ListTasks struct {
	name        string
	description string
	funcParams  any

	conn qarnot.Provider
}

var _ tools.Tool[ListTasksRequest, TaskList] = (*ListTasks)(nil)

func NewListTasks(conn qarnot.Provider) (*ListTasks, error) {
	sc, err := schema.New(reflect.TypeOf(ListTasksRequest{}))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create schema")
	}
	return &ListTasks{
		name:        ListTasksName,
		description: "List all Qarnot tasks for your account.",
		funcParams:  sc.Parameters,
		conn:        conn,
	}, nil
}

func (t *ListTasks) Name() string        { return t.name }
func (t *ListTasks) Description() string { return t.description }
func (t *ListTasks) Parameters() any     { return t.funcParams }

func (t *ListTasks) Run(ctx context.Context, _ *ListTasksRequest) (*TaskList, error) {
	conn, err := t.conn(ctx)
	if err != nil {
		return nil, err
	}
	list, err := conn.Tasks(ctx)
	if err != nil {
		return nil, err
	}
	res := &TaskList{Tasks: []TaskRow{}}
	for _, s := range list {
		res.Tasks = append(res.Tasks, taskRow(s))
	}
	return res, nil
}

func (t *ListTasks) Call(ctx context.Context, input string) (string, error) {
	out, err := t.Run(ctx, &ListTasksRequest{})
	if err != nil {
		return "", err
	}
	return out.String(), nil
}

// TaskStatusRequest is the input of the get_task_status tool.
type TaskStatusRequest struct {
	UUID string `json:"uuid" jsonschema:"title=UUID,description=The UUID of the task."`
}

// SSHForward is one active port forward of a running instance.
type SSHForward struct {
	InstanceID int    `json:"instance_id"`
	AppPort    int    `json:"app_port"`
	Host       string `json:"host"`
	Port       int    `json:"port"`
	SSHCommand string `json:"ssh_command,omitempty"`
}

// TaskStatusResult is the detailed task projection.
type TaskStatusResult struct {
	TaskRow

	RunningCores  int    `json:"running_cores"`
	ExecutionTime string `json:"execution_time"`
	WallTime      string `json:"wall_time"`
	// SSHConnections is either a list of SSHForward or the placeholder
	// string when the task has no active forwards.
	SSHConnections any `json:"ssh_connections"`
}

func (r *TaskStatusResult) String() string {
	return utils.ToJSONIndent(r)
}

// TaskStatus returns the detailed status of a task, including any
// active SSH forwards.
type TaskStatus struct {
	name        string
	description string
	funcParams  any

	conn qarnot.Provider
}

var _ tools.Tool[TaskStatusRequest, TaskStatusResult] = (*TaskStatus)(nil)

func NewTaskStatus(conn qarnot.Provider) (*TaskStatus, error) {
	sc, err := schema.New(reflect.TypeOf(TaskStatusRequest{}))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create schema")
	}
	return &TaskStatus{
		name:        TaskStatusName,
		description: "Get detailed status of a specific Qarnot task, including any active SSH forwards.",
		funcParams:  sc.Parameters,
		conn:        conn,
	}, nil
}

func (t *TaskStatus) Name() string        { return t.name }
func (t *TaskStatus) Description() string { return t.description }
func (t *TaskStatus) Parameters() any     { return t.funcParams }

func (t *TaskStatus) Run(ctx context.Context, req *TaskStatusRequest) (*TaskStatusResult, error) {
	if err := validUUID(req.UUID); err != nil {
		return nil, err
	}
	conn, err := t.conn(ctx)
	if err != nil {
		return nil, err
	}
	task, err := conn.Task(ctx, req.UUID)
	if err != nil {
		return nil, err
	}

	res := &TaskStatusResult{
		TaskRow:       taskRow(task.TaskSummary),
		RunningCores:  task.RunningCoreCount,
		ExecutionTime: task.ExecutionTime,
		WallTime:      task.WallTime,
	}
	if len(task.ActiveForwards) == 0 {
		res.SSHConnections = "No active SSH forwards"
		return res, nil
	}
	var forwards []SSHForward
	for _, fwd := range task.ActiveForwards {
		f := SSHForward{
			InstanceID: fwd.InstanceID,
			AppPort:    fwd.ApplicationPort,
			Host:       fwd.Host,
			Port:       fwd.Port,
		}
		if fwd.ApplicationPort == 22 {
			f.SSHCommand = fmt.Sprintf("ssh -p %d user@%s", fwd.Port, fwd.Host)
		}
		forwards = append(forwards, f)
	}
	res.SSHConnections = forwards
	return res, nil
}

func (t *TaskStatus) Call(ctx context.Context, input string) (string, error) {
	var req TaskStatusRequest
	if err := unmarshalInput(input, &req); err != nil {
		return "", err
	}
	out, err := t.Run(ctx, &req)
	if err != nil {
		return "", err
	}
	return out.String(), nil
}

// TaskOutputRequest is the input of the stdout/stderr tools.
type TaskOutputRequest struct {
	UUID       string `json:"uuid" jsonschema:"title=UUID,description=The UUID of the task."`
	InstanceID *int   `json:"instance_id,omitempty" jsonschema:"title=Instance ID,description=Optional instance ID for multi-instance tasks."`
}

// TaskOutputResult is the raw text of one output stream.
type TaskOutputResult struct {
	Text string
}

func (r *TaskOutputResult) String() string { return r.Text }

// TaskOutput fetches the stdout or stderr stream of a task.
type TaskOutput struct {
	name        string
	description string
	funcParams  any

	conn qarnot.Provider
}

var _ tools.Tool[TaskOutputRequest, TaskOutputResult] = (*TaskOutput)(nil)

// NewTaskOutput creates the stdout or stderr tool, selected by name.
func NewTaskOutput(conn qarnot.Provider, name string) (*TaskOutput, error) {
	description := "Get the standard output (stdout) of a Qarnot task."
	if name == TaskStderrName {
		description = "Get the standard error (stderr) of a Qarnot task."
	}
	sc, err := schema.New(reflect.TypeOf(TaskOutputRequest{}))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create schema")
	}
	return &TaskOutput{
		name:        name,
		description: description,
		funcParams:  sc.Parameters,
		conn:        conn,
	}, nil
}

func (t *TaskOutput) Name() string        { return t.name }
func (t *TaskOutput) Description() string { return t.description }
func (t *TaskOutput) Parameters() any     { return t.funcParams }

func (t *TaskOutput) Run(ctx context.Context, req *TaskOutputRequest) (*TaskOutputResult, error) {
	if err := validUUID(req.UUID); err != nil {
		return nil, err
	}
	conn, err := t.conn(ctx)
	if err != nil {
		return nil, err
	}
	var out string
	if t.name == TaskStderrName {
		out, err = conn.TaskStderr(ctx, req.UUID, req.InstanceID)
	} else {
		out, err = conn.TaskStdout(ctx, req.UUID, req.InstanceID)
	}
	if err != nil {
		return nil, err
	}
	if out == "" {
		if t.name == TaskStderrName {
			out = "(no error output)"
		} else {
			out = "(no output)"
		}
	}
	return &TaskOutputResult{Text: out}, nil
}

func (t *TaskOutput) Call(ctx context.Context, input string) (string, error) {
	var req TaskOutputRequest
	if err := unmarshalInput(input, &req); err != nil {
		return "", err
	}
	out, err := t.Run(ctx, &req)
	if err != nil {
		return "", err
	}
	return out.String(), nil
}

// CancelTaskRequest is the input of the cancel_task tool.
type CancelTaskRequest struct {
	UUID string `json:"uuid" jsonschema:"title=UUID,description=The UUID of the task to cancel."`
}

// CancelTaskResult is the acknowledgement message.
type CancelTaskResult struct {
	Message string
}

func (r *CancelTaskResult) String() string { return r.Message }

// CancelTask aborts a running task. Tasks already in a terminal state
// are reported as such without calling the service.
type CancelTask struct {
	name        string
	description string
	funcParams  any

	conn qarnot.Provider
}

var _ tools.Tool[CancelTaskRequest, CancelTaskResult] = (*CancelTask)(nil)

func NewCancelTask(conn qarnot.Provider) (*CancelTask, error) {
	sc, err := schema.New(reflect.TypeOf(CancelTaskRequest{}))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create schema")
	}
	return &CancelTask{
		name:        CancelTaskName,
		description: "Cancel a running Qarnot task.",
		funcParams:  sc.Parameters,
		conn:        conn,
	}, nil
}

func (t *CancelTask) Name() string        { return t.name }
func (t *CancelTask) Description() string { return t.description }
func (t *CancelTask) Parameters() any     { return t.funcParams }

func (t *CancelTask) Run(ctx context.Context, req *CancelTaskRequest) (*CancelTaskResult, error) {
	if err := validUUID(req.UUID); err != nil {
		return nil, err
	}
	conn, err := t.conn(ctx)
	if err != nil {
		return nil, err
	}
	task, err := conn.Task(ctx, req.UUID)
	if err != nil {
		return nil, err
	}
	if terminalStates[task.State] {
		return &CancelTaskResult{
			Message: fmt.Sprintf("Task %s is already in state '%s' and cannot be cancelled.", req.UUID, task.State),
		}, nil
	}
	if err := conn.AbortTask(ctx, req.UUID); err != nil {
		return nil, err
	}
	return &CancelTaskResult{
		Message: fmt.Sprintf("Task %s has been cancelled.", req.UUID),
	}, nil
}

func (t *CancelTask) Call(ctx context.Context, input string) (string, error) {
	var req CancelTaskRequest
	if err := unmarshalInput(input, &req); err != nil {
		return "", err
	}
	out, err := t.Run(ctx, &req)
	if err != nil {
		return "", err
	}
	return out.String(), nil
}
