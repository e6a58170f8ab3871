package qarnot

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
)

// taskData is the wire representation of a task on the cluster API.
type taskData struct {
	UUID                 string      `json:"uuid"`
	Name                 string      `json:"name"`
	State                string      `json:"state"`
	Progress             float64     `json:"progress"`
	InstanceCount        int         `json:"instanceCount"`
	RunningInstanceCount int         `json:"runningInstanceCount"`
	RunningCoreCount     int         `json:"runningCoreCount"`
	ExecutionTime        string      `json:"executionTime"`
	WallTime             string      `json:"wallTime"`
	CreationDate         string      `json:"creationDate"`
	EndDate              string      `json:"endDate"`
	Status               *taskStatus `json:"status"`
}

type taskStatus struct {
	RunningInstancesInfo *runningInstancesInfo `json:"runningInstancesInfo"`
}

type runningInstancesInfo struct {
	PerRunningInstanceInfo []runningInstanceInfo `json:"perRunningInstanceInfo"`
}

type runningInstanceInfo struct {
	InstanceID     int             `json:"instanceId"`
	ActiveForwards []activeForward `json:"activeForwards"`
}

type activeForward struct {
	ApplicationPort int    `json:"applicationPort"`
	ForwarderHost   string `json:"forwarderHost"`
	ForwarderPort   int    `json:"forwarderPort"`
}

func (t *taskData) summary() TaskSummary {
	return TaskSummary{
		UUID:                 t.UUID,
		Name:                 t.Name,
		State:                t.State,
		Progress:             t.Progress,
		InstanceCount:        t.InstanceCount,
		RunningInstanceCount: t.RunningInstanceCount,
		CreationDate:         t.CreationDate,
		EndDate:              t.EndDate,
	}
}

func (t *taskData) detail() *TaskDetail {
	d := &TaskDetail{
		TaskSummary:      t.summary(),
		RunningCoreCount: t.RunningCoreCount,
		ExecutionTime:    t.ExecutionTime,
		WallTime:         t.WallTime,
	}
	if t.Status == nil || t.Status.RunningInstancesInfo == nil {
		return d
	}
	for _, inst := range t.Status.RunningInstancesInfo.PerRunningInstanceInfo {
		for _, fwd := range inst.ActiveForwards {
			d.ActiveForwards = append(d.ActiveForwards, Forward{
				InstanceID:      inst.InstanceID,
				ApplicationPort: fwd.ApplicationPort,
				Host:            fwd.ForwarderHost,
				Port:            fwd.ForwarderPort,
			})
		}
	}
	return d
}

// Tasks implements the Connection interface.
func (c *Client) Tasks(ctx context.Context) ([]TaskSummary, error) {
	var list []taskData
	if err := c.getJSON(ctx, "/tasks", &list); err != nil {
		return nil, errors.Wrap(err, "failed to list tasks")
	}
	res := make([]TaskSummary, 0, len(list))
	for i := range list {
		res = append(res, list[i].summary())
	}
	return res, nil
}

// Task implements the Connection interface.
func (c *Client) Task(ctx context.Context, uuid string) (*TaskDetail, error) {
	var t taskData
	if err := c.getJSON(ctx, "/tasks/"+uuid, &t); err != nil {
		return nil, errors.Wrapf(err, "failed to retrieve task %s", uuid)
	}
	return t.detail(), nil
}

// TaskStdout implements the Connection interface.
func (c *Client) TaskStdout(ctx context.Context, uuid string, instanceID *int) (string, error) {
	out, err := c.getText(ctx, taskOutputPath(uuid, "stdout", instanceID))
	if err != nil {
		return "", errors.Wrapf(err, "failed to fetch stdout of task %s", uuid)
	}
	return out, nil
}

// TaskStderr implements the Connection interface.
func (c *Client) TaskStderr(ctx context.Context, uuid string, instanceID *int) (string, error) {
	out, err := c.getText(ctx, taskOutputPath(uuid, "stderr", instanceID))
	if err != nil {
		return "", errors.Wrapf(err, "failed to fetch stderr of task %s", uuid)
	}
	return out, nil
}

func taskOutputPath(uuid, stream string, instanceID *int) string {
	if instanceID != nil {
		return fmt.Sprintf("/tasks/%s/instances/%d/%s", uuid, *instanceID, stream)
	}
	return fmt.Sprintf("/tasks/%s/%s", uuid, stream)
}

// AbortTask implements the Connection interface.
func (c *Client) AbortTask(ctx context.Context, uuid string) error {
	if err := c.post(ctx, "/tasks/"+uuid+"/abort"); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict {
			return errors.WithStack(ErrInvalidState)
		}
		return errors.Wrapf(err, "failed to abort task %s", uuid)
	}
	return nil
}
