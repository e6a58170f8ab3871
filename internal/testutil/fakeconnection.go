// Package testutil provides testing utilities.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/chloepilonv/mcp-server-qarnot/internal/qarnot"
)

// FakeConnection is an in-memory implementation of qarnot.Connection
// for testing tools without a remote service.
type FakeConnection struct {
	mu      sync.RWMutex
	tasks   []qarnot.TaskDetail
	stdout  map[string]string // uuid -> stdout
	stderr  map[string]string // uuid -> stderr
	buckets map[string]map[string][]byte

	// Aborted records the uuids passed to AbortTask.
	Aborted []string

	// Error injection for testing
	TasksErr        error
	TaskErr         error
	TaskStdoutErr   error
	TaskStderrErr   error
	AbortTaskErr    error
	BucketsErr      error
	BucketFilesErr  error
	DownloadFileErr error
}

var _ qarnot.Connection = (*FakeConnection)(nil)

// NewFakeConnection creates an empty FakeConnection.
func NewFakeConnection() *FakeConnection {
	return &FakeConnection{
		stdout:  make(map[string]string),
		stderr:  make(map[string]string),
		buckets: make(map[string]map[string][]byte),
	}
}

// Provider returns a qarnot.Provider handing out this fake.
func (f *FakeConnection) Provider() qarnot.Provider {
	return qarnot.Static(f)
}

// AddTask adds a task to the fake service.
func (f *FakeConnection) AddTask(task qarnot.TaskDetail) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, task)
}

// SetOutput sets the stdout and stderr of a task.
func (f *FakeConnection) SetOutput(uuid, stdout, stderr string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stdout[uuid] = stdout
	f.stderr[uuid] = stderr
}

// AddBucket adds a bucket with the given objects.
func (f *FakeConnection) AddBucket(name string, objects map[string][]byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if objects == nil {
		objects = map[string][]byte{}
	}
	f.buckets[name] = objects
}

// Tasks implements qarnot.Connection.
func (f *FakeConnection) Tasks(ctx context.Context) ([]qarnot.TaskSummary, error) {
	if f.TasksErr != nil {
		return nil, f.TasksErr
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	res := make([]qarnot.TaskSummary, 0, len(f.tasks))
	for _, t := range f.tasks {
		res = append(res, t.TaskSummary)
	}
	return res, nil
}

// Task implements qarnot.Connection.
func (f *FakeConnection) Task(ctx context.Context, uuid string) (*qarnot.TaskDetail, error) {
	if f.TaskErr != nil {
		return nil, f.TaskErr
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	for i := range f.tasks {
		if f.tasks[i].UUID == uuid {
			t := f.tasks[i]
			return &t, nil
		}
	}
	return nil, errors.WithStack(qarnot.ErrNotFound)
}

// TaskStdout implements qarnot.Connection.
func (f *FakeConnection) TaskStdout(ctx context.Context, uuid string, instanceID *int) (string, error) {
	if f.TaskStdoutErr != nil {
		return "", f.TaskStdoutErr
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	out, ok := f.stdout[uuid]
	if !ok {
		return "", errors.WithStack(qarnot.ErrNotFound)
	}
	return out, nil
}

// TaskStderr implements qarnot.Connection.
func (f *FakeConnection) TaskStderr(ctx context.Context, uuid string, instanceID *int) (string, error) {
	if f.TaskStderrErr != nil {
		return "", f.TaskStderrErr
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	out, ok := f.stderr[uuid]
	if !ok {
		return "", errors.WithStack(qarnot.ErrNotFound)
	}
	return out, nil
}

// AbortTask implements qarnot.Connection.
func (f *FakeConnection) AbortTask(ctx context.Context, uuid string) error {
	if f.AbortTaskErr != nil {
		return f.AbortTaskErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.tasks {
		if f.tasks[i].UUID == uuid {
			f.tasks[i].State = "Cancelled"
			f.Aborted = append(f.Aborted, uuid)
			return nil
		}
	}
	return errors.WithStack(qarnot.ErrNotFound)
}

// Buckets implements qarnot.Connection.
func (f *FakeConnection) Buckets(ctx context.Context) ([]qarnot.Bucket, error) {
	if f.BucketsErr != nil {
		return nil, f.BucketsErr
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	res := make([]qarnot.Bucket, 0, len(f.buckets))
	for name := range f.buckets {
		res = append(res, qarnot.Bucket{Name: name})
	}
	return res, nil
}

// BucketFiles implements qarnot.Connection.
func (f *FakeConnection) BucketFiles(ctx context.Context, bucket string) ([]qarnot.BucketFile, error) {
	if f.BucketFilesErr != nil {
		return nil, f.BucketFilesErr
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	objects, ok := f.buckets[bucket]
	if !ok {
		return nil, errors.WithStack(qarnot.ErrNotFound)
	}
	res := make([]qarnot.BucketFile, 0, len(objects))
	for key, content := range objects {
		res = append(res, qarnot.BucketFile{Key: key, Size: int64(len(content))})
	}
	return res, nil
}

// DownloadFile implements qarnot.Connection.
func (f *FakeConnection) DownloadFile(ctx context.Context, bucket, remotePath, localPath string) error {
	if f.DownloadFileErr != nil {
		return f.DownloadFileErr
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	objects, ok := f.buckets[bucket]
	if !ok {
		return errors.WithStack(qarnot.ErrNotFound)
	}
	content, ok := objects[remotePath]
	if !ok {
		return errors.WithStack(qarnot.ErrNotFound)
	}
	if dir := filepath.Dir(localPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(localPath, content, 0o644)
}
