// Package qarnot provides a minimal client for the Qarnot computing
// platform: the cluster REST API for tasks, and the S3-compatible
// storage endpoint for buckets. Only the operations needed by the MCP
// tools are implemented.
package qarnot

import (
	"context"
	"sync"
)

// Connection is the surface of the remote Qarnot service the tools
// depend on. Tools never construct HTTP or S3 requests directly.
type Connection interface {
	// Tasks returns all tasks of the account.
	Tasks(ctx context.Context) ([]TaskSummary, error)
	// Task returns the detailed state of one task.
	// Returns ErrNotFound if the uuid is unknown.
	Task(ctx context.Context, uuid string) (*TaskDetail, error)
	// TaskStdout returns the accumulated standard output of a task,
	// optionally scoped to a single instance.
	TaskStdout(ctx context.Context, uuid string, instanceID *int) (string, error)
	// TaskStderr returns the accumulated standard error of a task,
	// optionally scoped to a single instance.
	TaskStderr(ctx context.Context, uuid string, instanceID *int) (string, error)
	// AbortTask requests cancellation of a running task.
	AbortTask(ctx context.Context, uuid string) error

	// Buckets lists the storage buckets of the account.
	Buckets(ctx context.Context) ([]Bucket, error)
	// BucketFiles lists the objects in a bucket.
	// Returns ErrNotFound if the bucket does not exist.
	BucketFiles(ctx context.Context, bucket string) ([]BucketFile, error)
	// DownloadFile writes the content of a bucket object to localPath,
	// creating parent directories as needed.
	DownloadFile(ctx context.Context, bucket, remotePath, localPath string) error
}

// Provider supplies the process-wide Connection to the tools.
type Provider func(ctx context.Context) (Connection, error)

// Lazy returns a Provider that dials on first use and then hands out the
// same Connection for the lifetime of the process.
func Lazy(dial func() (Connection, error)) Provider {
	var (
		once sync.Once
		conn Connection
		err  error
	)
	return func(ctx context.Context) (Connection, error) {
		once.Do(func() {
			conn, err = dial()
		})
		return conn, err
	}
}

// Static returns a Provider that always hands out the given Connection.
func Static(conn Connection) Provider {
	return func(ctx context.Context) (Connection, error) {
		return conn, nil
	}
}

// TaskSummary is a read-only projection of a remote task.
type TaskSummary struct {
	UUID                 string
	Name                 string
	State                string
	Progress             float64
	InstanceCount        int
	RunningInstanceCount int
	CreationDate         string
	EndDate              string
}

// Forward describes an active port forward of a running task instance.
type Forward struct {
	InstanceID      int
	ApplicationPort int
	Host            string
	Port            int
}

// TaskDetail is a TaskSummary plus execution and remote-access info.
type TaskDetail struct {
	TaskSummary

	RunningCoreCount int
	ExecutionTime    string
	WallTime         string
	ActiveForwards   []Forward
}

// Bucket is a remote storage container.
type Bucket struct {
	Name string
}

// BucketFile is one object in a bucket.
type BucketFile struct {
	Key          string
	Size         int64
	LastModified string
}
