// Package qstorage provides the storage tools: listing buckets and
// bucket files, and downloading result files.
package qstorage

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/chloepilonv/mcp-server-qarnot/internal/qarnot"
	"github.com/chloepilonv/mcp-server-qarnot/schema"
	"github.com/chloepilonv/mcp-server-qarnot/tools"
	"github.com/chloepilonv/mcp-server-qarnot/utils"
)

const (
	ListBucketsName     = "list_buckets"
	ListBucketFilesName = "list_bucket_files"
	DownloadResultName  = "download_result"
)

// New returns all storage tools backed by the given connection provider.
func New(conn qarnot.Provider) ([]tools.ITool, error) {
	buckets, err := NewListBuckets(conn)
	if err != nil {
		return nil, err
	}
	files, err := NewListBucketFiles(conn)
	if err != nil {
		return nil, err
	}
	download, err := NewDownloadResult(conn)
	if err != nil {
		return nil, err
	}
	return []tools.ITool{buckets, files, download}, nil
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

// ListBucketsRequest is the tool input; the tool takes no arguments.
type ListBucketsRequest struct{}

// BucketRow is the serialized projection of one bucket.
type BucketRow struct {
	Name string `json:"name"`
}

// BucketList is the tool output.
type BucketList struct {
	Buckets []BucketRow
}

func (r *BucketList) String() string {
	if len(r.Buckets) == 0 {
		return "No buckets found."
	}
	return utils.ToJSONIndent(r.Buckets)
}

// ListBuckets lists the storage buckets of the account.
type ListBuckets struct {
	name        string
	description string
	funcParams  any

	conn qarnot.Provider
}

var _ tools.Tool[ListBucketsRequest, BucketList] = (*ListBuckets)(nil)

func NewListBuckets(conn qarnot.Provider) (*ListBuckets, error) {
	sc, err := schema.New(reflect.TypeOf(ListBucketsRequest{}))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create schema")
	}
	return &ListBuckets{
		name:        ListBucketsName,
		description: "List all storage buckets in your Qarnot account.",
		funcParams:  sc.Parameters,
		conn:        conn,
	}, nil
}

func (t *ListBuckets) Name() string        { return t.name }
func (t *ListBuckets) Description() string { return t.description }
func (t *ListBuckets) Parameters() any     { return t.funcParams }

func (t *ListBuckets) Run(ctx context.Context, _ *ListBucketsRequest) (*BucketList, error) {
	conn, err := t.conn(ctx)
	if err != nil {
		return nil, err
	}
	buckets, err := conn.Buckets(ctx)
	if err != nil {
		return nil, err
	}
	res := &BucketList{}
	for _, b := range buckets {
		res.Buckets = append(res.Buckets, BucketRow{Name: b.Name})
	}
	return res, nil
}

func (t *ListBuckets) Call(ctx context.Context, input string) (string, error) {
	out, err := t.Run(ctx, &ListBucketsRequest{})
	if err != nil {
		return "", err
	}
	return out.String(), nil
}

// ListBucketFilesRequest is the input of the list_bucket_files tool.
type ListBucketFilesRequest struct {
	BucketName string `json:"bucket_name" jsonschema:"title=Bucket Name,description=The name of the bucket."`
}

// FileRow is the serialized projection of one bucket object.
type FileRow struct {
	Key          string `json:"key"`
	Size         int64  `json:"size"`
	LastModified string `json:"last_modified,omitempty"`
}

// FileList is the tool output.
type FileList struct {
	Files []FileRow
}

func (r *FileList) String() string {
	if len(r.Files) == 0 {
		return "No files in bucket."
	}
	return utils.ToJSONIndent(r.Files)
}

// ListBucketFiles lists the objects in one bucket.
type ListBucketFiles struct {
	name        string
	description string
	funcParams  any

	conn qarnot.Provider
}

var _ tools.Tool[ListBucketFilesRequest, FileList] = (*ListBucketFiles)(nil)

func NewListBucketFiles(conn qarnot.Provider) (*ListBucketFiles, error) {
	sc, err := schema.New(reflect.TypeOf(ListBucketFilesRequest{}))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create schema")
	}
	return &ListBucketFiles{
		name:        ListBucketFilesName,
		description: "List all files in a Qarnot storage bucket.",
		funcParams:  sc.Parameters,
		conn:        conn,
	}, nil
}

func (t *ListBucketFiles) Name() string        { return t.name }
func (t *ListBucketFiles) Description() string { return t.description }
func (t *ListBucketFiles) Parameters() any     { return t.funcParams }

func (t *ListBucketFiles) Run(ctx context.Context, req *ListBucketFilesRequest) (*FileList, error) {
	if req.BucketName == "" {
		return nil, errors.New("invalid request: empty bucket name")
	}
	conn, err := t.conn(ctx)
	if err != nil {
		return nil, err
	}
	files, err := conn.BucketFiles(ctx, req.BucketName)
	if err != nil {
		return nil, err
	}
	res := &FileList{}
	for _, f := range files {
		res.Files = append(res.Files, FileRow{
			Key:          f.Key,
			Size:         f.Size,
			LastModified: f.LastModified,
		})
	}
	return res, nil
}

func (t *ListBucketFiles) Call(ctx context.Context, input string) (string, error) {
	var req ListBucketFilesRequest
	if err := unmarshalInput(input, &req); err != nil {
		return "", err
	}
	out, err := t.Run(ctx, &req)
	if err != nil {
		return "", err
	}
	return out.String(), nil
}

// DownloadResultRequest is the input of the download_result tool.
type DownloadResultRequest struct {
	BucketName string `json:"bucket_name" jsonschema:"title=Bucket Name,description=The name of the bucket."`
	RemotePath string `json:"remote_path" jsonschema:"title=Remote Path,description=The path of the file in the bucket."`
	LocalPath  string `json:"local_path" jsonschema:"title=Local Path,description=Where to save the file locally."`
}

// DownloadResultResult is the confirmation message.
type DownloadResultResult struct {
	Message string
}

func (r *DownloadResultResult) String() string { return r.Message }

// DownloadResult downloads one object from a bucket to a local path.
type DownloadResult struct {
	name        string
	description string
	funcParams  any

	conn qarnot.Provider
}

var _ tools.Tool[DownloadResultRequest, DownloadResultResult] = (*DownloadResult)(nil)

func NewDownloadResult(conn qarnot.Provider) (*DownloadResult, error) {
	sc, err := schema.New(reflect.TypeOf(DownloadResultRequest{}))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create schema")
	}
	return &DownloadResult{
		name:        DownloadResultName,
		description: "Download a file from a Qarnot bucket to a local path.",
		funcParams:  sc.Parameters,
		conn:        conn,
	}, nil
}

func (t *DownloadResult) Name() string        { return t.name }
func (t *DownloadResult) Description() string { return t.description }
func (t *DownloadResult) Parameters() any     { return t.funcParams }

func (t *DownloadResult) Run(ctx context.Context, req *DownloadResultRequest) (*DownloadResultResult, error) {
	if req.BucketName == "" || req.RemotePath == "" || req.LocalPath == "" {
		return nil, errors.New("invalid request: bucket_name, remote_path and local_path are required")
	}
	conn, err := t.conn(ctx)
	if err != nil {
		return nil, err
	}
	if err := conn.DownloadFile(ctx, req.BucketName, req.RemotePath, req.LocalPath); err != nil {
		return nil, err
	}
	return &DownloadResultResult{
		Message: fmt.Sprintf("Downloaded '%s' from '%s' to '%s'", req.RemotePath, req.BucketName, req.LocalPath),
	}, nil
}

func (t *DownloadResult) Call(ctx context.Context, input string) (string, error) {
	var req DownloadResultRequest
	if err := unmarshalInput(input, &req); err != nil {
		return "", err
	}
	out, err := t.Run(ctx, &req)
	if err != nil {
		return "", err
	}
	return out.String(), nil
}
