package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	retryablehttp "github.com/hashicorp/go-retryablehttp"

	storagedriver "github.com/spkfs/spfs/pkg/storage/driver"
	"github.com/spkfs/spfs/pkg/storage/driver/factory"
)

const driverName = "remote"

func init() {
	factory.Register(driverName, remoteDriverFactory{})
}

type remoteDriverFactory struct{}

func (remoteDriverFactory) Create(parameters map[string]interface{}) (storagedriver.StorageDriver, error) {
	url, ok := parameters["url"].(string)
	if !ok || url == "" {
		return nil, fmt.Errorf("remote: missing required parameter %q", "url")
	}
	return New(url), nil
}

// Driver is a StorageDriver that forwards every operation to a Server
// over HTTP, using a retrying client so a single dropped connection
// doesn't fail a sync_ref or render against a flaky network.
type Driver struct {
	baseURL string
	client  *retryablehttp.Client
}

// New returns a Driver calling the Server at baseURL (e.g.
// "http://spfs-remote.internal:9000").
func New(baseURL string) *Driver {
	client := retryablehttp.NewClient()
	client.Logger = nil
	return &Driver{baseURL: baseURL, client: client}
}

func (d *Driver) Name() string { return driverName }

func (d *Driver) endpoint(route string, query url.Values) string {
	u := d.baseURL + route
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (d *Driver) do(ctx context.Context, method, route string, query url.Values, body io.Reader) (*http.Response, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, method, d.endpoint(route, query), body)
	if err != nil {
		return nil, err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, storagedriver.Error{DriverName: driverName, Detail: err}
	}
	return resp, nil
}

func (d *Driver) errFromResponse(path string, resp *http.Response) error {
	var wire errorResponse
	json.NewDecoder(resp.Body).Decode(&wire)
	resp.Body.Close()

	switch wire.Code {
	case errCodeNotFound:
		return storagedriver.PathNotFoundError{Path: path, DriverName: driverName}
	case errCodeInvalidOffset:
		return storagedriver.InvalidOffsetError{Path: path, Offset: wire.Offset, DriverName: driverName}
	default:
		return storagedriver.Error{DriverName: driverName, Detail: fmt.Errorf("remote: status %d for %s", resp.StatusCode, path)}
	}
}

func (d *Driver) GetContent(ctx context.Context, path string) ([]byte, error) {
	resp, err := d.do(ctx, http.MethodGet, "/content", url.Values{"path": {path}}, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, d.errFromResponse(path, resp)
	}
	return io.ReadAll(resp.Body)
}

func (d *Driver) PutContent(ctx context.Context, path string, content []byte) error {
	resp, err := d.do(ctx, http.MethodPut, "/content", url.Values{"path": {path}}, bytes.NewReader(content))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return d.errFromResponse(path, resp)
	}
	return nil
}

func (d *Driver) Reader(ctx context.Context, path string, offset int64) (io.ReadCloser, error) {
	resp, err := d.do(ctx, http.MethodGet, "/reader", url.Values{"path": {path}, "offset": {fmt.Sprint(offset)}}, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, d.errFromResponse(path, resp)
	}
	return resp.Body, nil
}

func (d *Driver) Writer(ctx context.Context, path string, append bool) (storagedriver.FileWriter, error) {
	return &remoteWriter{ctx: ctx, driver: d, path: path, append: append}, nil
}

func (d *Driver) Stat(ctx context.Context, path string) (storagedriver.FileInfo, error) {
	resp, err := d.do(ctx, http.MethodGet, "/stat", url.Values{"path": {path}}, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, d.errFromResponse(path, resp)
	}
	var info statInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, err
	}
	return info, nil
}

func (d *Driver) List(ctx context.Context, path string) ([]string, error) {
	resp, err := d.do(ctx, http.MethodGet, "/list", url.Values{"path": {path}}, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, d.errFromResponse(path, resp)
	}
	var entries []string
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (d *Driver) Move(ctx context.Context, src, dst string) error {
	resp, err := d.do(ctx, http.MethodPost, "/move", url.Values{"src": {src}, "dst": {dst}}, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return d.errFromResponse(src, resp)
	}
	return nil
}

func (d *Driver) Delete(ctx context.Context, path string) error {
	resp, err := d.do(ctx, http.MethodDelete, "/delete", url.Values{"path": {path}}, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return d.errFromResponse(path, resp)
	}
	return nil
}

// Walk fetches the whole descendant listing for path in one round trip
// (the Server's /walk route), then replays it through f locally. This
// trades a larger single response for avoiding one HTTP call per
// directory, which matters over a real network in a way it doesn't for
// filesystem/inmemory.
func (d *Driver) Walk(ctx context.Context, path string, f storagedriver.WalkFn) error {
	resp, err := d.do(ctx, http.MethodGet, "/walk", url.Values{"path": {path}}, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return d.errFromResponse(path, resp)
	}
	var entries []statInfo
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return err
	}
	skip := ""
	for _, e := range entries {
		if skip != "" && strings.HasPrefix(e.Path(), skip) {
			continue
		}
		if err := f(e); err != nil {
			if err == storagedriver.ErrSkipDir {
				if e.IsDir() {
					skip = strings.TrimSuffix(e.Path(), "/") + "/"
				}
				continue
			}
			return err
		}
	}
	return nil
}

// remoteWriter buffers writes locally and flushes them as a single PUT on
// Commit, since the wire protocol has no partial-write resumption.
type remoteWriter struct {
	ctx        context.Context
	driver     *Driver
	path       string
	append     bool
	buf        bytes.Buffer
	size       int64
	committed  bool
	cancelled  bool
}

func (w *remoteWriter) Write(p []byte) (int, error) {
	n, err := w.buf.Write(p)
	w.size += int64(n)
	return n, err
}

func (w *remoteWriter) Size() int64 { return w.size }

func (w *remoteWriter) Commit(ctx context.Context) error {
	if w.committed || w.cancelled {
		return fmt.Errorf("remote: writer for %s already closed", w.path)
	}
	w.committed = true
	resp, err := w.driver.do(ctx, http.MethodPut, "/writer", url.Values{
		"path":   {w.path},
		"append": {fmt.Sprint(w.append)},
	}, bytes.NewReader(w.buf.Bytes()))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return w.driver.errFromResponse(w.path, resp)
	}
	return nil
}

func (w *remoteWriter) Cancel(ctx context.Context) error {
	w.cancelled = true
	w.buf.Reset()
	return nil
}

func (w *remoteWriter) Close() error {
	if !w.committed && !w.cancelled {
		return w.Commit(w.ctx)
	}
	return nil
}

var _ storagedriver.StorageDriver = (*Driver)(nil)
var _ storagedriver.FileWriter = (*remoteWriter)(nil)
