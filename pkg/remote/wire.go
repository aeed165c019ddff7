// Package remote implements a "remote over RPC" StorageDriver: a thin
// HTTP server exposing a local driver's operations, and an HTTP client
// implementing the same storagedriver.StorageDriver interface against it.
// Because Database/PayloadStore/TagStore/Repository are all built on top
// of the generic StorageDriver contract, the client half of this package
// drops straight in wherever pkg/storage/driver/filesystem or inmemory
// would go.
package remote

// statInfo is the wire form of storagedriver.FileInfo, and itself
// satisfies the FileInfo interface so the client can hand it back
// directly from Stat/List/Walk without a further wrapper type.
type statInfo struct {
	PathValue  string `json:"path"`
	SizeValue  int64  `json:"size"`
	IsDirValue bool   `json:"is_dir"`
}

func (s statInfo) Path() string { return s.PathValue }
func (s statInfo) Size() int64  { return s.SizeValue }
func (s statInfo) IsDir() bool  { return s.IsDirValue }

// errorResponse is the wire form of a failed request.
type errorResponse struct {
	Code   string `json:"code"`
	Path   string `json:"path,omitempty"`
	Offset int64  `json:"offset,omitempty"`
}

const (
	errCodeNotFound      = "not_found"
	errCodeInvalidOffset = "invalid_offset"
)
