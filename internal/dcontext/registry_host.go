package dcontext

import (
	"context"
	"os/user"
)

// repositoryRootKey carries the root directory of the Repository an
// operation is being performed against, so log lines emitted deep inside
// the storage/solve packages can be attributed without threading an extra
// parameter through every call.
type repositoryRootKey struct{}

func (repositoryRootKey) String() string { return "repositoryRoot" }

// RepositoryRootKey is the context key WithRepositoryRoot stores under. Pass
// it to GetLogger's variadic keys to include the repository root on a log
// line without importing this package's unexported key type directly.
var RepositoryRootKey any = repositoryRootKey{}

// WithRepositoryRoot attaches a repository root path to ctx for logging.
func WithRepositoryRoot(ctx context.Context, root string) context.Context {
	return context.WithValue(ctx, repositoryRootKey{}, root)
}

// GetRepositoryRoot retrieves the repository root path previously attached
// with WithRepositoryRoot, or "" if none was set.
func GetRepositoryRoot(ctx context.Context) string {
	return GetStringValue(ctx, repositoryRootKey{})
}

type userKey struct{}

func (userKey) String() string { return "user" }

// UserKey is the context key WithUser stores under; pass it to GetLogger's
// variadic keys to include the acting user on a log line.
var UserKey any = userKey{}

// WithUser attaches the identity of whoever is performing an operation, so
// it can be stamped onto tag records and included in log lines without
// threading an extra parameter through every call.
func WithUser(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, userKey{}, name)
}

// GetUser retrieves the identity attached with WithUser, falling back to
// the OS user running the process if none was set.
func GetUser(ctx context.Context) string {
	if name := GetStringValue(ctx, userKey{}); name != "" {
		return name
	}
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "unknown"
}
