package dcontext

import "context"

// Background returns a non-nil, empty root context, for use at the top of
// a call chain (repository construction, CLI adapter entry points).
func Background() context.Context {
	return context.Background()
}

// GetStringValue returns ctx.Value(key) as a string, or "" if absent or not
// a string. Used by the small Get*/With* context-key accessor pairs in this
// package (GetRepositoryRoot, GetUser).
func GetStringValue(ctx context.Context, key any) string {
	v := ctx.Value(key)
	if v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
