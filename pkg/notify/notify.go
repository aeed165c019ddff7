// Package notify turns Repository operations into events.Event values
// written to a docker/go-events Sink, so operators can wire SPFS up to
// whatever event pipeline they already run (HTTP webhook queue, log
// fan-out, metrics counters). Adapted from the teacher's notifications
// package: same bridge-over-a-Sink shape, generalized from container
// registry events (manifest/blob push, pull, mount) to SPFS's own
// operations (object commit, tag push, clean sweep).
package notify

import (
	"time"

	events "github.com/docker/go-events"
	"github.com/spkfs/spfs/pkg/digest"
)

// Action names used in Event.Action.
const (
	ActionCommit   = "commit"
	ActionPushTag  = "push_tag"
	ActionRemoveTag = "remove_tag"
	ActionClean    = "clean"
	ActionSync     = "sync"
)

// Event describes one notable Repository operation.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Target    Target    `json:"target"`
}

// Target names the object the event is about.
type Target struct {
	Repository string        `json:"repository,omitempty"`
	Digest     digest.Digest `json:"digest,omitempty"`
	Tag        string        `json:"tag,omitempty"`
	Size       int64         `json:"size,omitempty"`
}

// Listener receives notifications of repository activity.
type Listener interface {
	Committed(repo string, d digest.Digest, size int64) error
	TagPushed(repo, tag string, d digest.Digest) error
	TagRemoved(repo, tag string) error
	Cleaned(repo string, removed int) error
}

// bridge adapts a Listener onto an events.Sink.
type bridge struct {
	repo string
	sink events.Sink
}

// NewBridge returns a Listener that writes every event as a notify.Event
// to sink, tagged with repo's name.
func NewBridge(repo string, sink events.Sink) Listener {
	return &bridge{repo: repo, sink: sink}
}

func (b *bridge) Committed(repo string, d digest.Digest, size int64) error {
	return b.write(ActionCommit, Target{Repository: repo, Digest: d, Size: size})
}

func (b *bridge) TagPushed(repo, tag string, d digest.Digest) error {
	return b.write(ActionPushTag, Target{Repository: repo, Tag: tag, Digest: d})
}

func (b *bridge) TagRemoved(repo, tag string) error {
	return b.write(ActionRemoveTag, Target{Repository: repo, Tag: tag})
}

func (b *bridge) Cleaned(repo string, removed int) error {
	return b.write(ActionClean, Target{Repository: repo, Size: int64(removed)})
}

func (b *bridge) write(action string, target Target) error {
	return b.sink.Write(Event{
		Timestamp: time.Now(),
		Action:    action,
		Target:    target,
	})
}

// NilListener is a Listener whose methods are no-ops, used when no sink is
// configured.
var NilListener Listener = nilListener{}

type nilListener struct{}

func (nilListener) Committed(string, digest.Digest, int64) error { return nil }
func (nilListener) TagPushed(string, string, digest.Digest) error { return nil }
func (nilListener) TagRemoved(string, string) error               { return nil }
func (nilListener) Cleaned(string, int) error                     { return nil }
