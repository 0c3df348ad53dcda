package persistence

import (
	"context"

	"doccenter/internal/library"
)

// CommitPusher is the part of clients.RemoteClient the remote sink needs.
type CommitPusher interface {
	PushCommit(ctx context.Context, commit library.Commit) error
}

// RemoteSink forwards every commit to a remote library API.
type RemoteSink struct {
	client CommitPusher
}

func NewRemoteSink(client CommitPusher) *RemoteSink {
	return &RemoteSink{client: client}
}

func (r *RemoteSink) Name() string { return "remote" }

func (r *RemoteSink) Persist(ctx context.Context, commit library.Commit) error {
	return r.client.PushCommit(ctx, commit)
}
