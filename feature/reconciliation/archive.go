package reconciliation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"payment-reconciler/core/reconcile"
	"payment-reconciler/core/storage"

	"github.com/minio/minio-go/v7"
)

// Snapshot is the archived form of a committed run.
type Snapshot struct {
	Run         reconcile.ReconciliationRun `json:"run"`
	Groups      []reconcile.MatchGroup      `json:"groups"`
	Divergences []reconcile.Divergence      `json:"divergences"`
}

// Archive stores run snapshots as JSON objects under
// <prefix>/<terminal>/<period>/<run>.json.
type Archive struct {
	client storage.Client
	bucket string
	prefix string
}

// NewArchive creates an archive writing to bucket.
func NewArchive(client storage.Client, bucket, prefix string) *Archive {
	return &Archive{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// Key returns the object key of a run snapshot.
func (a *Archive) Key(run reconcile.ReconciliationRun) string {
	return path.Join(a.scopePrefix(run.Scope()), run.ID+".json")
}

func (a *Archive) scopePrefix(scope reconcile.Scope) string {
	return path.Join(a.prefix, scope.TerminalID, scope.Period)
}

// Put uploads a snapshot.
func (a *Archive) Put(ctx context.Context, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	key := a.Key(snap.Run)
	_, err = a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

// Get downloads the snapshot of run.
func (a *Archive) Get(ctx context.Context, run reconcile.ReconciliationRun) (*Snapshot, error) {
	key := a.Key(run)
	obj, err := a.client.GetObject(ctx, a.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", key, err)
	}
	defer obj.Close()

	var snap Snapshot
	if err := json.NewDecoder(obj).Decode(&snap); err != nil {
		if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" {
			return nil, fmt.Errorf("archive %s: %w", key, reconcile.ErrNotFound)
		}
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return &snap, nil
}

// List returns the snapshot keys stored for a scope.
func (a *Archive) List(ctx context.Context, scope reconcile.Scope) ([]string, error) {
	var keys []string
	for obj := range a.client.ListObjects(ctx, a.bucket, minio.ListObjectsOptions{
		Prefix:    a.scopePrefix(scope) + "/",
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		if strings.HasSuffix(obj.Key, ".json") {
			keys = append(keys, obj.Key)
		}
	}
	return keys, nil
}
