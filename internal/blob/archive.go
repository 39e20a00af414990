package blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"schedboard/pkg/domain"
)

// DefaultPrefix is the key prefix used when callers pass an empty one.
const DefaultPrefix = "snapshots"

const (
	archiveTimeLayout = "20060102T150405.000000000Z"
	archiveExt        = ".json"
	contentTypeJSON   = "application/json"
)

// SnapshotKey returns the archive key for a snapshot taken at now. Keys sort
// chronologically.
func SnapshotKey(prefix string, now time.Time) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return path.Join(prefix, "board-"+now.UTC().Format(archiveTimeLayout)+archiveExt)
}

// ArchiveSnapshot writes p as indented JSON under SnapshotKey(prefix, now).
func ArchiveSnapshot(ctx context.Context, store Store, prefix string, p domain.Payload, now time.Time) (Info, error) {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return Info{}, fmt.Errorf("encode snapshot: %w", err)
	}
	key := SnapshotKey(prefix, now)
	info, err := store.Put(ctx, key, bytes.NewReader(data), PutOptions{
		ContentType: contentTypeJSON,
		Metadata: map[string]string{
			"orders":      strconv.Itoa(len(p.Orders)),
			"runs":        strconv.Itoa(len(p.Runs)),
			"archived-at": now.UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return Info{}, fmt.Errorf("archive snapshot %s: %w", key, err)
	}
	return info, nil
}

// ListSnapshots returns the archived snapshots under prefix, oldest first.
func ListSnapshots(ctx context.Context, store Store, prefix string) ([]Info, error) {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	all, err := store.List(ctx, strings.TrimSuffix(prefix, "/")+"/")
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	out := all[:0]
	for _, info := range all {
		if strings.HasPrefix(path.Base(info.Key), "board-") && strings.HasSuffix(info.Key, archiveExt) {
			out = append(out, info)
		}
	}
	return out, nil
}

// LatestSnapshot reads back the newest archive under prefix. It returns
// domain.ErrNoSnapshot when the prefix holds none.
func LatestSnapshot(ctx context.Context, store Store, prefix string) (domain.Payload, Info, error) {
	infos, err := ListSnapshots(ctx, store, prefix)
	if err != nil {
		return domain.Payload{}, Info{}, err
	}
	if len(infos) == 0 {
		return domain.Payload{}, Info{}, domain.ErrNoSnapshot
	}
	key := infos[len(infos)-1].Key
	info, rc, err := store.Get(ctx, key)
	if err != nil {
		return domain.Payload{}, Info{}, fmt.Errorf("read snapshot %s: %w", key, err)
	}
	defer func() { _ = rc.Close() }()
	var p domain.Payload
	if err := json.NewDecoder(rc).Decode(&p); err != nil {
		return domain.Payload{}, Info{}, fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	return p, info, nil
}

// PruneSnapshots deletes all but the newest keep archives under prefix and
// returns the deleted keys.
func PruneSnapshots(ctx context.Context, store Store, prefix string, keep int) ([]string, error) {
	infos, err := ListSnapshots(ctx, store, prefix)
	if err != nil {
		return nil, err
	}
	if keep < 0 {
		keep = 0
	}
	if len(infos) <= keep {
		return nil, nil
	}
	var deleted []string
	for _, info := range infos[:len(infos)-keep] {
		ok, err := store.Delete(ctx, info.Key)
		if err != nil {
			return deleted, fmt.Errorf("delete %s: %w", info.Key, err)
		}
		if ok {
			deleted = append(deleted, info.Key)
		}
	}
	return deleted, nil
}

// SnapshotURL signs a GET link for an archived snapshot valid for expiry. It
// returns "" without error when the backend cannot sign links.
func SnapshotURL(ctx context.Context, store Store, key string, expiry time.Duration) (string, error) {
	u, err := store.PresignURL(ctx, key, SignedURLOptions{Method: http.MethodGet, Expiry: expiry})
	if errors.Is(err, ErrUnsupported) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("sign snapshot %s: %w", key, err)
	}
	return u, nil
}
