// Package publish uploads an artifact tree to a content-addressed blob store
// and writes an immutable deployment manifest for it.
//
// Blobs are named by content hash, so identical bytes are stored once no
// matter how many paths or deployments reference them, and re-publishing an
// unchanged tree uploads nothing.
package publish

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// blobHashLen truncates the content hash used in blob keys.
const blobHashLen = 16

// DefaultWorkers bounds parallel existence checks and uploads.
const DefaultWorkers = 10

// BlobStore is the consumed key/value store contract. Exists must distinguish
// "not found" (false, nil) from other errors; any other error is fatal to a
// publish and never treated as "needs upload".
type BlobStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	Put(ctx context.Context, key string, body []byte, contentType string) error
}

// Entry maps one logical file path to its blob.
type Entry struct {
	Hash string `json:"hash"`
	Blob string `json:"blob"`
	Size int64  `json:"size"`
}

// Manifest maps logical paths (rooted at "/") to entries. One manifest per
// deployment name.
type Manifest map[string]Entry

// Stats summarizes one publish operation.
type Stats struct {
	TotalFiles    int
	TotalSize     int64
	NewBlobs      int
	ReusedBlobs   int
	BytesUploaded int64
	ManifestKey   string
}

// Publisher publishes directory trees to a BlobStore.
type Publisher struct {
	Store   BlobStore
	Workers int
	DryRun  bool
	Log     *slog.Logger
}

// NewPublisher returns a publisher with default concurrency.
func NewPublisher(store BlobStore, log *slog.Logger) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{Store: store, Workers: DefaultWorkers, Log: log}
}

type candidate struct {
	path    string // filesystem path
	blobKey string
	size    int64
}

// Publish uploads the tree under dir as deployment name.
//
// The deployment manifest is written only after every blob it references is
// confirmed present, so any reader of the manifest can resolve all of it.
// Any upload or existence-check failure aborts the whole publish: once one
// is detected no further uploads are scheduled, in-flight ones finish, and
// the manifest is not written.
func (p *Publisher) Publish(ctx context.Context, dir, name string) (Stats, error) {
	var stats Stats

	manifest, candidates, err := scanTree(dir)
	if err != nil {
		return stats, err
	}
	stats.TotalFiles = len(manifest)
	for _, e := range manifest {
		stats.TotalSize += e.Size
	}
	if stats.TotalFiles == 0 {
		return stats, fmt.Errorf("no files found under %s", dir)
	}

	toUpload, reused, err := p.partition(ctx, candidates)
	if err != nil {
		return stats, err
	}
	stats.NewBlobs = len(toUpload)
	stats.ReusedBlobs = reused
	p.Log.Info("scanned artifact tree", "dir", dir,
		"files", stats.TotalFiles, "new_blobs", stats.NewBlobs, "reused_blobs", stats.ReusedBlobs)

	if p.DryRun {
		p.Log.Info("dry run, skipping uploads")
		return stats, nil
	}

	uploaded, err := p.uploadAll(ctx, toUpload)
	stats.BytesUploaded = uploaded
	if err != nil {
		return stats, fmt.Errorf("publish aborted: %w", err)
	}

	key, err := p.putManifest(ctx, manifest, name)
	if err != nil {
		return stats, err
	}
	stats.ManifestKey = key
	p.Log.Info("publish complete", "manifest", key, "bytes_uploaded", stats.BytesUploaded)
	return stats, nil
}

// scanTree builds the deployment manifest and the deduplicated blob
// candidate list for a directory tree.
func scanTree(dir string) (Manifest, []candidate, error) {
	manifest := Manifest{}
	seen := map[string]bool{}
	var candidates []candidate

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		logical := "/" + filepath.ToSlash(rel)

		sum := sha256.Sum256(data)
		hash := hex.EncodeToString(sum[:])[:blobHashLen]
		blobKey := "blobs/" + hash + extension(path)

		manifest[logical] = Entry{Hash: hash, Blob: blobKey, Size: int64(len(data))}

		// Identical bytes at different paths share one blob and one upload.
		if !seen[blobKey] {
			seen[blobKey] = true
			candidates = append(candidates, candidate{path: path, blobKey: blobKey, size: int64(len(data))})
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("scanning %s: %w", dir, err)
	}
	return manifest, candidates, nil
}

// partition splits candidates into blobs needing upload and already-present
// ones, probing the store in parallel.
func (p *Publisher) partition(ctx context.Context, candidates []candidate) ([]candidate, int, error) {
	present := make([]bool, len(candidates))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers())
	for i, c := range candidates {
		i, c := i, c
		g.Go(func() error {
			ok, err := p.Store.Exists(ctx, c.blobKey)
			if err != nil {
				return fmt.Errorf("existence check for %s: %w", c.blobKey, err)
			}
			present[i] = ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	var toUpload []candidate
	reused := 0
	for i, c := range candidates {
		if present[i] {
			reused++
		} else {
			toUpload = append(toUpload, c)
		}
	}
	return toUpload, reused, nil
}

// uploadAll uploads blobs with bounded parallelism. The first failure cancels
// scheduling of the remainder; in-flight uploads run to completion.
func (p *Publisher) uploadAll(ctx context.Context, toUpload []candidate) (int64, error) {
	var mu sync.Mutex
	var uploaded int64

	// The derived context only gates scheduling. Started uploads get the
	// caller's context so a sibling failure does not kill them mid-flight.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers())
	for _, c := range toUpload {
		c := c
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			data, err := os.ReadFile(c.path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", c.path, err)
			}
			if err := p.Store.Put(ctx, c.blobKey, data, contentType(c.path)); err != nil {
				return fmt.Errorf("uploading %s: %w", c.blobKey, err)
			}
			p.Log.Info("uploaded blob", "key", c.blobKey, "size", c.size)
			mu.Lock()
			uploaded += c.size
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()
	return uploaded, err
}

// putManifest writes the deployment manifest object, replacing any previous
// manifest of that name in a single put.
func (p *Publisher) putManifest(ctx context.Context, m Manifest, name string) (string, error) {
	key := "manifests/" + name + ".json"
	body, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding deployment manifest: %w", err)
	}
	if err := p.Store.Put(ctx, key, body, "application/json"); err != nil {
		return "", fmt.Errorf("uploading deployment manifest: %w", err)
	}
	return key, nil
}

func (p *Publisher) workers() int {
	if p.Workers > 0 {
		return p.Workers
	}
	return DefaultWorkers
}

func extension(path string) string {
	if ext := filepath.Ext(path); ext != "" {
		return ext
	}
	return ".bin"
}

func contentType(path string) string {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		// Strip charset parameters so keys stay stable across platforms.
		if i := strings.IndexByte(ct, ';'); i >= 0 {
			ct = ct[:i]
		}
		return ct
	}
	return "application/octet-stream"
}

// SortedPaths returns the manifest's logical paths in order, mainly for
// reporting and tests.
func (m Manifest) SortedPaths() []string {
	paths := make([]string, 0, len(m))
	for p := range m {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
