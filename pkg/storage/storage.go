// Package storage archives session artifacts such as debug logs and
// transcript exports, either in a local directory or in an S3 bucket.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

// FileStore is a flat object store addressed by forward-slash paths.
type FileStore interface {
	// Put writes data at p, replacing any existing object.
	Put(ctx context.Context, p string, data []byte) error

	// Get opens the object at p. A missing object yields an error wrapping
	// os.ErrNotExist.
	Get(ctx context.Context, p string) (io.ReadCloser, error)

	// Delete removes the object at p. Missing objects are not an error.
	Delete(ctx context.Context, p string) error
}

// Archive names and writes exported artifacts.
type Archive struct {
	store FileStore
	now   func() time.Time
}

func NewArchive(store FileStore) *Archive {
	return &Archive{store: store, now: time.Now}
}

// SaveDebugLog stores a session debug log under
// logs/<yyyy-mm-dd>/<session>-<hhmmss>.log and returns the path.
func (a *Archive) SaveDebugLog(ctx context.Context, sessionID, log string) (string, error) {
	return a.save(ctx, "logs", sessionID, ".log", []byte(log))
}

// SaveTranscript stores a transcript export under
// transcripts/<yyyy-mm-dd>/<session>-<hhmmss><ext>.
func (a *Archive) SaveTranscript(ctx context.Context, sessionID, ext string, data []byte) (string, error) {
	return a.save(ctx, "transcripts", sessionID, ext, data)
}

func (a *Archive) save(ctx context.Context, kind, sessionID, ext string, data []byte) (string, error) {
	if sessionID == "" || strings.ContainsAny(sessionID, "/\\") {
		return "", fmt.Errorf("storage: invalid session id %q", sessionID)
	}
	t := a.now().UTC()
	p := path.Join(kind, t.Format("2006-01-02"), sessionID+"-"+t.Format("150405")+ext)
	if err := a.store.Put(ctx, p, data); err != nil {
		return "", fmt.Errorf("storage: save %s: %w", p, err)
	}
	return p, nil
}
