package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/sirupsen/logrus"

	"metacore/internal/blob"
	"metacore/internal/persistence"
)

// SnapshotPrefix is the blob key prefix of published documents.
const SnapshotPrefix = "snapshots/"

// ErrNoHistory is returned when a Publisher has no history store.
var ErrNoHistory = errors.New("export: history store not configured")

// Publisher writes snapshots to the blob store and records them in the
// history. Either store may be nil; a Publisher with neither does nothing.
type Publisher struct {
	Blob    blob.Store
	History persistence.Store
	Logger  *logrus.Entry
}

// Published describes where a snapshot went.
type Published struct {
	ID      string
	BlobKey string
	Blob    *blob.Info
}

// BlobKey returns the blob key of a snapshot in format.
func BlobKey(id string, format Format) string {
	return path.Join(SnapshotPrefix, id+"."+format.Extension())
}

// Publish stores snap. The history keeps a JSON copy regardless of format
// so it can be read back without the blob store.
func (p Publisher) Publish(ctx context.Context, snap *Snapshot, format Format) (Published, error) {
	out := Published{ID: snap.ID}
	if p.Blob != nil {
		raw, err := Marshal(snap, format)
		if err != nil {
			return out, err
		}
		key := BlobKey(snap.ID, format)
		info, err := p.Blob.Put(ctx, key, bytes.NewReader(raw), blob.PutOptions{
			ContentType: format.ContentType(),
			Metadata: map[string]string{
				"fingerprint": snap.Fingerprint,
				"schema":      fmt.Sprint(snap.Schema),
			},
		})
		if err != nil {
			return out, fmt.Errorf("export: put %s: %w", key, err)
		}
		out.BlobKey, out.Blob = key, &info
	}
	if p.History != nil {
		doc, err := Marshal(snap, FormatJSON)
		if err != nil {
			return out, err
		}
		err = p.History.Save(ctx, persistence.Record{
			ID:          snap.ID,
			CreatedAt:   snap.CreatedAt,
			Fingerprint: snap.Fingerprint,
			Mode:        snap.Mode,
			Deployment:  snap.Deployment,
			Types:       len(snap.Types),
			Blocking:    snap.Blocking(),
			BlobKey:     out.BlobKey,
			Document:    doc,
		})
		if err != nil {
			return out, fmt.Errorf("export: record %s: %w", snap.ID, err)
		}
	}
	p.log().WithFields(logrus.Fields{
		"snapshot":    snap.ID,
		"fingerprint": snap.Fingerprint,
		"blob_key":    out.BlobKey,
	}).Info("snapshot published")
	return out, nil
}

// Load reads a recorded snapshot from the history.
func (p Publisher) Load(ctx context.Context, id string) (*Snapshot, error) {
	if p.History == nil {
		return nil, ErrNoHistory
	}
	rec, err := p.History.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return Decode(bytes.NewReader(rec.Document))
}

// Latest reads the most recent recorded snapshot.
func (p Publisher) Latest(ctx context.Context) (*Snapshot, error) {
	if p.History == nil {
		return nil, ErrNoHistory
	}
	rec, err := p.History.Latest(ctx)
	if err != nil {
		return nil, err
	}
	return Decode(bytes.NewReader(rec.Document))
}

// Fetch reads a published document straight from the blob store.
func (p Publisher) Fetch(ctx context.Context, key string) (*Snapshot, error) {
	if p.Blob == nil {
		return nil, fmt.Errorf("export: blob store not configured")
	}
	_, rc, err := p.Blob.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return Decode(io.LimitReader(rc, maxDocument))
}

const maxDocument = 64 << 20

func (p Publisher) log() *logrus.Entry {
	if p.Logger != nil {
		return p.Logger
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}
