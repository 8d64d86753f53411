package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigil-systems/vigil/internal/counter"
	"github.com/vigil-systems/vigil/internal/models"
)

const sampleCSV = `timestamp,level,action,username,ip,country,resource,user_agent,message
2025-12-18T10:00:00Z,WARN,LOGIN_FAILED,alice,10.0.0.1,NL,/login,curl,bad password
,INFO,LOGIN_OK,bob,10.0.0.2,DE,/login,curl,ok
2025-12-18T10:05:00Z,INFO,LOGIN_OK,carol,10.0.0.3,FR,/login,curl,ok
`

type fakeRouter struct {
	events  []models.LogEvent
	indexed int
	err     error
}

func (f *fakeRouter) BulkIndex(ctx context.Context, events []models.LogEvent) (int, error) {
	f.events = events
	if f.err != nil {
		return 0, f.err
	}
	f.indexed = len(events)
	return len(events), nil
}

type fakeRepo struct {
	uploads   []models.UploadRecord
	insertErr error
}

func (f *fakeRepo) InsertAlert(ctx context.Context, a *models.Alert) error { return nil }
func (f *fakeRepo) ListAlerts(ctx context.Context) ([]models.Alert, error) {
	return nil, nil
}
func (f *fakeRepo) InsertUpload(ctx context.Context, u *models.UploadRecord) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.uploads = append(f.uploads, *u)
	return nil
}
func (f *fakeRepo) ListUploads(ctx context.Context) ([]models.UploadRecord, error) {
	return f.uploads, nil
}
func (f *fakeRepo) Ping(ctx context.Context) error { return nil }
func (f *fakeRepo) Close() error                   { return nil }

func TestIngestCSV(t *testing.T) {
	router := &fakeRouter{}
	repo := &fakeRepo{}
	ing := NewIngestor(router, repo, counter.New(nil, false), "webapp")

	result, err := ing.IngestCSV(context.Background(), strings.NewReader(sampleCSV), "auth.csv", "/logs/auth.csv", int64(len(sampleCSV)))
	require.NoError(t, err)

	assert.Equal(t, "auth.csv", result.Filename)
	assert.Equal(t, 2, result.Indexed)
	assert.Equal(t, 1, result.Skipped)

	require.Len(t, repo.uploads, 1)
	assert.Equal(t, "auth.csv", repo.uploads[0].Filename)
	assert.Equal(t, "/logs/auth.csv", repo.uploads[0].Path)
	assert.Equal(t, "webapp", repo.uploads[0].Source)
	assert.False(t, repo.uploads[0].UploadedAt.IsZero())

	require.Len(t, router.events, 2)
	assert.Equal(t, "alice", router.events[0].Username)
	assert.Equal(t, "carol", router.events[1].Username)
}

func TestIngestCSVBumpsCounter(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	ct := counter.New(rdb, true)

	ing := NewIngestor(&fakeRouter{}, &fakeRepo{}, ct, "webapp")

	_, err := ing.IngestCSV(context.Background(), strings.NewReader(sampleCSV), "a.csv", "/logs/a.csv", 10)
	require.NoError(t, err)
	_, err = ing.IngestCSV(context.Background(), strings.NewReader(sampleCSV), "b.csv", "/logs/b.csv", 10)
	require.NoError(t, err)

	assert.Equal(t, int64(2), ct.Uploads(context.Background()))
}

func TestIngestCSVUploadRecordFailureAborts(t *testing.T) {
	router := &fakeRouter{}
	repo := &fakeRepo{insertErr: errors.New("ledger down")}
	ing := NewIngestor(router, repo, counter.New(nil, false), "webapp")

	_, err := ing.IngestCSV(context.Background(), strings.NewReader(sampleCSV), "a.csv", "/logs/a.csv", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record upload")
	assert.Nil(t, router.events)
}

func TestIngestCSVIndexFailureSurfaces(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	ct := counter.New(rdb, true)

	router := &fakeRouter{err: errors.New("cluster unavailable")}
	ing := NewIngestor(router, &fakeRepo{}, ct, "webapp")

	_, err := ing.IngestCSV(context.Background(), strings.NewReader(sampleCSV), "a.csv", "/logs/a.csv", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index events")

	// Counter is only bumped after a successful store write.
	assert.Equal(t, int64(0), ct.Uploads(context.Background()))
}

func TestIngestCSVBadHeaderSurfaces(t *testing.T) {
	ing := NewIngestor(&fakeRouter{}, &fakeRepo{}, counter.New(nil, false), "webapp")

	_, err := ing.IngestCSV(context.Background(), strings.NewReader(""), "empty.csv", "/logs/empty.csv", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse CSV")
}
