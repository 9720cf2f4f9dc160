package analysis

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/geocapture/internal/datastore"
	"github.com/tphakala/geocapture/internal/logger"
	"github.com/tphakala/geocapture/internal/storage"
	"github.com/tphakala/geocapture/internal/vision"
)

const testBucket = "captures"

func quietLogger() logger.Logger {
	return logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil)
}

type fakeStore struct {
	mu       sync.Mutex
	captures map[uuid.UUID]*datastore.Capture
	queue    map[uuid.UUID]*datastore.AnalysisQueueEntry
	order    []uuid.UUID
	tags     map[uuid.UUID][]string

	fetchErr       error
	updateErr      error
	replaceTagsErr error
	completeErr    error
	saveCalls      int
	claimCalls     int
	purged     int64
	stats      datastore.QueueStats
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		captures: make(map[uuid.UUID]*datastore.Capture),
		queue:    make(map[uuid.UUID]*datastore.AnalysisQueueEntry),
		tags:     make(map[uuid.UUID][]string),
	}
}

func (f *fakeStore) add(c *datastore.Capture, createdAt time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.captures[c.ID] = c
	f.queue[c.ID] = &datastore.AnalysisQueueEntry{
		CaptureID: c.ID,
		Status:    datastore.QueueStatusPending,
		CreatedAt: createdAt,
	}
	f.order = append(f.order, c.ID)
}

func (f *fakeStore) entry(id uuid.UUID) datastore.AnalysisQueueEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.queue[id]
}

func (f *fakeStore) capture(id uuid.UUID) datastore.Capture {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.captures[id]
}

func (f *fakeStore) FetchPending(_ context.Context, limit int) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	var ids []uuid.UUID
	for _, id := range f.order {
		e := f.queue[id]
		if e.Status == datastore.QueueStatusPending && e.Attempts < datastore.DefaultMaxAttempts {
			ids = append(ids, id)
		}
		if len(ids) == limit {
			break
		}
	}
	return ids, nil
}

func (f *fakeStore) ClaimPending(ctx context.Context, limit int, _ time.Duration) ([]uuid.UUID, error) {
	f.mu.Lock()
	f.claimCalls++
	f.mu.Unlock()
	return f.FetchPending(ctx, limit)
}

func (f *fakeStore) GetQueueEntry(_ context.Context, id uuid.UUID) (*datastore.AnalysisQueueEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.queue[id]
	if !ok {
		return nil, datastore.ErrQueueEntryNotFound
	}
	cp := *e
	return &cp, nil
}

func (f *fakeStore) IncrementAttempts(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue[id].Attempts++
	return nil
}

func (f *fakeStore) MarkCompleted(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.completeErr != nil {
		return f.completeErr
	}
	f.queue[id].Status = datastore.QueueStatusCompleted
	return nil
}

func (f *fakeStore) GetCapture(_ context.Context, id uuid.UUID) (*datastore.Capture, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.captures[id]
	if !ok || c.IsDeleted {
		return nil, datastore.ErrCaptureNotFound
	}
	cp := *c
	return &cp, nil
}

// SaveAnalysis applies nothing when any of its three steps is set to fail.
func (f *fakeStore) SaveAnalysis(_ context.Context, id uuid.UUID, u datastore.AnalysisUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveCalls++
	for _, err := range []error{f.updateErr, f.replaceTagsErr, f.completeErr} {
		if err != nil {
			return err
		}
	}
	c := f.captures[id]
	c.VisionResult = u.Result
	c.Category = &u.Category
	c.Confidence = &u.Confidence
	c.Difficulty = &u.Difficulty
	c.Verified = &u.Verified
	c.Tags = u.Tags
	f.tags[id] = u.Tags
	f.queue[id].Status = datastore.QueueStatusCompleted
	return nil
}

func (f *fakeStore) setSaveErrors(update, replaceTags, complete error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateErr, f.replaceTagsErr, f.completeErr = update, replaceTags, complete
}

func (f *fakeStore) tagsOf(id uuid.UUID) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tags[id]
}

func (f *fakeStore) SetThumbnail(_ context.Context, id uuid.UUID, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.captures[id].ThumbnailURL = &url
	return nil
}

func (f *fakeStore) PurgeCompleted(_ context.Context, _ time.Duration) (int64, error) {
	return f.purged, nil
}

func (f *fakeStore) QueueStats(_ context.Context) (datastore.QueueStats, error) {
	return f.stats, nil
}

// fakeObjects serves images by key and uses the real URL parsing.
type fakeObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
	gets    int
}

func (o *fakeObjects) ObjectKey(rawURL string) (string, error) {
	return storage.ObjectKeyFromURL(rawURL, testBucket)
}

func (o *fakeObjects) Download(_ context.Context, key string) ([]byte, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.gets++
	if o.err != nil {
		return nil, o.err
	}
	b, ok := o.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return b, nil
}

// scriptedAnalyzer returns the scripted errors in order, then result.
type scriptedAnalyzer struct {
	mu     sync.Mutex
	errs   []error
	result vision.Result
	calls  int
	inputs []vision.GeoInput
}

func (a *scriptedAnalyzer) Analyze(_ context.Context, _ []byte, geo vision.GeoInput) (vision.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	a.inputs = append(a.inputs, geo)
	if len(a.errs) > 0 {
		err := a.errs[0]
		a.errs = a.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return a.result, nil
}

func (a *scriptedAnalyzer) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

type fakeThumbnails struct {
	err  error
	keys []string
}

func (t *fakeThumbnails) Generate(_ context.Context, sourceKey string, _ []byte) (string, error) {
	if t.err != nil {
		return "", t.err
	}
	t.keys = append(t.keys, sourceKey)
	return "https://cdn.test/" + storage.ThumbnailKey(sourceKey), nil
}

// recordingSleeper records requested delays without waiting.
type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}
