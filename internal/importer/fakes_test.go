package importer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/fpt-devteam/csv-processor/internal/apperr"
	"github.com/fpt-devteam/csv-processor/internal/domain"
	"github.com/google/uuid"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeBlobStore struct {
	mu          sync.Mutex
	objects     map[string][]byte
	uploadErr   error
	downloadErr error
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: make(map[string][]byte)}
}

func (f *fakeBlobStore) Upload(_ context.Context, name string, reader io.Reader, _ int64) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[name] = data
	return nil
}

func (f *fakeBlobStore) Download(_ context.Context, name string) (io.ReadCloser, error) {
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[name]
	if !ok {
		return nil, fmt.Errorf("object %q not found", name)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

type statusUpdate struct {
	id     uuid.UUID
	status string
}

type fakeStore struct {
	mu            sync.Mutex
	jobs          map[uuid.UUID]*domain.Job
	records       []domain.Record
	statusUpdates []statusUpdate

	createErr      error
	updateErr      error
	insertCalls    int
	failInsertCall int // 1-based call number that fails; 0 disables
}

func newFakeStore() *fakeStore {
	return &fakeStore{jobs: make(map[uuid.UUID]*domain.Job)}
}

func (f *fakeStore) CreateJob(_ context.Context, job *domain.Job) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *job
	f.jobs[job.ID] = &copied
	return nil
}

func (f *fakeStore) GetJobByID(_ context.Context, id uuid.UUID) (*domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return nil, apperr.NotFound(fmt.Sprintf("job %s not found", id))
	}
	copied := *job
	return &copied, nil
}

func (f *fakeStore) UpdateJobStatus(_ context.Context, id uuid.UUID, status string, updatedAt time.Time) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if job, ok := f.jobs[id]; ok {
		job.Status = status
		job.UpdatedAt = updatedAt
	}
	f.statusUpdates = append(f.statusUpdates, statusUpdate{id: id, status: status})
	return nil
}

func (f *fakeStore) InsertRecords(_ context.Context, records []domain.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertCalls++
	if f.failInsertCall > 0 && f.insertCalls == f.failInsertCall {
		return fmt.Errorf("simulated insert failure")
	}
	f.records = append(f.records, records...)
	return nil
}

type fakeQueue struct {
	mu        sync.Mutex
	queues    []string
	published [][]byte
	err       error
}

func (f *fakeQueue) PublishQueue(_ context.Context, queue string, body []byte) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queues = append(f.queues, queue)
	f.published = append(f.published, body)
	return nil
}

type publishedEvent struct {
	changeType string
	document   any
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (f *fakeNotifier) Publish(_ context.Context, changeType string, document any) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, publishedEvent{changeType: changeType, document: document})
	return nil
}
