package importer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/fpt-devteam/csv-processor/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type consumerFixture struct {
	consumer *Consumer
	blobs    *fakeBlobStore
	store    *fakeStore
	notifier *fakeNotifier
}

func newConsumerFixture(batchSize int) *consumerFixture {
	blobs := newFakeBlobStore()
	store := newFakeStore()
	notifier := &fakeNotifier{}

	consumer := NewConsumer(&ConsumerConfig{
		Blobs:     blobs,
		Store:     store,
		Notifier:  notifier,
		QueueName: testQueueName,
		BatchSize: batchSize,
		Logger:    testLogger(),
	})

	return &consumerFixture{
		consumer: consumer,
		blobs:    blobs,
		store:    store,
		notifier: notifier,
	}
}

func (f *consumerFixture) addJob(fileName, content string) *domain.Job {
	job := &domain.Job{
		ID:               uuid.New(),
		FileName:         fileName,
		OriginalFileName: "original.csv",
		Type:             domain.JobTypeImport,
		Status:           domain.JobStatusPending,
		CreatedAt:        time.Now().UTC(),
		UpdatedAt:        time.Now().UTC(),
	}
	f.store.jobs[job.ID] = job
	f.blobs.objects[fileName] = []byte(content)
	return job
}

func messageBody(t *testing.T, jobID uuid.UUID, fileName string) []byte {
	t.Helper()
	body, err := json.Marshal(domain.ImportJobMessage{
		JobID:      jobID,
		FileName:   fileName,
		UploadedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	return body
}

func TestConsumer_HandleMessage_Success(t *testing.T) {
	f := newConsumerFixture(50)
	job := f.addJob("people_x.csv", "name,email\nalice,alice@example.com\nbob,bob@example.com\n")

	decision := f.consumer.handleMessage(context.Background(), messageBody(t, job.ID, job.FileName))
	assert.Equal(t, ackMessage, decision)

	// Both rows persisted and attributed to the job.
	require.Len(t, f.store.records, 2)
	for _, r := range f.store.records {
		assert.Equal(t, job.ID, r.JobID)
		assert.Equal(t, job.FileName, r.FileName)
	}

	// Job marked Completed only after persistence.
	require.Len(t, f.store.statusUpdates, 1)
	assert.Equal(t, domain.JobStatusCompleted, f.store.statusUpdates[0].status)

	// Completion change event published.
	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, "Created", f.notifier.events[0].changeType)
	doc, ok := f.notifier.events[0].document.(domain.ImportCompleted)
	require.True(t, ok)
	assert.Equal(t, job.ID, doc.JobID)
	assert.Equal(t, 2, doc.TotalRecords)
}

func TestConsumer_HandleMessage_PoisonMessages(t *testing.T) {
	tests := []struct {
		name string
		body []byte
	}{
		{name: "undecodable body", body: []byte(`{not json`)},
		{name: "null body", body: []byte(`null`)},
		{name: "blank file name", body: []byte(`{"JobId":"1e6f5a34-8c89-4f9e-9a36-0c6a2f1b7f10","FileName":"   "}`)},
		{name: "missing file name", body: []byte(`{"JobId":"1e6f5a34-8c89-4f9e-9a36-0c6a2f1b7f10"}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newConsumerFixture(50)

			decision := f.consumer.handleMessage(context.Background(), tt.body)

			// Permanently invalid messages are dropped, not requeued.
			assert.Equal(t, ackMessage, decision)
			assert.Empty(t, f.store.records)
			assert.Empty(t, f.store.statusUpdates)
			assert.Empty(t, f.notifier.events)
		})
	}
}

func TestConsumer_HandleMessage_BatchSplitting(t *testing.T) {
	f := newConsumerFixture(2)

	// Header plus three data rows: two insert calls of 2 and 1.
	job := f.addJob("batch.csv", "name\nalice\nbob\ncarol\n")

	decision := f.consumer.handleMessage(context.Background(), messageBody(t, job.ID, job.FileName))
	assert.Equal(t, ackMessage, decision)
	assert.Equal(t, 2, f.store.insertCalls)
	assert.Len(t, f.store.records, 3)
}

func TestConsumer_HandleMessage_BatchFailureRequeues(t *testing.T) {
	f := newConsumerFixture(2)
	f.store.failInsertCall = 2

	job := f.addJob("partial.csv", "name\nalice\nbob\ncarol\n")

	decision := f.consumer.handleMessage(context.Background(), messageBody(t, job.ID, job.FileName))

	// Failure after the first batch: already-persisted records stay,
	// the job stays Pending, and the message is requeued. Redelivery
	// will insert the first batch again.
	assert.Equal(t, nackRequeue, decision)
	assert.Len(t, f.store.records, 2)
	assert.Empty(t, f.store.statusUpdates)
	assert.Empty(t, f.notifier.events)
}

func TestConsumer_HandleMessage_MissingBlobRequeues(t *testing.T) {
	f := newConsumerFixture(50)

	decision := f.consumer.handleMessage(context.Background(), messageBody(t, uuid.New(), "ghost.csv"))
	assert.Equal(t, nackRequeue, decision)
}

func TestConsumer_HandleMessage_EmptyFileRequeues(t *testing.T) {
	f := newConsumerFixture(50)
	job := f.addJob("empty.csv", "\n\n")

	decision := f.consumer.handleMessage(context.Background(), messageBody(t, job.ID, job.FileName))

	// A file with no parseable rows yields no records; the message is
	// requeued rather than silently dropped.
	assert.Equal(t, nackRequeue, decision)
	assert.Empty(t, f.store.records)
}

func TestConsumer_HandleMessage_MissingJobStillCompletes(t *testing.T) {
	f := newConsumerFixture(50)

	// Blob exists but no job row does; records are persisted and the
	// missing job is a no-op rather than an error.
	jobID := uuid.New()
	f.blobs.objects["orphan.csv"] = []byte("name\nalice\n")

	decision := f.consumer.handleMessage(context.Background(), messageBody(t, jobID, "orphan.csv"))

	assert.Equal(t, ackMessage, decision)
	assert.Len(t, f.store.records, 1)
	assert.Empty(t, f.store.statusUpdates)
	require.Len(t, f.notifier.events, 1)
}

func TestConsumer_HandleMessage_StatusUpdateFailureRequeues(t *testing.T) {
	f := newConsumerFixture(50)
	f.store.updateErr = errors.New("db down")
	job := f.addJob("status.csv", "name\nalice\n")

	decision := f.consumer.handleMessage(context.Background(), messageBody(t, job.ID, job.FileName))

	assert.Equal(t, nackRequeue, decision)
	assert.Empty(t, f.notifier.events)
}

func TestConsumer_HandleMessage_NotifyFailureStillAcks(t *testing.T) {
	f := newConsumerFixture(50)
	f.notifier.err = errors.New("broker down")
	job := f.addJob("notify.csv", "name\nalice\n")

	decision := f.consumer.handleMessage(context.Background(), messageBody(t, job.ID, job.FileName))

	// The job completed; a lost notification must not requeue the
	// message and reimport the file.
	assert.Equal(t, ackMessage, decision)
	require.Len(t, f.store.statusUpdates, 1)
	assert.Equal(t, domain.JobStatusCompleted, f.store.statusUpdates[0].status)
}
