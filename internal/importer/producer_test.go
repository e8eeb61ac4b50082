package importer

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/fpt-devteam/csv-processor/internal/apperr"
	"github.com/fpt-devteam/csv-processor/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testQueueName = "csv-import-queue"

func newTestProducer(blobs *fakeBlobStore, store *fakeStore, queue *fakeQueue) *Producer {
	return NewProducer(blobs, store, queue, testQueueName, testLogger())
}

func TestProducer_Submit(t *testing.T) {
	blobs := newFakeBlobStore()
	store := newFakeStore()
	queue := &fakeQueue{}
	producer := newTestProducer(blobs, store, queue)

	content := []byte("name,email\nalice,alice@example.com\n")
	receipt, err := producer.Submit(context.Background(), "people.csv", content)
	require.NoError(t, err)

	// Stored name keeps the base and extension around a timestamp and
	// random suffix.
	assert.Regexp(t, regexp.MustCompile(`^people_\d{14}_[0-9a-f]{8}\.csv$`), receipt.FileName)
	assert.Equal(t, domain.JobStatusPending, receipt.Status)
	assert.NotEmpty(t, receipt.Message)

	// Blob stored under the generated name.
	assert.Equal(t, content, blobs.objects[receipt.FileName])

	// Job recorded as Pending with both names.
	job, err := store.GetJobByID(context.Background(), receipt.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusPending, job.Status)
	assert.Equal(t, domain.JobTypeImport, job.Type)
	assert.Equal(t, receipt.FileName, job.FileName)
	assert.Equal(t, "people.csv", job.OriginalFileName)

	// One message published to the import queue referencing the job.
	require.Len(t, queue.published, 1)
	assert.Equal(t, testQueueName, queue.queues[0])

	var msg domain.ImportJobMessage
	require.NoError(t, json.Unmarshal(queue.published[0], &msg))
	assert.Equal(t, receipt.JobID, msg.JobID)
	assert.Equal(t, receipt.FileName, msg.FileName)
}

func TestProducer_Submit_DistinctStoredNames(t *testing.T) {
	blobs := newFakeBlobStore()
	store := newFakeStore()
	queue := &fakeQueue{}
	producer := newTestProducer(blobs, store, queue)

	content := []byte("a,b\n1,2\n")

	first, err := producer.Submit(context.Background(), "same.csv", content)
	require.NoError(t, err)
	second, err := producer.Submit(context.Background(), "same.csv", content)
	require.NoError(t, err)

	assert.NotEqual(t, first.FileName, second.FileName)
	assert.NotEqual(t, first.JobID, second.JobID)
	assert.Len(t, blobs.objects, 2)
}

func TestProducer_Submit_Validation(t *testing.T) {
	producer := newTestProducer(newFakeBlobStore(), newFakeStore(), &fakeQueue{})

	_, err := producer.Submit(context.Background(), "empty.csv", nil)
	require.Error(t, err)
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))

	_, err = producer.Submit(context.Background(), "   ", []byte("a,b"))
	require.Error(t, err)
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
}

func TestProducer_Submit_UploadFailure(t *testing.T) {
	blobs := newFakeBlobStore()
	blobs.uploadErr = errors.New("minio down")
	store := newFakeStore()
	queue := &fakeQueue{}
	producer := newTestProducer(blobs, store, queue)

	_, err := producer.Submit(context.Background(), "people.csv", []byte("a,b\n1,2"))
	require.Error(t, err)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))

	// Nothing downstream of the failed upload happened.
	assert.Empty(t, store.jobs)
	assert.Empty(t, queue.published)
}

func TestProducer_Submit_PublishFailure(t *testing.T) {
	blobs := newFakeBlobStore()
	store := newFakeStore()
	queue := &fakeQueue{err: errors.New("broker down")}
	producer := newTestProducer(blobs, store, queue)

	_, err := producer.Submit(context.Background(), "people.csv", []byte("a,b\n1,2"))
	require.Error(t, err)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))

	// The blob and job remain; there is no compensation on partial
	// failure.
	assert.Len(t, blobs.objects, 1)
	assert.Len(t, store.jobs, 1)
}

func TestStoredFileName(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 30, 45, 0, time.UTC)

	name := StoredFileName("report.csv", now)
	assert.Regexp(t, regexp.MustCompile(`^report_20240315103045_[0-9a-f]{8}\.csv$`), name)

	noExt := StoredFileName("report", now)
	assert.Regexp(t, regexp.MustCompile(`^report_20240315103045_[0-9a-f]{8}$`), noExt)

	nested := StoredFileName("dir/sub/report.csv", now)
	assert.Regexp(t, regexp.MustCompile(`^report_20240315103045_[0-9a-f]{8}\.csv$`), nested)
}

func TestImportJobMessage_CaseInsensitiveRoundTrip(t *testing.T) {
	original := domain.ImportJobMessage{
		JobID:      uuid.New(),
		FileName:   "people_20240315103045_abcd1234.csv",
		UploadedAt: time.Date(2024, 3, 15, 10, 30, 45, 0, time.UTC),
	}

	body, err := json.Marshal(original)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"JobId"`)
	assert.Contains(t, string(body), `"FileName"`)

	// Decoding tolerates differently-cased keys from other producers.
	lower := `{"jobid":"1e6f5a34-8c89-4f9e-9a36-0c6a2f1b7f10","filename":"x.csv","uploadedat":"2024-03-15T10:30:45Z"}`
	var decoded domain.ImportJobMessage
	require.NoError(t, json.Unmarshal([]byte(lower), &decoded))
	assert.Equal(t, "x.csv", decoded.FileName)
	assert.Equal(t, "1e6f5a34-8c89-4f9e-9a36-0c6a2f1b7f10", decoded.JobID.String())
}
