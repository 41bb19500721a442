package downloader

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/researchaccelerator-hub/shorts-scraper/model"
	"github.com/researchaccelerator-hub/shorts-scraper/queue"
	"github.com/researchaccelerator-hub/shorts-scraper/store"
	"github.com/researchaccelerator-hub/shorts-scraper/uploader"
)

// fakeRunner scripts the outcome of each subprocess invocation.
type fakeRunner struct {
	errs  []error
	calls int
	paths []string
}

func (f *fakeRunner) Run(ctx context.Context, sourceURL, outputPath string) error {
	f.paths = append(f.paths, outputPath)
	var err error
	if f.calls < len(f.errs) {
		err = f.errs[f.calls]
	}
	f.calls++
	return err
}

// fakeUploader records handoffs and returns a scripted result.
type fakeUploader struct {
	result uploader.Result
	calls  int
}

func (f *fakeUploader) Upload(ctx context.Context, localPath string, platform model.PlatformType, metadata map[string]string) uploader.Result {
	f.calls++
	return f.result
}

func seedVideo(t *testing.T, st store.Store) *model.Video {
	t.Helper()
	v, err := st.UpsertVideo(context.Background(), model.Video{
		Platform: model.PlatformYouTube,
		VideoID:  "abc123",
		URL:      "https://www.youtube.com/shorts/abc123",
		Topic:    "hai",
		Views:    1_500_000,
	})
	require.NoError(t, err)
	return v
}

func TestWorkerSuccessMarksDoneAndUploads(t *testing.T) {
	st := store.NewMemoryStore()
	q := queue.New()
	runner := &fakeRunner{}
	up := &fakeUploader{result: uploader.Result{Success: true, FileID: "f1", WebViewLink: "link", FolderID: "folder"}}
	w := NewWorker(q, st, runner, up, t.TempDir())

	v := seedVideo(t, st)
	q.Push(v.Key, queue.PriorityHigh, 0)
	require.NoError(t, w.Drain(context.Background()))

	got, err := st.GetVideo(context.Background(), v.Key)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDone, got.DownloadStatus)
	assert.Contains(t, got.LocalPath, "abc123.mp4")
	assert.Equal(t, "f1", got.DriveFileID)
	assert.Equal(t, 1, up.calls)

	logs, err := st.ListJobLogs(context.Background(), store.JobLogFilter{})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, model.JobStatusSuccess, logs[0].Status)
	assert.Equal(t, 1, logs[0].ItemsDownloaded)
}

func TestWorkerUploadFailureDoesNotRevertDone(t *testing.T) {
	st := store.NewMemoryStore()
	q := queue.New()
	w := NewWorker(q, st, &fakeRunner{}, &fakeUploader{result: uploader.Result{Success: false, Message: "quota"}}, t.TempDir())

	v := seedVideo(t, st)
	q.Push(v.Key, queue.PriorityHigh, 0)
	require.NoError(t, w.Drain(context.Background()))

	got, err := st.GetVideo(context.Background(), v.Key)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDone, got.DownloadStatus)
	assert.Empty(t, got.DriveFileID)
}

func TestWorkerRetriesThenSucceeds(t *testing.T) {
	st := store.NewMemoryStore()
	q := queue.New()
	runner := &fakeRunner{errs: []error{errors.New("timeout"), nil}}
	w := NewWorker(q, st, runner, uploader.Disabled{}, t.TempDir())

	v := seedVideo(t, st)
	q.Push(v.Key, queue.PriorityHigh, 0)
	require.NoError(t, w.Drain(context.Background()))

	got, err := st.GetVideo(context.Background(), v.Key)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDone, got.DownloadStatus)
	assert.Equal(t, 2, runner.calls)

	logs, err := st.ListJobLogs(context.Background(), store.JobLogFilter{})
	require.NoError(t, err)
	require.Len(t, logs, 2)
}

func TestWorkerRetryExhaustionEndsFailed(t *testing.T) {
	st := store.NewMemoryStore()
	q := queue.New()
	boom := errors.New("blocked by upstream")
	runner := &fakeRunner{errs: []error{boom, boom, boom, boom}}
	w := NewWorker(q, st, runner, uploader.Disabled{}, t.TempDir())

	v := seedVideo(t, st)
	q.Push(v.Key, queue.PriorityHigh, 0)
	require.NoError(t, w.Drain(context.Background()))

	// Initial attempt plus two retries, then terminal failure with no
	// further re-enqueue.
	assert.Equal(t, 3, runner.calls)
	assert.Equal(t, 0, q.Len())

	got, err := st.GetVideo(context.Background(), v.Key)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.DownloadStatus)
	assert.Contains(t, got.FailReason, "blocked by upstream")

	logs, err := st.ListJobLogs(context.Background(), store.JobLogFilter{Status: model.JobStatusFailed})
	require.NoError(t, err)
	require.Len(t, logs, 1)
}

func TestWorkerRetriesAreDemotedToNormalPriority(t *testing.T) {
	st := store.NewMemoryStore()
	q := queue.New()
	runner := &fakeRunner{errs: []error{errors.New("flaky")}}
	w := NewWorker(q, st, runner, uploader.Disabled{}, t.TempDir())

	v := seedVideo(t, st)
	q.Push(v.Key, queue.PriorityHigh, 0)

	// Process only the first job; the retry should be waiting at normal
	// priority.
	job, err := q.Pop(context.Background())
	require.NoError(t, err)
	w.process(context.Background(), job)

	require.Equal(t, 1, q.Len())
	retry, err := q.Pop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, queue.PriorityNormal, retry.Priority)
	assert.Equal(t, 1, retry.Attempts)

	got, err := st.GetVideo(context.Background(), v.Key)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, got.DownloadStatus)
	assert.Equal(t, "flaky", got.FailReason)
}

func TestWorkerDropsJobForDeletedVideo(t *testing.T) {
	st := store.NewMemoryStore()
	q := queue.New()
	runner := &fakeRunner{}
	w := NewWorker(q, st, runner, uploader.Disabled{}, t.TempDir())

	q.Push("youtube:ghost", queue.PriorityHigh, 0)
	require.NoError(t, w.Drain(context.Background()))

	assert.Equal(t, 0, runner.calls)
	logs, err := st.ListJobLogs(context.Background(), store.JobLogFilter{})
	require.NoError(t, err)
	assert.Empty(t, logs)
}
