package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sleepsync/internal/connectors/fitbit"
	"github.com/custodia-labs/sleepsync/internal/core/domain"
	"github.com/custodia-labs/sleepsync/internal/logger"
)

type syncFixture struct {
	store     *mockCredentialStore
	refresher *mockRefresher
	source    *mockSource
	sink      *mockSink
	pacer     *recordingPacer
	orch      *SyncOrchestrator
}

func newSyncFixture(opts SyncOptions, creds ...domain.UserCredential) *syncFixture {
	f := &syncFixture{
		store:  newMockCredentialStore(creds...),
		source: newMockSource(),
		sink:   newMockSink(),
	}
	f.refresher = newMockRefresher(f.store)
	f.pacer = &recordingPacer{source: f.source}
	f.orch = NewSyncOrchestrator(f.store, f.refresher, f.source, f.sink, f.pacer, opts)
	f.orch.now = func() time.Time { return fixedNow }
	f.orch.publisher.now = f.orch.now
	return f
}

func connectedUser(id string) domain.UserCredential {
	return domain.UserCredential{
		UserID:             id,
		SourceAccessToken:  "src-" + id,
		SourceRefreshToken: "src-refresh-" + id,
		SourceTokenExpiry:  fixedNow.Add(time.Hour),
		SinkAccessToken:    "sink-" + id,
	}
}

func yesterdayRecord() *domain.SleepRecord {
	rec := sampleRecord()
	return &rec
}

func TestRunCycle_EmptyEligibleSet(t *testing.T) {
	f := newSyncFixture(SyncOptions{}, domain.UserCredential{UserID: "no-token"})

	outcome, err := f.orch.RunCycle(context.Background(), "")

	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Equal(t, 0, outcome.UsersProcessed)
	assert.NotEmpty(t, outcome.RunID)
	assert.Empty(t, f.source.calls)
	assert.Empty(t, f.sink.sent)
	assert.Empty(t, f.refresher.calls)
}

func TestRunCycle_SyncsYesterday(t *testing.T) {
	f := newSyncFixture(SyncOptions{}, connectedUser("u1"))
	f.source.records["2024-03-09"] = yesterdayRecord()

	outcome, err := f.orch.RunCycle(context.Background(), "")

	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Equal(t, 1, outcome.UsersProcessed)
	require.Len(t, f.source.calls, 1)
	assert.Equal(t, fetchCall{token: "src-u1", date: "2024-03-09"}, f.source.calls[0])
	require.Len(t, f.sink.sent, 1)
	assert.Equal(t, domain.DefaultSinkAPIURL, f.sink.sent[0].baseURL)
	assert.Equal(t, "sink-u1", f.sink.sent[0].token)
	assert.Equal(t, "sleep_u1_2024-03-09", f.sink.sent[0].payload.ExternalID)
}

func TestRunCycle_YesterdayInConfiguredLocation(t *testing.T) {
	loc := time.FixedZone("UTC-10", -10*60*60)
	f := newSyncFixture(SyncOptions{Location: loc}, connectedUser("u1"))

	_, err := f.orch.RunCycle(context.Background(), "")

	require.NoError(t, err)
	require.Len(t, f.source.calls, 1)
	// 08:00 UTC on the 10th is 22:00 on the 9th at UTC-10.
	assert.Equal(t, "2024-03-08", f.source.calls[0].date)
}

func TestRunCycle_NoDataIsSkipped(t *testing.T) {
	f := newSyncFixture(SyncOptions{}, connectedUser("u1"))

	outcome, err := f.orch.RunCycle(context.Background(), "")

	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Equal(t, 0, outcome.UsersProcessed)
	assert.Equal(t, 1, outcome.UsersSkipped)
	assert.Len(t, f.source.calls, 1)
	assert.Empty(t, f.sink.sent)
}

func TestRunCycle_IsolatesPerUserFailures(t *testing.T) {
	f := newSyncFixture(SyncOptions{},
		connectedUser("u1"), connectedUser("u2"), connectedUser("u3"), connectedUser("u4"))
	f.source.records["2024-03-09"] = yesterdayRecord()
	f.source.errByToken["src-u2"] = errors.New("connection reset")
	f.sink.errByToken["sink-u3"] = errors.New("bad gateway")

	outcome, err := f.orch.RunCycle(context.Background(), "")

	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Equal(t, 2, outcome.UsersProcessed)
	assert.Equal(t, 2, outcome.UsersFailed)
	assert.Len(t, f.source.calls, 4)
}

func TestRunCycle_RefreshesExpiredSourceTokenFirst(t *testing.T) {
	cred := connectedUser("u1")
	cred.SourceTokenExpiry = fixedNow.Add(-time.Hour)
	f := newSyncFixture(SyncOptions{}, cred)
	f.source.records["2024-03-09"] = yesterdayRecord()

	outcome, err := f.orch.RunCycle(context.Background(), "")

	require.NoError(t, err)
	assert.Equal(t, 1, outcome.UsersProcessed)
	assert.Equal(t, 1, f.refresher.callsFor(domain.ProviderSource))
	require.Len(t, f.source.calls, 1)
	assert.Equal(t, "fresh-source", f.source.calls[0].token)

	stored := f.store.get("u1")
	assert.Equal(t, "fresh-source", stored.SourceAccessToken)
	assert.Equal(t, fixedNow.Add(8*time.Hour), stored.SourceTokenExpiry)
}

func TestRunCycle_RefreshFailureCountsAsFailure(t *testing.T) {
	cred := connectedUser("u1")
	cred.SourceTokenExpiry = fixedNow.Add(-time.Hour)
	f := newSyncFixture(SyncOptions{}, cred, connectedUser("u2"))
	f.source.records["2024-03-09"] = yesterdayRecord()
	f.refresher.err[domain.ProviderSource] = errors.New("invalid_grant")

	outcome, err := f.orch.RunCycle(context.Background(), "")

	require.NoError(t, err)
	assert.Equal(t, 1, outcome.UsersProcessed)
	assert.Equal(t, 1, outcome.UsersFailed)
	require.Len(t, f.source.calls, 1)
	assert.Equal(t, "src-u2", f.source.calls[0].token)
}

func TestRunCycle_ValidTokenIsNotRefreshed(t *testing.T) {
	cred := connectedUser("u1")
	cred.SourceTokenExpiry = time.Time{}
	f := newSyncFixture(SyncOptions{}, cred)

	_, err := f.orch.RunCycle(context.Background(), "")

	require.NoError(t, err)
	assert.Empty(t, f.refresher.calls)
}

func TestRunCycle_ExpiredSinkTokenRefreshedBeforePublish(t *testing.T) {
	cred := connectedUser("u1")
	cred.SinkRefreshToken = "sink-refresh"
	cred.SinkTokenExpiry = fixedNow.Add(-time.Minute)
	f := newSyncFixture(SyncOptions{}, cred)
	f.source.records["2024-03-09"] = yesterdayRecord()

	outcome, err := f.orch.RunCycle(context.Background(), "")

	require.NoError(t, err)
	assert.Equal(t, 1, outcome.UsersProcessed)
	assert.Equal(t, 1, f.refresher.callsFor(domain.ProviderSink))
	require.Len(t, f.sink.sent, 1)
	assert.Equal(t, "fresh-sink", f.sink.sent[0].token)
}

func TestRunCycle_SinkNotConnectedFails(t *testing.T) {
	cred := connectedUser("u1")
	cred.SinkAccessToken = ""
	f := newSyncFixture(SyncOptions{}, cred)
	f.source.records["2024-03-09"] = yesterdayRecord()

	outcome, err := f.orch.RunCycle(context.Background(), "")

	require.NoError(t, err)
	assert.Equal(t, 0, outcome.UsersProcessed)
	assert.Equal(t, 1, outcome.UsersFailed)
}

func TestRunCycle_SelectionErrorFailsCycle(t *testing.T) {
	f := newSyncFixture(SyncOptions{}, connectedUser("u1"))
	f.store.eligibleErr = errors.New("db unavailable")

	outcome, err := f.orch.RunCycle(context.Background(), "")

	var selErr *domain.SelectionError
	require.ErrorAs(t, err, &selErr)
	assert.False(t, outcome.Success)
	assert.Empty(t, f.source.calls)
}

func TestRunCycle_TargetUser(t *testing.T) {
	f := newSyncFixture(SyncOptions{}, connectedUser("u1"), connectedUser("u2"))
	f.source.records["2024-03-09"] = yesterdayRecord()

	outcome, err := f.orch.RunCycle(context.Background(), "u2")

	require.NoError(t, err)
	assert.Equal(t, 1, outcome.UsersProcessed)
	require.Len(t, f.source.calls, 1)
	assert.Equal(t, "src-u2", f.source.calls[0].token)
}

func TestRunCycle_MissingTargetIsEmpty(t *testing.T) {
	f := newSyncFixture(SyncOptions{}, connectedUser("u1"))

	outcome, err := f.orch.RunCycle(context.Background(), "ghost")

	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Equal(t, 0, outcome.UsersProcessed)
	assert.Empty(t, f.source.calls)
}

func TestRunCycle_TargetWithoutSourceTokenNeverFetched(t *testing.T) {
	cred := connectedUser("u1")
	cred.SourceAccessToken = ""
	f := newSyncFixture(SyncOptions{}, cred)

	outcome, err := f.orch.RunCycle(context.Background(), "u1")

	require.NoError(t, err)
	assert.Equal(t, 1, outcome.UsersSkipped)
	assert.Empty(t, f.source.calls)
}

func TestRunCycle_Concurrent(t *testing.T) {
	var creds []domain.UserCredential
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		creds = append(creds, connectedUser(id))
	}
	f := newSyncFixture(SyncOptions{Concurrency: 3}, creds...)
	f.source.records["2024-03-09"] = yesterdayRecord()
	f.source.errByToken["src-c"] = errors.New("timeout")

	outcome, err := f.orch.RunCycle(context.Background(), "")

	require.NoError(t, err)
	assert.Equal(t, 6, outcome.UsersProcessed)
	assert.Equal(t, 1, outcome.UsersFailed)
	assert.Len(t, f.source.calls, 7)
	assert.Len(t, f.sink.sent, 6)
}

func TestRunCycle_WaitsOnPacerBeforeEachFetch(t *testing.T) {
	f := newSyncFixture(SyncOptions{}, connectedUser("a"), connectedUser("b"), connectedUser("c"))
	f.source.records["2024-03-09"] = yesterdayRecord()

	_, err := f.orch.RunCycle(context.Background(), "")

	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, f.pacer.waits)
}

func TestRunCycle_PacerErrorFailsUser(t *testing.T) {
	f := newSyncFixture(SyncOptions{}, connectedUser("u1"))
	f.source.records["2024-03-09"] = yesterdayRecord()
	f.pacer.err = errors.New("rate limit wait aborted")

	outcome, err := f.orch.RunCycle(context.Background(), "")

	require.NoError(t, err)
	assert.Equal(t, 1, outcome.UsersFailed)
	assert.Empty(t, f.source.calls)
	assert.Empty(t, f.sink.sent)
}

func TestRunCycle_HonoursSourceRetryAfter(t *testing.T) {
	const backoff = 80 * time.Millisecond
	store := newMockCredentialStore(connectedUser("u1"))
	source := newMockSource()
	limiter := fitbit.NewRateLimiter(time.Millisecond)
	orch := NewSyncOrchestrator(store, newMockRefresher(store), source, newMockSink(),
		limiter, SyncOptions{})
	orch.now = func() time.Time { return fixedNow }

	limiter.RecordRateLimitError(backoff)
	start := time.Now()
	_, err := orch.RunCycle(context.Background(), "")

	require.NoError(t, err)
	require.Len(t, source.fetchedAt, 1)
	assert.GreaterOrEqual(t, source.fetchedAt[0].Sub(start), backoff-5*time.Millisecond)
}

func TestImportHistory_WalksRangeWithPacing(t *testing.T) {
	f := newSyncFixture(SyncOptions{}, connectedUser("u1"))
	f.source.records["2024-02-10"] = yesterdayRecord()
	f.source.records["2024-03-10"] = yesterdayRecord()

	outcome, err := f.orch.ImportHistory(context.Background(), "u1", 1)

	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Equal(t, 30, outcome.DaysRequested)
	assert.Equal(t, 2, outcome.DaysProcessed)
	assert.Equal(t, "2024-02-10", outcome.From)
	assert.Equal(t, "2024-03-10", outcome.To)

	require.Len(t, f.source.calls, 30)
	for i := 1; i < len(f.source.calls); i++ {
		assert.Less(t, f.source.calls[i-1].date, f.source.calls[i].date)
	}

	// One wait ahead of every fetch, the first included.
	require.Len(t, f.pacer.waits, 30)
	for i, fetched := range f.pacer.waits {
		assert.Equal(t, i, fetched)
	}
}

func TestImportRange_ThreeDays(t *testing.T) {
	f := newSyncFixture(SyncOptions{}, connectedUser("u1"))
	f.source.records["2024-03-02"] = yesterdayRecord()
	cred := connectedUser("u1")

	processed, err := f.orch.importRange(context.Background(), &cred,
		[]string{"2024-03-01", "2024-03-02", "2024-03-03"}, logger.With())

	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	assert.Equal(t, []fetchCall{
		{token: "src-u1", date: "2024-03-01"},
		{token: "src-u1", date: "2024-03-02"},
		{token: "src-u1", date: "2024-03-03"},
	}, f.source.calls)
	assert.Equal(t, []int{0, 1, 2}, f.pacer.waits)
}

func TestImportRange_RateLimiterSpacesEveryFetch(t *testing.T) {
	const pace = 60 * time.Millisecond
	store := newMockCredentialStore(connectedUser("u1"))
	source := newMockSource()
	orch := NewSyncOrchestrator(store, newMockRefresher(store), source, newMockSink(),
		fitbit.NewRateLimiter(pace), SyncOptions{})
	orch.now = func() time.Time { return fixedNow }
	cred := connectedUser("u1")

	_, err := orch.importRange(context.Background(), &cred,
		[]string{"2024-03-01", "2024-03-02", "2024-03-03", "2024-03-04"}, logger.With())

	require.NoError(t, err)
	require.Len(t, source.fetchedAt, 4)
	// rate.Limiter reserves tokens at nanosecond granularity; allow a
	// millisecond of scheduling slack.
	for i := 1; i < len(source.fetchedAt); i++ {
		gap := source.fetchedAt[i].Sub(source.fetchedAt[i-1])
		assert.GreaterOrEqual(t, gap, pace-time.Millisecond, "gap before fetch %d", i)
	}
}

func TestImportHistory_DefaultMonths(t *testing.T) {
	f := newSyncFixture(SyncOptions{}, connectedUser("u1"))

	outcome, err := f.orch.ImportHistory(context.Background(), "u1", 0)

	require.NoError(t, err)
	assert.Equal(t, "2023-12-10", outcome.From)
	assert.Equal(t, len(domain.ImportDates(fixedNow, 3)), outcome.DaysRequested)
}

func TestImportHistory_FailedDaysAreSkipped(t *testing.T) {
	f := newSyncFixture(SyncOptions{}, connectedUser("u1"))
	for _, d := range domain.ImportDates(fixedNow, 1) {
		f.source.records[d] = yesterdayRecord()
	}
	f.sink.errByToken["sink-u1"] = errors.New("unavailable")

	outcome, err := f.orch.ImportHistory(context.Background(), "u1", 1)

	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Equal(t, 0, outcome.DaysProcessed)
	assert.Len(t, f.source.calls, 30)
}

func TestImportHistory_UnknownUser(t *testing.T) {
	f := newSyncFixture(SyncOptions{})

	_, err := f.orch.ImportHistory(context.Background(), "ghost", 3)

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestImportHistory_MissingUserID(t *testing.T) {
	f := newSyncFixture(SyncOptions{})

	_, err := f.orch.ImportHistory(context.Background(), "", 3)

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestImportHistory_RefreshesBothProvidersUpFront(t *testing.T) {
	cred := connectedUser("u1")
	cred.SourceTokenExpiry = fixedNow.Add(-time.Hour)
	cred.SinkRefreshToken = "sink-refresh"
	cred.SinkTokenExpiry = fixedNow.Add(-time.Hour)
	f := newSyncFixture(SyncOptions{}, cred)
	f.source.records["2024-03-01"] = yesterdayRecord()

	_, err := f.orch.ImportHistory(context.Background(), "u1", 1)

	require.NoError(t, err)
	assert.Equal(t, 1, f.refresher.callsFor(domain.ProviderSource))
	assert.Equal(t, 1, f.refresher.callsFor(domain.ProviderSink))
	require.Len(t, f.sink.sent, 1)
	assert.Equal(t, "fresh-sink", f.sink.sent[0].token)
}

func TestImportHistory_RefreshFailureAborts(t *testing.T) {
	cred := connectedUser("u1")
	cred.SourceTokenExpiry = fixedNow.Add(-time.Hour)
	f := newSyncFixture(SyncOptions{}, cred)
	f.refresher.err[domain.ProviderSource] = errors.New("invalid_grant")

	_, err := f.orch.ImportHistory(context.Background(), "u1", 1)

	assert.ErrorIs(t, err, domain.ErrTokenRefreshFailed)
	assert.Empty(t, f.source.calls)
}

func TestImportHistory_CancelledDuringPacing(t *testing.T) {
	f := newSyncFixture(SyncOptions{}, connectedUser("u1"))
	f.pacer.err = context.Canceled

	_, err := f.orch.ImportHistory(context.Background(), "u1", 1)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.source.calls)
}
