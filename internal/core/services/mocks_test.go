package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/sleepsync/internal/core/domain"
	"github.com/custodia-labs/sleepsync/internal/core/ports/driven"
	"github.com/custodia-labs/sleepsync/internal/core/ports/driving"
)

// fixedNow is the clock used across service tests.
var fixedNow = time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)

// mockCredentialStore implements driven.CredentialStore for testing.
type mockCredentialStore struct {
	mu          sync.Mutex
	creds       map[string]domain.UserCredential
	upserts     []string
	findErr     error
	eligibleErr error
	upsertErr   error
}

func newMockCredentialStore(creds ...domain.UserCredential) *mockCredentialStore {
	m := &mockCredentialStore{creds: make(map[string]domain.UserCredential)}
	for _, c := range creds {
		m.creds[c.UserID] = c
	}
	return m
}

func (m *mockCredentialStore) Find(_ context.Context, userID string) (*domain.UserCredential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	c, ok := m.creds[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (m *mockCredentialStore) FindEligible(_ context.Context, now time.Time) ([]domain.UserCredential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.eligibleErr != nil {
		return nil, m.eligibleErr
	}
	var out []domain.UserCredential
	for _, c := range m.creds {
		if c.IsEligible(now) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (m *mockCredentialStore) Upsert(_ context.Context, userID string, update domain.CredentialUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	c := m.creds[userID]
	c.UserID = userID
	c.Apply(update)
	m.creds[userID] = c
	m.upserts = append(m.upserts, userID)
	return nil
}

func (m *mockCredentialStore) Close() error { return nil }

func (m *mockCredentialStore) get(userID string) domain.UserCredential {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creds[userID]
}

// mockRefresher implements driven.TokenRefresher, persisting through store.
type mockRefresher struct {
	mu        sync.Mutex
	store     *mockCredentialStore
	expiresIn time.Duration
	err       map[domain.Provider]error
	calls     []domain.Provider
}

func newMockRefresher(store *mockCredentialStore) *mockRefresher {
	return &mockRefresher{store: store, expiresIn: 8 * time.Hour, err: map[domain.Provider]error{}}
}

func (m *mockRefresher) Refresh(
	ctx context.Context,
	provider domain.Provider,
	cred *domain.UserCredential,
) (*domain.UserCredential, error) {
	m.mu.Lock()
	m.calls = append(m.calls, provider)
	err := m.err[provider]
	m.mu.Unlock()
	if err != nil {
		return nil, &domain.RefreshError{Provider: provider, UserID: cred.UserID, Err: err}
	}

	tokens := domain.TokenSet{
		AccessToken:  "fresh-" + string(provider),
		RefreshToken: "fresh-refresh-" + string(provider),
		Expiry:       fixedNow.Add(m.expiresIn),
	}
	if err := m.store.Upsert(ctx, cred.UserID, domain.TokenUpdate(provider, tokens)); err != nil {
		return nil, &domain.RefreshError{Provider: provider, UserID: cred.UserID, Err: err}
	}
	updated := *cred
	updated.SetTokens(provider, tokens)
	return &updated, nil
}

func (m *mockRefresher) callsFor(p domain.Provider) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == p {
			n++
		}
	}
	return n
}

type fetchCall struct {
	token string
	date  string
}

// mockSource implements driven.SleepSource for testing.
type mockSource struct {
	mu         sync.Mutex
	records    map[string]*domain.SleepRecord
	errByToken map[string]error
	calls      []fetchCall
	fetchedAt  []time.Time
}

func newMockSource() *mockSource {
	return &mockSource{
		records:    make(map[string]*domain.SleepRecord),
		errByToken: make(map[string]error),
	}
}

func (m *mockSource) FetchDay(_ context.Context, accessToken, date string) (*domain.SleepRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, fetchCall{token: accessToken, date: date})
	m.fetchedAt = append(m.fetchedAt, time.Now())
	if err := m.errByToken[accessToken]; err != nil {
		return nil, &domain.FetchError{Date: date, Err: err}
	}
	return m.records[date], nil
}

func (m *mockSource) fetchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

type sentPayload struct {
	baseURL string
	token   string
	payload domain.SinkPayload
}

// mockSink implements driven.SinkClient for testing.
type mockSink struct {
	mu         sync.Mutex
	sent       []sentPayload
	errByToken map[string]error
}

func newMockSink() *mockSink {
	return &mockSink{errByToken: make(map[string]error)}
}

func (m *mockSink) Send(_ context.Context, baseURL, accessToken string, payload domain.SinkPayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errByToken[accessToken]; err != nil {
		return &domain.PublishError{ExternalID: payload.ExternalID, Status: 500, Err: err}
	}
	m.sent = append(m.sent, sentPayload{baseURL: baseURL, token: accessToken, payload: payload})
	return nil
}

// recordingPacer implements driven.Pacer, noting how many fetches had
// happened when each wait began.
type recordingPacer struct {
	mu     sync.Mutex
	source *mockSource
	waits  []int
	err    error
}

func (p *recordingPacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.source != nil {
		p.waits = append(p.waits, p.source.fetchCount())
	}
	if p.err != nil {
		return p.err
	}
	return ctx.Err()
}

// mockSchedulerStore implements driven.SchedulerStore for testing.
type mockSchedulerStore struct {
	mu       sync.RWMutex
	tasks    map[string]*domain.ScheduledTask
	results  map[string][]domain.TaskResult
	saveErr  error
	listErr  error
	getErr   error
	pruneErr error
	pruned   int
}

func newMockSchedulerStore() *mockSchedulerStore {
	return &mockSchedulerStore{
		tasks:   make(map[string]*domain.ScheduledTask),
		results: make(map[string][]domain.TaskResult),
	}
}

func (m *mockSchedulerStore) GetTask(_ context.Context, taskID string) (*domain.ScheduledTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	task, exists := m.tasks[taskID]
	if !exists {
		return nil, nil
	}
	taskCopy := *task
	return &taskCopy, nil
}

func (m *mockSchedulerStore) ListTasks(_ context.Context) ([]domain.ScheduledTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	tasks := make([]domain.ScheduledTask, 0, len(m.tasks))
	for _, t := range m.tasks {
		tasks = append(tasks, *t)
	}
	return tasks, nil
}

func (m *mockSchedulerStore) SaveTask(_ context.Context, task *domain.ScheduledTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	if task == nil {
		return domain.ErrInvalidInput
	}
	taskCopy := *task
	m.tasks[task.ID] = &taskCopy
	return nil
}

func (m *mockSchedulerStore) DeleteTask(_ context.Context, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks, taskID)
	return nil
}

func (m *mockSchedulerStore) RecordResult(_ context.Context, result *domain.TaskResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if result == nil {
		return domain.ErrInvalidInput
	}
	m.results[result.TaskID] = append(m.results[result.TaskID], *result)
	return nil
}

func (m *mockSchedulerStore) GetTaskHistory(_ context.Context, taskID string, limit int) ([]domain.TaskResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	results := m.results[taskID]
	if len(results) > limit {
		results = results[len(results)-limit:]
	}
	return results, nil
}

func (m *mockSchedulerStore) PruneHistory(_ context.Context, keep int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruned = keep
	return m.pruneErr
}

func (m *mockSchedulerStore) resultsFor(taskID string) []domain.TaskResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.TaskResult(nil), m.results[taskID]...)
}

// mockSyncOrchestrator implements driving.SyncOrchestrator for testing.
type mockSyncOrchestrator struct {
	mu        sync.Mutex
	cycles    []string
	imports   []string
	cycleErr  error
	importErr error
	block     chan struct{}
	started   chan struct{}
	outcome   domain.SyncOutcome
}

func (m *mockSyncOrchestrator) RunCycle(_ context.Context, targetUserID string) (domain.SyncOutcome, error) {
	m.mu.Lock()
	m.cycles = append(m.cycles, targetUserID)
	block, started := m.block, m.started
	m.mu.Unlock()
	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		<-block
	}
	return m.outcome, m.cycleErr
}

func (m *mockSyncOrchestrator) ImportHistory(_ context.Context, userID string, months int) (domain.ImportOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.imports = append(m.imports, userID)
	return domain.ImportOutcome{UserID: userID, Success: m.importErr == nil}, m.importErr
}

func (m *mockSyncOrchestrator) cycleCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.cycles)
}

// mockJobQueue implements driven.JobQueue for testing.
type mockJobQueue struct {
	mu      sync.Mutex
	jobs    []domain.Job
	err     error
	durable bool
}

func (m *mockJobQueue) Enqueue(_ context.Context, job domain.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.jobs = append(m.jobs, job)
	return nil
}

func (m *mockJobQueue) Durable() bool { return m.durable }

// mockAuthorizer implements driven.Authorizer for testing.
type mockAuthorizer struct {
	grant    *domain.AuthorizationGrant
	urlErr   error
	exchErr  error
	gotCode  string
	gotVerif string
	gotURI   string
}

func (m *mockAuthorizer) AuthCodeURL(provider domain.Provider, state, verifier, redirectURI string) (string, error) {
	if m.urlErr != nil {
		return "", m.urlErr
	}
	return "https://auth.example.com/" + provider.String() + "?state=" + state + "&redirect_uri=" + redirectURI, nil
}

func (m *mockAuthorizer) Exchange(_ context.Context, provider domain.Provider, code, verifier, redirectURI string) (*domain.AuthorizationGrant, error) {
	m.gotCode, m.gotVerif, m.gotURI = code, verifier, redirectURI
	if m.exchErr != nil {
		return nil, m.exchErr
	}
	g := *m.grant
	g.Provider = provider
	return &g, nil
}

// Ensure mocks implement interfaces
var (
	_ driven.CredentialStore   = (*mockCredentialStore)(nil)
	_ driven.TokenRefresher    = (*mockRefresher)(nil)
	_ driven.SleepSource       = (*mockSource)(nil)
	_ driven.SinkClient        = (*mockSink)(nil)
	_ driven.Pacer             = (*recordingPacer)(nil)
	_ driven.SchedulerStore    = (*mockSchedulerStore)(nil)
	_ driven.JobQueue          = (*mockJobQueue)(nil)
	_ driven.Authorizer        = (*mockAuthorizer)(nil)
	_ driving.SyncOrchestrator = (*mockSyncOrchestrator)(nil)
)
