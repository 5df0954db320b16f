package cli

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/custodia-labs/sleepsync/internal/core/domain"
	"github.com/custodia-labs/sleepsync/internal/core/ports/driving"
)

// mockSyncOrchestrator implements driving.SyncOrchestrator for testing.
type mockSyncOrchestrator struct {
	cycleOutcome  domain.SyncOutcome
	cycleErr      error
	importOutcome domain.ImportOutcome
	importErr     error

	cycleTarget  string
	cycleCalls   int
	importUser   string
	importMonths int
	importCalls  int
}

func (m *mockSyncOrchestrator) RunCycle(_ context.Context, target string) (domain.SyncOutcome, error) {
	m.cycleCalls++
	m.cycleTarget = target
	return m.cycleOutcome, m.cycleErr
}

func (m *mockSyncOrchestrator) ImportHistory(_ context.Context, userID string, months int) (domain.ImportOutcome, error) {
	m.importCalls++
	m.importUser = userID
	m.importMonths = months
	return m.importOutcome, m.importErr
}

// mockCredentialsService implements driving.CredentialsService for testing.
type mockCredentialsService struct {
	cred       *domain.UserCredential
	getErr     error
	connectErr error

	connectedUser string
	connectedKey  string
	connectedURL  string

	beginErr    error
	completeErr error
	accountID   string
	flow        *driving.OAuthFlowState
	gotCode     string
	gotUser     string
}

func (m *mockCredentialsService) Get(_ context.Context, _ string) (*domain.UserCredential, error) {
	return m.cred, m.getErr
}

func (m *mockCredentialsService) ConnectSink(_ context.Context, userID, apiKey, apiURL string) error {
	m.connectedUser, m.connectedKey, m.connectedURL = userID, apiKey, apiURL
	return m.connectErr
}

func (m *mockCredentialsService) BeginConnect(provider domain.Provider, redirectURI string) (*driving.OAuthFlowState, error) {
	if m.beginErr != nil {
		return nil, m.beginErr
	}
	m.flow = &driving.OAuthFlowState{
		Provider:     provider,
		AuthURL:      "https://auth.example.com/authorize?state=st-1",
		CodeVerifier: "verifier",
		State:        "st-1",
		RedirectURI:  redirectURI,
	}
	return m.flow, nil
}

func (m *mockCredentialsService) CompleteConnect(_ context.Context, flow *driving.OAuthFlowState, userID, code string) (string, error) {
	m.gotCode, m.gotUser = code, userID
	if m.completeErr != nil {
		return "", m.completeErr
	}
	if userID == "" {
		userID = m.accountID
	}
	return userID, nil
}

// mockJobSubmitter implements driving.JobSubmitter for testing.
type mockJobSubmitter struct {
	err  error
	jobs []domain.Job
}

func (m *mockJobSubmitter) Submit(_ context.Context, job domain.Job) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.jobs = append(m.jobs, job)
	return "job-1", nil
}

// mockTaskHistory implements driving.TaskHistory for testing.
type mockTaskHistory struct {
	tasks      []domain.ScheduledTask
	results    []domain.TaskResult
	tasksErr   error
	historyErr error
	limit      int
}

func (m *mockTaskHistory) Tasks(_ context.Context) ([]domain.ScheduledTask, error) {
	return m.tasks, m.tasksErr
}

func (m *mockTaskHistory) History(_ context.Context, _ string, limit int) ([]domain.TaskResult, error) {
	m.limit = limit
	return m.results, m.historyErr
}

// mockDaemon records that it ran and returns err.
type mockDaemon struct {
	err    error
	served bool
}

func (m *mockDaemon) Serve(_ context.Context) error {
	m.served = true
	return m.err
}

// withServices injects services for one test.
func withServices(t *testing.T, s Services) {
	t.Helper()
	oldSync, oldCreds, oldJobs, oldHistory, oldDaemon := syncOrchestrator, credentialsService, jobSubmitter, taskHistory, daemon
	oldBootstrap, oldCfg := bootstrap, cfg
	syncOrchestrator = s.Sync
	credentialsService = s.Credentials
	jobSubmitter = s.Jobs
	taskHistory = s.History
	daemon = s.Daemon
	bootstrap = nil
	cfg = nil
	t.Cleanup(func() {
		syncOrchestrator, credentialsService, jobSubmitter, taskHistory, daemon = oldSync, oldCreds, oldJobs, oldHistory, oldDaemon
		bootstrap, cfg = oldBootstrap, oldCfg
	})
}

// execute runs the root command with args and returns combined output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}

// resetFlags clears flag state left by earlier executions.
func resetFlags() {
	sinkAPIKey, sinkAPIURL = "", ""
	statusLimit = 5
	configPath, verbose = "", false
	for _, name := range []string{"api-key", "api-url"} {
		credentialsSinkCmd.Flags().Lookup(name).Changed = false
	}
	statusCmd.Flags().Lookup("limit").Changed = false
	connectNoBrowser, connectTimeout, connectRedirectURI = false, 5*time.Minute, ""
	for _, name := range []string{"no-browser", "timeout", "redirect-uri"} {
		credentialsConnectCmd.Flags().Lookup(name).Changed = false
	}
}

var testTime = time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)
