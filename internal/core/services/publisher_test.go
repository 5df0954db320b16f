package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sleepsync/internal/core/domain"
)

func newTestPublisher(creds ...domain.UserCredential) (*SinkPublisher, *mockRefresher, *mockSink, *mockCredentialStore) {
	store := newMockCredentialStore(creds...)
	refresher := newMockRefresher(store)
	sink := newMockSink()
	p := NewSinkPublisher(refresher, sink, nil)
	p.now = func() time.Time { return fixedNow }
	return p, refresher, sink, store
}

func TestSinkPublisher_UsesConfiguredBaseURL(t *testing.T) {
	cred := connectedUser("u1")
	cred.SinkAPIURL = "https://sink.example.com/"
	p, refresher, sink, _ := newTestPublisher(cred)

	err := p.Publish(context.Background(), &cred, Transform("u1", sampleRecord()))

	require.NoError(t, err)
	assert.Empty(t, refresher.calls)
	require.Len(t, sink.sent, 1)
	assert.Equal(t, "https://sink.example.com", sink.sent[0].baseURL)
}

func TestSinkPublisher_RefreshesExpiredToken(t *testing.T) {
	cred := connectedUser("u1")
	cred.SinkRefreshToken = "r"
	cred.SinkTokenExpiry = fixedNow
	p, refresher, sink, store := newTestPublisher(cred)

	err := p.Publish(context.Background(), &cred, Transform("u1", sampleRecord()))

	require.NoError(t, err)
	assert.Equal(t, 1, refresher.callsFor(domain.ProviderSink))
	assert.Equal(t, "fresh-sink", sink.sent[0].token)
	assert.Equal(t, "fresh-sink", cred.SinkAccessToken)
	assert.Equal(t, "fresh-sink", store.get("u1").SinkAccessToken)
}

func TestSinkPublisher_RefreshFailure(t *testing.T) {
	cred := connectedUser("u1")
	cred.SinkTokenExpiry = fixedNow.Add(-time.Hour)
	p, refresher, sink, _ := newTestPublisher(cred)
	refresher.err[domain.ProviderSink] = errors.New("invalid_client")

	err := p.Publish(context.Background(), &cred, Transform("u1", sampleRecord()))

	var re *domain.RefreshError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, domain.ProviderSink, re.Provider)
	assert.Empty(t, sink.sent)
}

func TestSinkPublisher_NotConnected(t *testing.T) {
	cred := connectedUser("u1")
	cred.SinkAccessToken = ""
	p, _, sink, _ := newTestPublisher(cred)

	err := p.Publish(context.Background(), &cred, Transform("u1", sampleRecord()))

	var pe *domain.PublishError
	require.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, err, domain.ErrSinkNotConnected)
	assert.Equal(t, "u1", pe.UserID)
	assert.Empty(t, sink.sent)
}

func TestSinkPublisher_RejectionCarriesUser(t *testing.T) {
	cred := connectedUser("u1")
	p, _, sink, _ := newTestPublisher(cred)
	sink.errByToken["sink-u1"] = errors.New("boom")

	err := p.Publish(context.Background(), &cred, Transform("u1", sampleRecord()))

	var pe *domain.PublishError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "u1", pe.UserID)
	assert.Equal(t, 500, pe.Status)
}
