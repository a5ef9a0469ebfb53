package graph_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/credwatch/internal/adapter/driven/graph"
	"github.com/ericfisherdev/credwatch/internal/domain/model"
)

type staticTokenSource struct {
	token string
	err   error
}

func (s staticTokenSource) AccessToken(_ context.Context) (string, error) {
	return s.token, s.err
}

// newTestClient creates a Client backed by the given httptest handler.
func newTestClient(t *testing.T, handler http.Handler, maxPages int) (*graph.Client, *httptest.Server) {
	t.Helper()

	server := httptest.NewTLSServer(handler)
	t.Cleanup(server.Close)

	client, err := graph.NewClient(staticTokenSource{token: "test-token"}, graph.Options{
		BaseURL:    server.URL + "/v1.0",
		MaxPages:   maxPages,
		HTTPClient: server.Client(),
	})
	require.NoError(t, err)

	return client, server
}

func writeBody(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestFetchApplications_SinglePage(t *testing.T) {
	var gotAuth, gotSelect string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotSelect = r.URL.Query().Get("$select")
		require.Equal(t, "/v1.0/applications", r.URL.Path)

		writeBody(w, http.StatusOK, `{"value":[
			{"id":"obj-1","appId":"11111111-1111-1111-1111-111111111111","displayName":"Foo","notes":"Owned by **payments**"},
			{"id":"obj-2","appId":"22222222-2222-2222-2222-222222222222","displayName":"Bar"}
		]}`)
	})

	client, _ := newTestClient(t, handler, 0)
	apps, err := client.FetchApplications(context.Background())

	require.NoError(t, err)
	require.Len(t, apps, 2)
	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.Contains(t, gotSelect, "displayName")

	assert.Equal(t, "obj-1", apps[0].ID)
	assert.Equal(t, "11111111-1111-1111-1111-111111111111", apps[0].AppID)
	assert.Equal(t, "Foo", apps[0].DisplayName)
	assert.Equal(t, "Owned by **payments**", apps[0].Notes)
	assert.NotNil(t, apps[0].Secrets)
	assert.NotNil(t, apps[0].Certificates)

	assert.Equal(t, "Bar", apps[1].DisplayName)
	assert.Equal(t, "", apps[1].Notes)
}

func TestFetchApplications_FollowsNextLink(t *testing.T) {
	var server *httptest.Server
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("$skiptoken") == "page2" {
			writeBody(w, http.StatusOK, `{"value":[{"id":"obj-2","displayName":"Second"}]}`)
			return
		}
		writeBody(w, http.StatusOK, fmt.Sprintf(
			`{"@odata.nextLink":"%s/v1.0/applications?$skiptoken=page2","value":[{"id":"obj-1","displayName":"First"}]}`,
			server.URL,
		))
	})

	client, srv := newTestClient(t, handler, 0)
	server = srv

	apps, err := client.FetchApplications(context.Background())
	require.NoError(t, err)
	require.Len(t, apps, 2)
	assert.Equal(t, "First", apps[0].DisplayName)
	assert.Equal(t, "Second", apps[1].DisplayName)
}

func TestFetchApplications_StopsAtPageLimit(t *testing.T) {
	var server *httptest.Server
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		writeBody(w, http.StatusOK, fmt.Sprintf(
			`{"@odata.nextLink":"%s/v1.0/applications?$skiptoken=more","value":[{"id":"obj-%d","displayName":"App"}]}`,
			server.URL, calls,
		))
	})

	client, srv := newTestClient(t, handler, 1)
	server = srv

	apps, err := client.FetchApplications(context.Background())
	require.NoError(t, err)
	assert.Len(t, apps, 1)
	assert.Equal(t, 1, calls)
}

func TestFetchApplications_Error(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeBody(w, http.StatusForbidden, `{"error":{"code":"Authorization_RequestDenied","message":"Insufficient privileges"}}`)
	})

	client, _ := newTestClient(t, handler, 0)
	_, err := client.FetchApplications(context.Background())
	assert.Error(t, err)
}

func TestFetchSecrets(t *testing.T) {
	var gotPath, gotSelect string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotSelect = r.URL.Query().Get("$select")
		writeBody(w, http.StatusOK, `{"id":"obj-1","passwordCredentials":[
			{"keyId":"aaaaaaaa-0000-0000-0000-000000000001","displayName":"ci-secret","hint":"abc","startDateTime":"2025-01-01T00:00:00Z","endDateTime":"2026-06-01T00:00:00Z"},
			{"keyId":"aaaaaaaa-0000-0000-0000-000000000002","displayName":"old-secret","endDateTime":"2025-06-01T00:00:00Z"}
		]}`)
	})

	client, _ := newTestClient(t, handler, 0)
	creds, err := client.FetchSecrets(context.Background(), "obj-1")

	require.NoError(t, err)
	assert.Equal(t, "/v1.0/applications/obj-1", gotPath)
	assert.Contains(t, gotSelect, "passwordCredentials")
	require.Len(t, creds, 2)

	assert.Equal(t, "aaaaaaaa-0000-0000-0000-000000000001", creds[0].KeyID)
	assert.Equal(t, "ci-secret", creds[0].DisplayName)
	assert.Equal(t, "abc", creds[0].Hint)
	assert.Equal(t, model.CredentialSecret, creds[0].Kind)
	assert.True(t, creds[0].EndDateTime.Equal(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, creds[0].StartDateTime.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))

	assert.Equal(t, "old-secret", creds[1].DisplayName)
	assert.True(t, creds[1].StartDateTime.IsZero())
}

func TestFetchSecrets_MissingCollectionIsEmpty(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeBody(w, http.StatusOK, `{"id":"obj-1"}`)
	})

	client, _ := newTestClient(t, handler, 0)
	creds, err := client.FetchSecrets(context.Background(), "obj-1")

	require.NoError(t, err)
	assert.NotNil(t, creds)
	assert.Empty(t, creds)
}

func TestFetchCertificates(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Query().Get("$select"), "keyCredentials")
		writeBody(w, http.StatusOK, `{"id":"obj-1","keyCredentials":[
			{"keyId":"bbbbbbbb-0000-0000-0000-000000000001","displayName":"CN=foo","type":"AsymmetricX509Cert","usage":"Verify","endDateTime":"2027-01-01T00:00:00Z"}
		]}`)
	})

	client, _ := newTestClient(t, handler, 0)
	creds, err := client.FetchCertificates(context.Background(), "obj-1")

	require.NoError(t, err)
	require.Len(t, creds, 1)
	assert.Equal(t, "bbbbbbbb-0000-0000-0000-000000000001", creds[0].KeyID)
	assert.Equal(t, "CN=foo", creds[0].DisplayName)
	assert.Equal(t, model.CredentialCertificate, creds[0].Kind)
	assert.True(t, creds[0].EndDateTime.Equal(time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestFetchCertificates_NotFound(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeBody(w, http.StatusNotFound, `{"error":{"code":"Request_ResourceNotFound","message":"Resource does not exist"}}`)
	})

	client, _ := newTestClient(t, handler, 0)
	_, err := client.FetchCertificates(context.Background(), "missing")
	assert.Error(t, err)
}

func TestTokenSourceErrorFailsRequest(t *testing.T) {
	var called bool
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		writeBody(w, http.StatusOK, `{"value":[]}`)
	}))
	t.Cleanup(server.Close)

	client, err := graph.NewClient(staticTokenSource{err: errors.New("no token")}, graph.Options{
		BaseURL:    server.URL + "/v1.0",
		HTTPClient: server.Client(),
	})
	require.NoError(t, err)

	_, err = client.FetchApplications(context.Background())
	assert.Error(t, err)
	assert.False(t, called, "request must not be sent without a token")
}

func TestResetCache_DropsCachedResponses(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := hits.Add(1)
		w.Header().Set("Cache-Control", "private, max-age=3600")
		writeBody(w, http.StatusOK, fmt.Sprintf(`{"value":[{"id":"obj-%d","displayName":"Foo"}]}`, n))
	}))
	t.Cleanup(server.Close)

	client, err := graph.NewClient(staticTokenSource{token: "test-token"}, graph.Options{
		BaseURL:   server.URL + "/v1.0",
		Transport: server.Client().Transport,
	})
	require.NoError(t, err)

	first, err := client.FetchApplications(context.Background())
	require.NoError(t, err)
	cached, err := client.FetchApplications(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load(), "second listing should be served from cache")
	assert.Equal(t, first, cached)

	client.ResetCache()

	fresh, err := client.FetchApplications(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
	require.Len(t, fresh, 1)
	assert.Equal(t, "obj-2", fresh[0].ID)
}

func TestResetCache_NoopWithCustomHTTPClient(t *testing.T) {
	client, _ := newTestClient(t, http.NotFoundHandler(), 0)
	assert.NotPanics(t, client.ResetCache)
}
