package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveCollection_PrefersExternalID(t *testing.T) {
	c := New("http://unused.invalid", "key", 1000)
	id, err := c.ResolveCollection(context.Background(), "collection-123", "APT99")
	require.NoError(t, err)
	assert.Equal(t, "collection-123", id)
}

func TestResolveCollection_SearchesByNameWhenExternalIDBlank(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.Header.Get("x-apikey"))
		assert.Contains(t, r.URL.Path, "/intelligence/search")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"id":"resolved-collection"}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "key", 1000)
	id, err := c.ResolveCollection(context.Background(), "", "APT99")
	require.NoError(t, err)
	assert.Equal(t, "resolved-collection", id)
}

func TestResolveCollection_NoHitsReturnsErrNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "key", 1000)
	_, err := c.ResolveCollection(context.Background(), "", "NoSuchActor")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestResolveCollection_NonOKStatusWrapsErrTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, "key", 1000)
	_, err := c.ResolveCollection(context.Background(), "", "APT99")
	assert.True(t, errors.Is(err, ErrTransient))
}

func TestFetchTechniques_FollowsPaginationAndDedupes(t *testing.T) {
	mux := http.NewServeMux()
	var nextPageURL string
	mux.HandleFunc("/page2", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"links": {"next": ""},
			"data": [{"id": "rel-2", "attributes": {"external_id": "T1566"}}, {"id": "rel-3", "attributes": {"external_id": "T1059"}}]
		}`))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"links": {"next": "` + nextPageURL + `"},
			"data": [{"id": "rel-1", "attributes": {"external_id": "T1059"}}]
		}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	nextPageURL = srv.URL + "/page2"

	c := New(srv.URL, "key", 1000)
	codes, err := c.FetchTechniques(context.Background(), "collection-1")
	require.NoError(t, err)
	assert.Len(t, codes, 2)
	_, ok := codes["T1059"]
	assert.True(t, ok)
	_, ok = codes["T1566"]
	assert.True(t, ok)
}

func TestFetchTechniques_FallsBackToRelationshipIDWhenExternalIDBlank(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"links": {"next": ""}, "data": [{"id": "rel-id-only", "attributes": {"external_id": ""}}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "key", 1000)
	codes, err := c.FetchTechniques(context.Background(), "collection-1")
	require.NoError(t, err)
	_, ok := codes["rel-id-only"]
	assert.True(t, ok)
}

func TestFetchFileHashes_StopsAtLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"links": {"next": ""}, "data": [{"id": "h1"}, {"id": "h2"}, {"id": "h3"}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "key", 1000)
	hashes, err := c.FetchFileHashes(context.Background(), "collection-1", 2)
	require.NoError(t, err)
	assert.Len(t, hashes, 2)
}

func TestFetchFileMitreTree_FlattensAcrossVariants(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"data": {
				"Cuckoo Sandbox": {"tactics": [{"techniques": [{"id": "T1059"}]}]},
				"VirusTotal Jujubox": {"tactics": [{"techniques": [{"id": "T1566"}, {"id": "T1059"}]}]}
			}
		}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "key", 1000)
	codes := c.FetchFileMitreTree(context.Background(), "hash-1")
	assert.Len(t, codes, 2)
	_, ok := codes["T1059"]
	assert.True(t, ok)
	_, ok = codes["T1566"]
	assert.True(t, ok)
}

func TestFetchFileMitreTree_SwallowsTransportErrorsAsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, "key", 1000)
	codes := c.FetchFileMitreTree(context.Background(), "hash-1")
	assert.Empty(t, codes)
}
