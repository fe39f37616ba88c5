package sink

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brandseed/cargo"
	"brandseed/generator"
	"brandseed/indexstub"
)

func batchOf(index int, ids ...int64) cargo.Batch {
	b := cargo.Batch{Index: index}
	for _, id := range ids {
		b.Records = append(b.Records, generator.Brand{
			ID:          id,
			Slug:        "bodak",
			Name:        "rimel",
			Description: "Ta lo wemi sapu ro.",
			ImageURL:    generator.DefaultImageURL,
		})
	}
	return b
}

func TestHTTP_PostsJSONArray(t *testing.T) {
	var got []map[string]interface{}
	var contentType, apiKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		contentType = r.Header.Get("Content-Type")
		apiKey = r.Header.Get("X-API-Key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	h := NewHTTP(srv.URL, WithAPIKey("k-123"))
	require.NoError(t, h.Submit(context.Background(), batchOf(1, 1, 2)))

	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, "k-123", apiKey)
	require.Len(t, got, 2)
	assert.Equal(t, float64(2), got[1]["id"])
	assert.Equal(t, float64(0), got[1]["version"])
	for _, field := range []string{"slug", "name", "description", "image_url"} {
		assert.Contains(t, got[0], field)
	}
}

func TestHTTP_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, strings.Repeat("x", 2000))
	}))
	defer srv.Close()

	err := NewHTTP(srv.URL).Submit(context.Background(), batchOf(1, 1))
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadGateway, se.Code)
	assert.Len(t, se.Body, maxErrorBody)
	assert.Contains(t, se.Error(), "502")
}

func TestHTTP_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := NewHTTP(url).Submit(context.Background(), batchOf(1, 1))
	require.Error(t, err)
	var se *StatusError
	assert.False(t, errors.As(err, &se))
}

func TestHTTP_RespectsDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := NewHTTP(srv.URL).Submit(ctx, batchOf(1, 1))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHTTP_ResubmissionIsIdempotent(t *testing.T) {
	l := logrus.New()
	l.SetOutput(io.Discard)
	stub := indexstub.New(indexstub.WithLogger(logrus.NewEntry(l)))
	srv := httptest.NewServer(stub.Router())
	defer srv.Close()

	h := NewHTTP(srv.URL + "/brand/bulk-insert")
	b := batchOf(1, 1, 2, 3, 4)
	require.NoError(t, h.Submit(context.Background(), b))
	require.NoError(t, h.Submit(context.Background(), b))

	assert.Equal(t, 4, stub.Len())
	assert.Equal(t, 2, stub.Requests())
}

func TestHTTP_StubRejectsEmptyBatch(t *testing.T) {
	l := logrus.New()
	l.SetOutput(io.Discard)
	srv := httptest.NewServer(indexstub.New(indexstub.WithLogger(logrus.NewEntry(l))).Router())
	defer srv.Close()

	err := NewHTTP(srv.URL + "/brand/bulk-insert").Submit(context.Background(), cargo.Batch{Index: 1, Records: []generator.Brand{}})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.Code)
	assert.Contains(t, se.Body, "E_INVALID_ARG")
}
