package telegraph

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tgrab/pkg/errors"
)

const samplePage = `<html><body>
<article>
  <img src="/file/aaa.jpg">
  <p>text</p>
  <img src="https://cdn.example.com/bbb.png">
  <img src="">
  <img src="/file/aaa.jpg">
  <img src="/file/ccc.jpg">
</article>
</body></html>`

func newTestClient() *Client {
	return NewClient(5*time.Second, nil, 0, nil)
}

func TestFetchPageExtractsImagesInOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, samplePage)
	}))
	defer server.Close()

	page, err := newTestClient().FetchPage(context.Background(), server.URL+"/abc-123")
	require.NoError(t, err)

	assert.Equal(t, []byte(samplePage), page.HTML)
	require.Len(t, page.Images, 3)
	assert.Equal(t, server.URL+"/file/aaa.jpg", page.Images[0])
	assert.Equal(t, "https://cdn.example.com/bbb.png", page.Images[1])
	assert.Equal(t, server.URL+"/file/ccc.jpg", page.Images[2])
}

func TestFetchPageOrdinalsAreStable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, samplePage)
	}))
	defer server.Close()

	client := newTestClient()
	first, err := client.FetchPage(context.Background(), server.URL+"/abc-123")
	require.NoError(t, err)
	second, err := client.FetchPage(context.Background(), server.URL+"/abc-123")
	require.NoError(t, err)

	assert.Equal(t, first.Images, second.Images)
}

func TestFetchPageHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := newTestClient().FetchPage(context.Background(), server.URL+"/gone")
	require.Error(t, err)

	var herr *errors.Error
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, errors.ErrorTypeHTTP, herr.Type)
	assert.Equal(t, http.StatusNotFound, herr.Code)
}

func TestFetchPageTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse connections

	_, err := newTestClient().FetchPage(context.Background(), server.URL+"/abc")
	require.Error(t, err)

	var herr *errors.Error
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, errors.ErrorTypeTransport, herr.Type)
}

func TestDownloadStreamsBody(t *testing.T) {
	payload := "image-bytes"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, payload)
	}))
	defer server.Close()

	body, err := newTestClient().Download(context.Background(), server.URL+"/file/aaa.jpg")
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, payload, string(data))
}

func TestRetriesOnServerError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		io.WriteString(w, samplePage)
	}))
	defer server.Close()

	client := NewClient(5*time.Second, nil, 3, nil)
	_, err := client.FetchPage(context.Background(), server.URL+"/abc")
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestExtractImagesNoImages(t *testing.T) {
	base, _ := url.Parse("https://telegra.ph/empty")
	images, err := extractImages([]byte("<html><body><p>nothing</p></body></html>"), base)
	require.NoError(t, err)
	assert.Empty(t, images)
}
