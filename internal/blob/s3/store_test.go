package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metacore/internal/blob/blobtest"
	"metacore/internal/blob/core"
)

type object struct {
	body        []byte
	contentType string
	metadata    map[string]string
}

// fakeS3 answers the path-style requests the store makes for one bucket.
type fakeS3 struct {
	mu      sync.Mutex
	bucket  string
	objects map[string]object
}

func newFakeS3(bucket string) *fakeS3 {
	return &fakeS3{bucket: bucket, objects: make(map[string]object)}
}

func (f *fakeS3) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(req.URL.Path, "/")
	bucket, key, _ := strings.Cut(path, "/")
	if bucket != f.bucket {
		return respond(http.StatusNotFound, nil, "<Error><Code>NoSuchBucket</Code></Error>"), nil
	}
	if req.Method == http.MethodGet && req.URL.Query().Get("list-type") == "2" {
		return f.list(req.URL.Query().Get("prefix")), nil
	}
	switch req.Method {
	case http.MethodHead, http.MethodGet:
		obj, ok := f.objects[key]
		if !ok {
			if req.Method == http.MethodHead {
				return respond(http.StatusNotFound, nil, ""), nil
			}
			return respond(http.StatusNotFound, nil, "<Error><Code>NoSuchKey</Code><Message>missing</Message></Error>"), nil
		}
		h := http.Header{
			"Content-Length": {fmt.Sprint(len(obj.body))},
			"Content-Type":   {obj.contentType},
			"Etag":           {`"fake-etag"`},
			"Last-Modified":  {time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC).Format(http.TimeFormat)},
		}
		for k, v := range obj.metadata {
			h.Set("X-Amz-Meta-"+k, v)
		}
		if req.Method == http.MethodHead {
			return respond(http.StatusOK, h, ""), nil
		}
		return respond(http.StatusOK, h, string(obj.body)), nil
	case http.MethodPut:
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		meta := make(map[string]string)
		for name, values := range req.Header {
			if len(name) > len("X-Amz-Meta-") && strings.EqualFold(name[:len("X-Amz-Meta-")], "X-Amz-Meta-") {
				meta[strings.ToLower(name[len("X-Amz-Meta-"):])] = values[0]
			}
		}
		f.objects[key] = object{body: body, contentType: req.Header.Get("Content-Type"), metadata: meta}
		return respond(http.StatusOK, http.Header{"Etag": {`"fake-etag"`}}, ""), nil
	case http.MethodDelete:
		delete(f.objects, key)
		return respond(http.StatusNoContent, nil, ""), nil
	}
	return respond(http.StatusNotImplemented, nil, ""), nil
}

func (f *fakeS3) list(prefix string) *http.Response {
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><ListBucketResult><IsTruncated>false</IsTruncated>`)
	for _, k := range keys {
		fmt.Fprintf(&b, "<Contents><Key>%s</Key><Size>%d</Size><LastModified>2025-01-02T03:04:05Z</LastModified></Contents>", k, len(f.objects[k].body))
	}
	b.WriteString("</ListBucketResult>")
	return respond(http.StatusOK, http.Header{"Content-Type": {"application/xml"}}, b.String())
}

func respond(status int, h http.Header, body string) *http.Response {
	if h == nil {
		h = http.Header{}
	}
	return &http.Response{
		StatusCode:    status,
		Header:        h,
		Body:          io.NopCloser(bytes.NewReader([]byte(body))),
		ContentLength: int64(len(body)),
	}
}

func newTestStore(t *testing.T, prefix string) (*Store, *fakeS3) {
	t.Helper()
	fake := newFakeS3("metacore")
	s, err := New(context.Background(), Config{
		Bucket:          "metacore",
		Endpoint:        "https://s3.test.local",
		Prefix:          prefix,
		AccessKeyID:     "AKIATEST",
		SecretAccessKey: "secret",
		PathStyle:       true,
		HTTPClient:      &http.Client{Transport: fake},
	})
	require.NoError(t, err)
	return s, fake
}

func TestContract(t *testing.T) {
	s, _ := newTestStore(t, "")
	blobtest.RunContract(t, s)
}

func TestPrefixIsAppliedAndStripped(t *testing.T) {
	s, fake := newTestStore(t, "/team-a/")
	ctx := context.Background()
	_, err := s.Put(ctx, "snapshots/x.json", strings.NewReader("{}"), core.PutOptions{})
	require.NoError(t, err)

	_, stored := fake.objects["team-a/snapshots/x.json"]
	assert.True(t, stored)

	listed, err := s.List(ctx, "snapshots/")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "snapshots/x.json", listed[0].Key)
	assert.Equal(t, core.DriverS3, s.Driver())
}

func TestNewRequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.ErrorIs(t, err, ErrBucketRequired)
}
