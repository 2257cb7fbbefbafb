package s3

import (
	"bufio"
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const mockBucket = "mock-bucket"

// NewMockForTests returns a Store whose client talks to an in-process fake
// bucket. The fake answers ListObjectsV2 (prefix, max-keys, continuation),
// HeadObject, GetObject and PutObject.
func NewMockForTests() *Store { return newMockStore(1000) }

// newMockStore caps each ListObjectsV2 page at pageSize keys.
func newMockStore(pageSize int) *Store {
	fake := &fakeBucket{objects: make(map[string]fakeObject), pageSize: pageSize, modified: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	cfg, _ := config.LoadDefaultConfig(context.Background(),
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("AKIA", "SECRET", "")),
	)
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.HTTPClient = &http.Client{Transport: fake}
		o.UsePathStyle = true
		o.BaseEndpoint = aws.String("https://mock.s3.local")
	})
	return &Store{client: client, bucket: mockBucket}
}

type fakeObject struct {
	body        []byte
	contentType string
	metadata    map[string]string
}

type fakeBucket struct {
	mu       sync.RWMutex
	objects  map[string]fakeObject
	pageSize int
	modified time.Time
}

func (b *fakeBucket) RoundTrip(req *http.Request) (*http.Response, error) {
	// Path-style: /<bucket>/<key>.
	_, key, _ := strings.Cut(strings.TrimPrefix(req.URL.Path, "/"), "/")
	q := req.URL.Query()
	switch {
	case req.Method == http.MethodGet && q.Get("list-type") == "2":
		return b.list(q.Get("prefix"), q.Get("max-keys"), q.Get("continuation-token"))
	case req.Method == http.MethodHead:
		return b.head(key), nil
	case req.Method == http.MethodGet:
		return b.get(key), nil
	case req.Method == http.MethodPut:
		return b.put(key, req)
	}
	return reply(http.StatusNotImplemented, nil, nil), nil
}

type listResult struct {
	XMLName               xml.Name      `xml:"ListBucketResult"`
	Name                  string        `xml:"Name"`
	Prefix                string        `xml:"Prefix"`
	KeyCount              int           `xml:"KeyCount"`
	IsTruncated           bool          `xml:"IsTruncated"`
	NextContinuationToken string        `xml:"NextContinuationToken,omitempty"`
	Contents              []listContent `xml:"Contents"`
}

type listContent struct {
	Key          string `xml:"Key"`
	Size         int    `xml:"Size"`
	LastModified string `xml:"LastModified"`
}

// list pages through keys under prefix in lexical order. The continuation
// token is the last key of the previous page.
func (b *fakeBucket) list(prefix, maxKeys, after string) (*http.Response, error) {
	limit := b.pageSize
	if n, err := strconv.Atoi(maxKeys); err == nil && n > 0 && n < limit {
		limit = n
	}
	b.mu.RLock()
	keys := make([]string, 0, len(b.objects))
	for k := range b.objects {
		if strings.HasPrefix(k, prefix) && k > after {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	res := listResult{Name: mockBucket, Prefix: prefix}
	if len(keys) > limit {
		keys = keys[:limit]
		res.IsTruncated = true
		res.NextContinuationToken = keys[len(keys)-1]
	}
	for _, k := range keys {
		res.Contents = append(res.Contents, listContent{Key: k, Size: len(b.objects[k].body), LastModified: b.modified.Format(time.RFC3339)})
	}
	b.mu.RUnlock()
	res.KeyCount = len(res.Contents)
	payload, err := xml.Marshal(res)
	if err != nil {
		return nil, err
	}
	return reply(http.StatusOK, http.Header{"Content-Type": {"application/xml"}}, payload), nil
}

func (b *fakeBucket) head(key string) *http.Response {
	obj, ok := b.lookup(key)
	if !ok {
		return reply(http.StatusNotFound, nil, nil)
	}
	return reply(http.StatusOK, b.objectHeader(obj), nil)
}

func (b *fakeBucket) get(key string) *http.Response {
	obj, ok := b.lookup(key)
	if !ok {
		return reply(http.StatusNotFound, nil, nil)
	}
	return reply(http.StatusOK, b.objectHeader(obj), obj.body)
}

// put stores the first write of a key; later writes are ignored because the
// Store checks for existence before it puts.
func (b *fakeBucket) put(key string, req *http.Request) (*http.Response, error) {
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}
	if decoded, ok := decodeAWSChunked(body); ok {
		body = decoded
	}
	md := make(map[string]string)
	for name, values := range req.Header {
		if k, ok := strings.CutPrefix(strings.ToLower(name), "x-amz-meta-"); ok && len(values) > 0 {
			md[k] = values[0]
		}
	}
	b.mu.Lock()
	if _, exists := b.objects[key]; !exists {
		b.objects[key] = fakeObject{body: body, contentType: req.Header.Get("Content-Type"), metadata: md}
	}
	b.mu.Unlock()
	return reply(http.StatusOK, http.Header{"ETag": {`"etag"`}}, nil), nil
}

func (b *fakeBucket) lookup(key string) (fakeObject, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	obj, ok := b.objects[key]
	return obj, ok
}

func (b *fakeBucket) objectHeader(obj fakeObject) http.Header {
	h := http.Header{
		"Content-Length": {strconv.Itoa(len(obj.body))},
		"Content-Type":   {obj.contentType},
		"ETag":           {`"etag"`},
		"Last-Modified":  {b.modified.Format(http.TimeFormat)},
	}
	for k, v := range obj.metadata {
		h.Set("X-Amz-Meta-"+k, v)
	}
	return h
}

func reply(status int, header http.Header, body []byte) *http.Response {
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{StatusCode: status, Header: header, Body: io.NopCloser(bytes.NewReader(body)), ContentLength: int64(len(body))}
}

// decodeAWSChunked strips aws-chunked framing:
// <hex>[;ext]\r\n<data>\r\n ... 0[;ext]\r\n[trailers]\r\n
// It reports false when b is not framed that way.
func decodeAWSChunked(b []byte) ([]byte, bool) {
	r := bufio.NewReader(bytes.NewReader(b))
	var out bytes.Buffer
	for {
		line, err := r.ReadString('\n')
		if err != nil || !strings.HasSuffix(line, "\r\n") {
			return nil, false
		}
		sizeHex, _, _ := strings.Cut(strings.TrimSuffix(line, "\r\n"), ";")
		size, err := strconv.ParseInt(sizeHex, 16, 64)
		if err != nil || size < 0 {
			return nil, false
		}
		if size == 0 {
			// Trailers (checksums) follow the final chunk and are dropped.
			return out.Bytes(), true
		}
		if _, err := io.CopyN(&out, r, size); err != nil {
			return nil, false
		}
		crlf := make([]byte, 2)
		if _, err := io.ReadFull(r, crlf); err != nil || string(crlf) != "\r\n" {
			return nil, false
		}
	}
}
