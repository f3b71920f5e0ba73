// Package gzippedhttp provides HTTP middlewares that accept gzip-compressed
// JSON request bodies and compress responses for clients that ask for it.
package gzippedhttp

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"
)

// CompressedReader wraps a request body and decompresses it.
type CompressedReader struct {
	r  io.ReadCloser
	zr *gzip.Reader
}

// NewCompressedReader returns a CompressedReader reading gzip data from requestBody.
func NewCompressedReader(requestBody io.ReadCloser) (*CompressedReader, error) {
	zippedRequestBody, err := gzip.NewReader(requestBody)
	if err != nil {
		return nil, err
	}

	return &CompressedReader{
		r:  requestBody,
		zr: zippedRequestBody,
	}, nil
}

func (c *CompressedReader) Read(p []byte) (n int, err error) {
	return c.zr.Read(p)
}

// Close closes both the gzip reader and the underlying body.
func (c *CompressedReader) Close() error {
	if err := c.r.Close(); err != nil {
		return err
	}
	return c.zr.Close()
}

// CompressedResponseWriter compresses the body of successful responses.
// Error responses are written uncompressed.
type CompressedResponseWriter struct {
	w           http.ResponseWriter
	zw          *gzip.Writer
	compressing bool
	wroteHeader bool
}

// NewCompressedResponseWriter wraps w.
func NewCompressedResponseWriter(w http.ResponseWriter) *CompressedResponseWriter {
	return &CompressedResponseWriter{
		w: w,
	}
}

func (c *CompressedResponseWriter) WriteHeader(statusCode int) {
	if c.wroteHeader {
		return
	}
	c.wroteHeader = true

	if statusCode < 300 {
		c.zw = gzipWriterPool.Get().(*gzip.Writer)
		c.zw.Reset(c.w)
		c.compressing = true
		c.w.Header().Set("Content-Encoding", "gzip")
		c.w.Header().Del("Content-Length")
	}
	c.w.WriteHeader(statusCode)
}

func (c *CompressedResponseWriter) Write(p []byte) (int, error) {
	if !c.wroteHeader {
		c.WriteHeader(http.StatusOK)
	}
	if c.compressing {
		return c.zw.Write(p)
	}
	return c.w.Write(p)
}

func (c *CompressedResponseWriter) Header() http.Header {
	return c.w.Header()
}

// Close flushes the gzip stream and returns the writer to the pool.
func (c *CompressedResponseWriter) Close() error {
	if !c.compressing {
		return nil
	}
	err := c.zw.Close()
	gzipWriterPool.Put(c.zw)
	c.compressing = false

	return err
}

var gzipWriterPool = sync.Pool{
	New: func() interface{} {
		w, _ := gzip.NewWriterLevel(nil, gzip.BestSpeed)
		return w
	},
}

// GzipResponse compresses responses for clients sending "Accept-Encoding: gzip".
func GzipResponse(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		response.Header().Add("Vary", "Accept-Encoding")

		if !strings.Contains(request.Header.Get("Accept-Encoding"), "gzip") {
			h.ServeHTTP(response, request)
			return
		}

		compressed := NewCompressedResponseWriter(response)
		defer compressed.Close()

		h.ServeHTTP(compressed, request)
	}

	return http.HandlerFunc(middleware)
}

// UngzipRequest replaces a "Content-Encoding: gzip" request body with its
// decompressed stream. A body that is not valid gzip is rejected with 400.
func UngzipRequest(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		if !strings.Contains(request.Header.Get("Content-Encoding"), "gzip") {
			h.ServeHTTP(response, request)
			return
		}

		requestBodyWithCompression, err := NewCompressedReader(request.Body)
		if err != nil {
			response.WriteHeader(http.StatusBadRequest)
			return
		}
		request.Body = requestBodyWithCompression
		request.Header.Del("Content-Encoding")
		defer requestBodyWithCompression.Close()

		h.ServeHTTP(response, request)
	}

	return http.HandlerFunc(middleware)
}
