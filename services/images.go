package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/civic-fix/api-go/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrUnsupportedImage = errors.New("unsupported image type")

// ObjectStore persists a blob under key and returns its public URL.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
}

// RawUpload is one file received from a client.
type RawUpload struct {
	Filename    string
	Size        int64
	ContentType string
	Open        func() (io.ReadCloser, error)
}

func UploadsFromFileHeaders(files []*multipart.FileHeader) []RawUpload {
	uploads := make([]RawUpload, 0, len(files))
	for _, fh := range files {
		fh := fh
		uploads = append(uploads, RawUpload{
			Filename:    fh.Filename,
			Size:        fh.Size,
			ContentType: fh.Header.Get("Content-Type"),
			Open: func() (io.ReadCloser, error) {
				return fh.Open()
			},
		})
	}
	return uploads
}

type IngestOptions struct {
	MaxFiles        int
	MaxBytesPerFile int64
	// KeyPrefix groups objects, e.g. "reports" or "repairs/completion".
	KeyPrefix string
}

type ImagePipeline struct {
	store       ObjectStore
	parallelism int
	fileTimeout time.Duration
	now         func() time.Time
	log         *zap.Logger
}

func NewImagePipeline(store ObjectStore, parallelism int, fileTimeout time.Duration, log *zap.Logger) *ImagePipeline {
	if parallelism <= 0 {
		parallelism = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ImagePipeline{
		store:       store,
		parallelism: parallelism,
		fileTimeout: fileTimeout,
		now:         time.Now,
		log:         log,
	}
}

// Ingest stores every file independently. A single file's failure lands in
// the returned UploadErrors and never cancels its siblings. The error return
// is reserved for batch-level rejection (too many files, oversize file).
func (p *ImagePipeline) Ingest(ctx context.Context, files []RawUpload, opts IngestOptions) ([]string, []*UploadError, error) {
	if len(files) == 0 {
		return []string{}, nil, nil
	}
	if opts.MaxFiles > 0 && len(files) > opts.MaxFiles {
		return nil, nil, invalid("images", fmt.Sprintf("at most %d files allowed", opts.MaxFiles))
	}
	if opts.MaxBytesPerFile > 0 {
		for _, f := range files {
			if f.Size > opts.MaxBytesPerFile {
				return nil, nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrPayloadTooLarge, f.Filename, opts.MaxBytesPerFile)
			}
		}
	}

	urls := make([]string, len(files))
	errs := make([]*UploadError, len(files))

	var g errgroup.Group
	g.SetLimit(p.parallelism)
	for i := range files {
		i := i
		g.Go(func() error {
			url, err := p.uploadOne(ctx, files[i], opts.KeyPrefix)
			if err != nil {
				metrics.ImageUploads.WithLabelValues("failed").Inc()
				p.log.Warn("image upload failed", zap.String("file", files[i].Filename), zap.Error(err))
				errs[i] = &UploadError{File: files[i].Filename, Err: err}
				return nil
			}
			metrics.ImageUploads.WithLabelValues("ok").Inc()
			urls[i] = url
			return nil
		})
	}
	_ = g.Wait()

	stored := make([]string, 0, len(files))
	var failed []*UploadError
	for i := range files {
		if errs[i] != nil {
			failed = append(failed, errs[i])
			continue
		}
		stored = append(stored, urls[i])
	}
	return stored, failed, nil
}

func (p *ImagePipeline) uploadOne(ctx context.Context, f RawUpload, prefix string) (string, error) {
	contentType := imageContentType(f)
	if contentType == "" {
		return "", ErrUnsupportedImage
	}

	if p.fileTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.fileTimeout)
		defer cancel()
	}

	body, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("open: %w", err)
	}
	defer body.Close()

	return p.store.Put(ctx, p.objectKey(prefix, f.Filename), contentType, body, f.Size)
}

func (p *ImagePipeline) objectKey(prefix, fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	if prefix == "" {
		prefix = "uploads"
	}
	return fmt.Sprintf("%s/%d_%s%s", prefix, p.now().Unix(), uuid.New().String(), ext)
}

var imageTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/webp": true,
	"image/heic": true,
	"image/gif":  true,
}

// imageContentType returns the accepted content type, or "" when the file
// is not an image we store.
func imageContentType(f RawUpload) string {
	ct := strings.ToLower(strings.TrimSpace(f.ContentType))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ct == "" || ct == "application/octet-stream" {
		ct = mime.TypeByExtension(strings.ToLower(filepath.Ext(f.Filename)))
		if i := strings.Index(ct, ";"); i >= 0 {
			ct = ct[:i]
		}
	}
	if ct == "" && strings.EqualFold(filepath.Ext(f.Filename), ".heic") {
		ct = "image/heic"
	}
	if !imageTypes[ct] {
		return ""
	}
	return ct
}
