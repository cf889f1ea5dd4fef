// Copyright File Registry Authors
// SPDX-License-Identifier: Apache-2.0

package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/leseb/fileregistry/pkg/core/registry"
	"github.com/leseb/fileregistry/pkg/events"
)

func init() {
	events.Journals.Register("s3", func(ctx context.Context, params map[string]string) (events.Journal, error) {
		return New(ctx, Options{
			Bucket:   params["bucket"],
			Region:   params["region"],
			Prefix:   params["prefix"],
			Endpoint: params["endpoint"],
		})
	})
}

// compile-time check
var _ events.Journal = (*Journal)(nil)

// idWidth is the zero-padded width of the id in object keys, wide enough
// for any uint64 so that lexical key order is numeric order.
const idWidth = 20

// Options configures the S3 backend.
type Options struct {
	Bucket   string // required
	Region   string // e.g. "us-east-1"
	Prefix   string // key prefix, e.g. "registry/"
	Endpoint string // custom endpoint for MinIO compatibility
}

// Journal implements events.Journal backed by S3 (or MinIO).
//
// Object layout:
//
//	<prefix>events/<zero-padded id>.json
type Journal struct {
	client *s3.Client
	bucket string
	prefix string
}

// New creates an S3-backed Journal.
func New(ctx context.Context, opts Options) (*Journal, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 journal: bucket is required")
	}

	optFns := []func(*awsconfig.LoadOptions) error{}
	if opts.Region != "" {
		optFns = append(optFns, awsconfig.WithRegion(opts.Region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	s3Opts := []func(*s3.Options){}
	if opts.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true // required for MinIO
		})
	}

	return &Journal{
		client: s3.NewFromConfig(cfg, s3Opts...),
		bucket: opts.Bucket,
		prefix: opts.Prefix,
	}, nil
}

func (j *Journal) eventsPrefix() string {
	return j.prefix + "events/"
}

func (j *Journal) eventKey(id uint64) string {
	return fmt.Sprintf("%s%0*d.json", j.eventsPrefix(), idWidth, id)
}

// idFromKey parses the id out of an event key.
func (j *Journal) idFromKey(key string) (uint64, bool) {
	name := strings.TrimPrefix(key, j.eventsPrefix())
	name, ok := strings.CutSuffix(name, ".json")
	if !ok || len(name) != idWidth {
		return 0, false
	}
	id, err := strconv.ParseUint(name, 10, 64)
	return id, err == nil
}

// Append uploads ev as its own object.
func (j *Journal) Append(ctx context.Context, ev registry.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	_, err = j.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(j.bucket),
		Key:         aws.String(j.eventKey(ev.ID)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put event %d: %w", ev.ID, err)
	}
	return nil
}

// Since lists event objects after afterID in key order and reads each one.
func (j *Journal) Since(ctx context.Context, afterID uint64) ([]registry.Event, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(j.bucket),
		Prefix: aws.String(j.eventsPrefix()),
	}
	if afterID > 0 {
		input.StartAfter = aws.String(j.eventKey(afterID))
	}

	out := []registry.Event{}
	paginator := s3.NewListObjectsV2Paginator(j.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list events: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if id, ok := j.idFromKey(key); !ok || id <= afterID {
				continue
			}
			ev, err := j.readEvent(ctx, key)
			if err != nil {
				return nil, err
			}
			out = append(out, ev)
		}
	}
	return out, nil
}

func (j *Journal) readEvent(ctx context.Context, key string) (registry.Event, error) {
	obj, err := j.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(j.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return registry.Event{}, fmt.Errorf("event %s vanished during replay: %w", key, err)
		}
		return registry.Event{}, fmt.Errorf("get event %s: %w", key, err)
	}
	defer obj.Body.Close()

	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return registry.Event{}, fmt.Errorf("read event body: %w", err)
	}
	var ev registry.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return registry.Event{}, fmt.Errorf("unmarshal event %s: %w", key, err)
	}
	return ev, nil
}

// Close is a no-op for S3 (the HTTP client is managed by the SDK).
func (j *Journal) Close(_ context.Context) error {
	return nil
}

// isNotFound checks if an S3 error is a 404 / NoSuchKey.
func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *s3types.NotFound
	return errors.As(err, &nf)
}
