// Package s3store provides an Amazon S3 implementation of the objelect
// record store, built on S3 conditional writes.
//
// S3 expresses both primitives through PutObject preconditions: If-None-Match
// with "*" is create-if-absent, If-Match with an ETag is
// replace-if-version-matches. The object's ETag is the opaque version token.
// Works against any S3-compatible backend that honors conditional writes
// (AWS S3, MinIO, and compatible object stores).
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/objelect/objelect/types"
)

// contentType of stored lease objects.
const contentType = "application/json"

// Client is the subset of the S3 API the store uses. *s3.Client satisfies
// it; tests substitute an in-memory fake.
type Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Store is an S3-backed types.Store.
type Store struct {
	client Client
	bucket string
	prefix string
}

// Compile-time assertion that Store implements types.Store.
var _ types.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithPrefix namespaces all election keys under the given object key prefix.
//
// Example:
//
//	store := s3store.New(client, "my-bucket", s3store.WithPrefix("elections"))
//	// election key "prod/scheduler" becomes object "elections/prod/scheduler"
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = strings.Trim(prefix, "/")
	}
}

// WithClient sets the S3 client. Open uses this to skip the default AWS
// config chain, e.g. for S3-compatible endpoints.
func WithClient(client Client) Option {
	return func(s *Store) {
		s.client = client
	}
}

// New creates a store on an existing client.
//
// Parameters:
//   - client: S3 API client (see Client)
//   - bucket: Bucket holding lease objects
//   - opts: Optional configuration (WithPrefix)
//
// Returns:
//   - *Store: Ready-to-use store instance
func New(client Client, bucket string, opts ...Option) *Store {
	store := &Store{client: client, bucket: bucket}
	for _, opt := range opts {
		opt(store)
	}

	return store
}

// Open creates a store using the default AWS configuration chain
// (environment, shared config, instance role) unless WithClient overrides it.
//
// Parameters:
//   - ctx: Context for config loading
//   - bucket: Bucket holding lease objects
//   - opts: Optional configuration (WithPrefix, WithClient)
//
// Returns:
//   - *Store: Ready-to-use store instance
//   - error: AWS configuration loading failure
//
// Example:
//
//	store, err := s3store.Open(ctx, "coordination-bucket",
//	    s3store.WithPrefix("elections"))
func Open(ctx context.Context, bucket string, opts ...Option) (*Store, error) {
	store := &Store{bucket: bucket}
	for _, opt := range opts {
		opt(store)
	}

	if store.client == nil {
		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		store.client = s3.NewFromConfig(cfg)
	}

	return store, nil
}

// Read implements types.Store.
func (s *Store) Read(ctx context.Context, key string) (*types.LeaseRecord, types.Version, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, types.NoVersion, nil
		}

		return nil, types.NoVersion, fmt.Errorf("%w: read %q: %w", types.ErrStoreUnavailable, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, types.NoVersion, fmt.Errorf("%w: read %q body: %w", types.ErrStoreUnavailable, key, err)
	}

	rec, err := types.DecodeLeaseRecord(data)
	if err != nil {
		return nil, types.NoVersion, err
	}

	return rec, types.Version(aws.ToString(out.ETag)), nil
}

// CreateIfAbsent implements types.Store.
func (s *Store) CreateIfAbsent(ctx context.Context, key string, record *types.LeaseRecord) (types.Version, error) {
	data, err := types.EncodeLeaseRecord(record)
	if err != nil {
		return types.NoVersion, err
	}

	out, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.objectKey(key)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		IfNoneMatch: aws.String("*"),
	})
	if err != nil {
		if isPreconditionFailure(err) {
			return types.NoVersion, fmt.Errorf("%w: key %q", types.ErrRecordExists, key)
		}

		return types.NoVersion, fmt.Errorf("%w: create %q: %w", types.ErrStoreUnavailable, key, err)
	}

	return types.Version(aws.ToString(out.ETag)), nil
}

// ReplaceIfVersionMatches implements types.Store.
func (s *Store) ReplaceIfVersionMatches(ctx context.Context, key string, record *types.LeaseRecord, version types.Version) (types.Version, error) {
	data, err := types.EncodeLeaseRecord(record)
	if err != nil {
		return types.NoVersion, err
	}

	out, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.objectKey(key)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		IfMatch:     aws.String(string(version)),
	})
	if err != nil {
		// A vanished object fails If-Match with 404; both are lost races.
		if isPreconditionFailure(err) || isNotFound(err) {
			return types.NoVersion, fmt.Errorf("%w: key %q at etag %s", types.ErrVersionMismatch, key, version)
		}

		return types.NoVersion, fmt.Errorf("%w: replace %q: %w", types.ErrStoreUnavailable, key, err)
	}

	return types.Version(aws.ToString(out.ETag)), nil
}

// objectKey maps an election key to its object key under the prefix.
func (s *Store) objectKey(key string) string {
	if s.prefix == "" {
		return key
	}

	return s.prefix + "/" + key
}

// isPreconditionFailure reports whether err is S3 rejecting a conditional
// write: 412 for a failed precondition, 409 when concurrent conditional
// requests collide mid-flight.
func isPreconditionFailure(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}

	switch apiErr.ErrorCode() {
	case "PreconditionFailed", "ConditionalRequestConflict":
		return true
	default:
		return false
	}
}

// isNotFound reports whether err is S3 signalling a missing object.
func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}

	switch apiErr.ErrorCode() {
	case "NoSuchKey", "NotFound":
		return true
	default:
		return false
	}
}
