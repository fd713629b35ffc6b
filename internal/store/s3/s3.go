// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package s3 stores cache partitions in an S3 bucket. Each partition is a key
// prefix holding a marker object plus one JSON object per entry.
package s3

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/apex/log"
	"github.com/aws/aws-sdk-go-v2/aws"
	s3v2 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/staranto/shellcache/internal/store"
)

const markerName = ".partition"

// API is the subset of *s3.Client used here.
type API interface {
	GetObject(ctx context.Context, in *s3v2.GetObjectInput, optFns ...func(*s3v2.Options)) (*s3v2.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3v2.PutObjectInput, optFns ...func(*s3v2.Options)) (*s3v2.PutObjectOutput, error)
	HeadObject(ctx context.Context, in *s3v2.HeadObjectInput, optFns ...func(*s3v2.Options)) (*s3v2.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3v2.DeleteObjectInput, optFns ...func(*s3v2.Options)) (*s3v2.DeleteObjectOutput, error)
	s3v2.ListObjectsV2APIClient
}

// Storage is a store.Storage backed by bucket/prefix.
type Storage struct {
	api    API
	bucket string
	prefix string
}

// New returns a Storage. prefix may be empty.
func New(api API, bucket, prefix string) (*Storage, error) {
	if bucket == "" {
		return nil, errors.New("s3 bucket is not set")
	}
	return &Storage{api: api, bucket: bucket, prefix: strings.Trim(prefix, "/")}, nil
}

func (s *Storage) key(parts ...string) string {
	all := make([]string, 0, len(parts)+1)
	if s.prefix != "" {
		all = append(all, s.prefix)
	}
	all = append(all, parts...)
	return strings.Join(all, "/")
}

// Open implements store.Storage.
func (s *Storage) Open(ctx context.Context, name string) (store.Partition, error) {
	if name == "" || strings.Contains(name, "/") {
		return nil, fmt.Errorf("invalid partition name %q", name)
	}
	has, err := s.Has(ctx, name)
	if err != nil {
		return nil, err
	}
	if !has {
		_, err := s.api.PutObject(ctx, &s3v2.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.key(name, markerName)),
			Body:   bytes.NewReader(nil),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create partition %s: %w", name, err)
		}
	}
	return &Partition{s: s, name: name}, nil
}

// Delete implements store.Storage.
func (s *Storage) Delete(ctx context.Context, name string) (bool, error) {
	has, err := s.Has(ctx, name)
	if err != nil {
		return false, err
	}

	// Remove the marker first so a half-finished delete reads as gone.
	if err := s.deleteObject(ctx, s.key(name, markerName)); err != nil {
		return has, err
	}
	objects, err := s.list(ctx, s.key(name)+"/")
	if err != nil {
		return has, err
	}
	for _, k := range objects {
		if err := s.deleteObject(ctx, k); err != nil {
			return has, err
		}
	}
	log.Debugf("removed partition s3://%s/%s (%d objects)", s.bucket, s.key(name), len(objects))
	return has, nil
}

// Has implements store.Storage.
func (s *Storage) Has(ctx context.Context, name string) (bool, error) {
	_, err := s.api.HeadObject(ctx, &s3v2.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name, markerName)),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to check partition %s: %w", name, err)
}

// Names implements store.Storage.
func (s *Storage) Names(ctx context.Context) ([]string, error) {
	prefix := ""
	if s.prefix != "" {
		prefix = s.prefix + "/"
	}
	p := s3v2.NewListObjectsV2Paginator(s.api, &s3v2.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})

	var names []string
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list partitions: %w", err)
		}
		for _, cp := range page.CommonPrefixes {
			n := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), prefix), "/")
			if n != "" {
				names = append(names, n)
			}
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *Storage) list(ctx context.Context, prefix string) ([]string, error) {
	p := s3v2.NewListObjectsV2Paginator(s.api, &s3v2.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	var keys []string
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list s3://%s/%s: %w", s.bucket, prefix, err)
		}
		for _, o := range page.Contents {
			keys = append(keys, aws.ToString(o.Key))
		}
	}
	return keys, nil
}

func (s *Storage) deleteObject(ctx context.Context, key string) error {
	_, err := s.api.DeleteObject(ctx, &s3v2.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete s3://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}

// Partition is one key prefix in the bucket.
type Partition struct {
	s    *Storage
	name string
}

// Name implements store.Partition.
func (p *Partition) Name() string { return p.name }

func (p *Partition) objectKey(url string) string {
	return p.s.key(p.name, base64.RawURLEncoding.EncodeToString([]byte(url)))
}

// Match implements store.Partition.
func (p *Partition) Match(ctx context.Context, url string) (*store.Response, error) {
	out, err := p.s.api.GetObject(ctx, &s3v2.GetObjectInput{
		Bucket: aws.String(p.s.bucket),
		Key:    aws.String(p.objectKey(url)),
	})
	if isNotFound(err) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get S3 object: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read S3 object body: %w", err)
	}
	var resp store.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode cache entry %s: %w", url, err)
	}
	return &resp, nil
}

// Put implements store.Partition.
func (p *Partition) Put(ctx context.Context, url string, resp *store.Response) error {
	stored := resp.Clone()
	stored.URL = url
	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	_, err = p.s.api.PutObject(ctx, &s3v2.PutObjectInput{
		Bucket:      aws.String(p.s.bucket),
		Key:         aws.String(p.objectKey(url)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to put S3 object: %w", err)
	}
	return nil
}

// Delete implements store.Partition.
func (p *Partition) Delete(ctx context.Context, url string) (bool, error) {
	key := p.objectKey(url)
	_, err := p.s.api.HeadObject(ctx, &s3v2.HeadObjectInput{
		Bucket: aws.String(p.s.bucket),
		Key:    aws.String(key),
	})
	if isNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check S3 object: %w", err)
	}
	if err := p.s.deleteObject(ctx, key); err != nil {
		return false, err
	}
	return true, nil
}

// Keys implements store.Partition. URLs are recovered from the object names.
func (p *Partition) Keys(ctx context.Context) ([]string, error) {
	prefix := p.s.key(p.name) + "/"
	objects, err := p.s.list(ctx, prefix)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(objects))
	for _, o := range objects {
		name := strings.TrimPrefix(o, prefix)
		if name == markerName || strings.Contains(name, "/") {
			continue
		}
		url, err := base64.RawURLEncoding.DecodeString(name)
		if err != nil {
			log.Warnf("skipping foreign object %s", o)
			continue
		}
		keys = append(keys, string(url))
	}
	sort.Strings(keys)
	return keys, nil
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	return errors.As(err, &nsk) || errors.As(err, &nf)
}
