package blobstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
	"gocloud.dev/gcerrors"

	"github.com/grand-thief-cash/procflow/infra/application/components/logging"
	"github.com/grand-thief-cash/procflow/infra/application/consts"
	"github.com/grand-thief-cash/procflow/infra/application/core"
)

var ErrNotFound = errors.New("blob not found")

// Component stores opaque byte payloads in a gocloud.dev bucket.
type Component struct {
	*core.BaseComponent
	Logger core.Component `infra:"dep:logging?"`

	cfg *Config

	mu     sync.RWMutex
	bucket *blob.Bucket
}

func NewComponent(cfg *Config) *Component {
	return &Component{
		BaseComponent: core.NewBaseComponent(consts.COMPONENT_BLOB_STORE),
		cfg:           cfg,
	}
}

// NewWithBucket wraps an opened bucket, used by tests with memblob.
func NewWithBucket(b *blob.Bucket) *Component {
	c := NewComponent(&Config{Enabled: true})
	c.bucket = b
	c.SetActive(true)
	return c
}

func (c *Component) Start(ctx context.Context) error {
	if err := c.BaseComponent.Start(ctx); err != nil {
		return err
	}
	b, err := blob.OpenBucket(ctx, c.cfg.BucketURL)
	if err != nil {
		return fmt.Errorf("open bucket %s: %w", c.cfg.BucketURL, err)
	}
	if c.cfg.Prefix != "" {
		b = blob.PrefixedBucket(b, c.cfg.Prefix)
	}
	c.mu.Lock()
	c.bucket = b
	c.mu.Unlock()
	logging.Infof(ctx, "blob_store opened %s", c.cfg.BucketURL)
	return nil
}

func (c *Component) Stop(ctx context.Context) error {
	defer func() { _ = c.BaseComponent.Stop(ctx) }()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bucket == nil {
		return nil
	}
	err := c.bucket.Close()
	c.bucket = nil
	return err
}

func (c *Component) HealthCheck() error {
	if err := c.BaseComponent.HealthCheck(); err != nil {
		return err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.bucket == nil {
		return errors.New("bucket not open")
	}
	return nil
}

func (c *Component) b() (*blob.Bucket, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.bucket == nil {
		return nil, errors.New("blob_store not started")
	}
	return c.bucket, nil
}

func (c *Component) Put(ctx context.Context, key string, data []byte, contentType string) error {
	b, err := c.b()
	if err != nil {
		return err
	}
	return b.WriteAll(ctx, key, data, &blob.WriterOptions{ContentType: contentType})
}

func (c *Component) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := c.b()
	if err != nil {
		return nil, err
	}
	data, err := b.ReadAll(ctx, key)
	if gcerrors.Code(err) == gcerrors.NotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return data, err
}

// Delete ignores missing keys.
func (c *Component) Delete(ctx context.Context, key string) error {
	b, err := c.b()
	if err != nil {
		return err
	}
	if err := b.Delete(ctx, key); err != nil && gcerrors.Code(err) != gcerrors.NotFound {
		return err
	}
	return nil
}
