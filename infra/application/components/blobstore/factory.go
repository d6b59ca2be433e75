package blobstore

import (
	"fmt"

	"github.com/grand-thief-cash/procflow/infra/application/core"
)

type Factory struct{}

func NewFactory() *Factory { return &Factory{} }

func (f *Factory) Create(cfg interface{}) (core.Component, error) {
	c, ok := cfg.(*Config)
	if !ok {
		return nil, fmt.Errorf("invalid config type for blob_store component (*Config required)")
	}
	if c == nil || !c.Enabled {
		return nil, fmt.Errorf("blob_store component disabled")
	}
	if c.BucketURL == "" {
		c.BucketURL = "mem://"
	}
	return NewComponent(c), nil
}
