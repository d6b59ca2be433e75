package blobstore

// Config selects a gocloud.dev bucket by URL, e.g. mem:// or file:///var/lib/procflow/blobs.
type Config struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	BucketURL string `yaml:"bucket_url" json:"bucket_url"`
	Prefix    string `yaml:"prefix" json:"prefix"`
}
