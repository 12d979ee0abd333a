// Package asset loads configuration and catalog documents from afs URLs
// (file, embed, mem, s3, gs, …) with ${env.KEY} expansion applied before
// decoding.
package asset

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/storage"
	"github.com/viant/afs/url"
	"gopkg.in/yaml.v3"
)

// Service resolves relative URIs against a base URL and decodes YAML or JSON
// documents.
type Service struct {
	fs      afs.Service
	baseURL string
	options []storage.Option
}

// New creates an asset service. Extra storage options (e.g. an embedded
// file system) are forwarded to every operation.
func New(fs afs.Service, baseURL string, options ...storage.Option) *Service {
	if fs == nil {
		fs = afs.New()
	}
	return &Service{fs: fs, baseURL: baseURL, options: options}
}

// URL resolves a possibly relative URI against the service base URL.
func (s *Service) URL(URI string) string {
	if s.baseURL == "" || strings.Contains(URI, "://") || strings.HasPrefix(URI, "/") {
		return URI
	}
	return url.Join(s.baseURL, URI)
}

// Download returns the raw document bytes with environment expressions
// expanded.
func (s *Service) Download(ctx context.Context, URI string) ([]byte, error) {
	URL := s.URL(URI)
	data, err := s.fs.DownloadWithURL(ctx, URL, s.options...)
	if err != nil {
		return nil, fmt.Errorf("failed to download asset: %v, %w", URL, err)
	}
	return []byte(expandEnvExpr(string(data))), nil
}

// Load downloads and decodes a document into target. The format follows the
// URI extension; anything that is not .json decodes as YAML.
func (s *Service) Load(ctx context.Context, URI string, target interface{}) error {
	data, err := s.Download(ctx, URI)
	if err != nil {
		return err
	}
	switch strings.ToLower(path.Ext(URI)) {
	case ".json":
		if err = json.Unmarshal(data, target); err != nil {
			return fmt.Errorf("failed to decode json asset: %v, %w", s.URL(URI), err)
		}
	default:
		if err = yaml.Unmarshal(data, target); err != nil {
			return fmt.Errorf("failed to decode yaml asset: %v, %w", s.URL(URI), err)
		}
	}
	return nil
}

// Exists checks document presence.
func (s *Service) Exists(ctx context.Context, URI string) (bool, error) {
	return s.fs.Exists(ctx, s.URL(URI), s.options...)
}

// Upload stores raw document bytes.
func (s *Service) Upload(ctx context.Context, URI string, data []byte) error {
	URL := s.URL(URI)
	if err := s.fs.Upload(ctx, URL, file.DefaultFileOsMode, bytes.NewReader(data), s.options...); err != nil {
		return fmt.Errorf("failed to upload asset: %v, %w", URL, err)
	}
	return nil
}
