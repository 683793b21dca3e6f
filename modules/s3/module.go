// Package s3 provides the `s3_upload` module type. Starting the module PUTs a
// local file to a pre-signed S3 URL, so a configuration can publish an
// artifact as one of its actions. Stopping it does nothing.
//
// Settings:
//
//	source_path  file to upload (required)
//	upload_url   pre-signed PUT URL (required)
package s3

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/vk/configurator/internal/ctxlog"
	"github.com/vk/configurator/internal/registry"
	"github.com/vk/configurator/internal/settings"
)

// Plugin implements the registry.Plugin interface for this package.
type Plugin struct {
	// Client is used for uploads; defaults to http.DefaultClient.
	Client *http.Client
}

// Input declares the module settings.
type Input struct {
	SourcePath string `cty:"source_path"`
	UploadURL  string `cty:"upload_url"`
}

type uploader struct {
	id     string
	client *http.Client
}

func (u *uploader) Start(ctx context.Context, raw map[string]string) error {
	var in Input
	if err := settings.Decode(raw, &in); err != nil {
		return err
	}
	sourcePath, uploadURL := in.SourcePath, in.UploadURL
	if sourcePath == "" || uploadURL == "" {
		return errors.New("settings 'source_path' and 'upload_url' are required")
	}
	logger := ctxlog.FromContext(ctx).With("module", u.id)

	file, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("failed to open source file '%s': %w", sourcePath, err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to get file stats for '%s': %w", sourcePath, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, file)
	if err != nil {
		return fmt.Errorf("failed to create S3 upload request: %w", err)
	}

	contentType := mime.TypeByExtension(filepath.Ext(sourcePath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = stat.Size()

	logger.Info("Uploading file to S3", "source", sourcePath, "size", stat.Size(), "contentType", contentType)

	resp, err := u.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute S3 upload request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("S3 upload failed with status: %s", resp.Status)
	}
	logger.Info("Successfully uploaded file", "status", resp.Status)
	return nil
}

func (u *uploader) Stop(context.Context, bool) error { return nil }

// Register registers the module type with the registry.
func (m *Plugin) Register(r *registry.Registry) {
	client := m.Client
	if client == nil {
		client = http.DefaultClient
	}
	r.RegisterModuleType("s3_upload", func(service, name string) (registry.Unit, error) {
		return &uploader{id: service + "/" + name, client: client}, nil
	})
}
