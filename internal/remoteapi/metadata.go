package remoteapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// PutFile implements MetadataClient.PutFile: POST /files for a brand-new
// path (ParentVersion nil) or PUT /files/{path} for an update.
// A 409 response yields a non-nil VersionConflict and a nil error — this is
// an expected application outcome, not a transport failure.
func (c *Client) PutFile(ctx context.Context, req PutFileRequest) (*FileMeta, *VersionConflict, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, nil, fmt.Errorf("remoteapi: marshal put file request: %w", err)
	}

	method, path := http.MethodPost, "/files"
	if req.ParentVersion != nil {
		method, path = http.MethodPut, "/files/"+url.PathEscape(req.Path)
	}

	resp, err := c.doRetry(ctx, c.metaHTTP, method, path, body, nil)
	if err != nil {
		return nil, nil, err
	}

	if resp.StatusCode == http.StatusConflict {
		var vc VersionConflict
		if err := decodeJSON(resp, &vc); err != nil {
			return nil, nil, fmt.Errorf("remoteapi: decode version conflict: %w", err)
		}

		return nil, &vc, nil
	}

	var meta FileMeta
	if err := decodeJSON(resp, &meta); err != nil {
		return nil, nil, fmt.Errorf("remoteapi: decode file meta: %w", err)
	}

	return &meta, nil, nil
}

// GetFile implements MetadataClient.GetFile.
func (c *Client) GetFile(ctx context.Context, path string) (*FileMeta, error) {
	resp, err := c.doRetry(ctx, c.metaHTTP, http.MethodGet, "/files/"+url.PathEscape(path), nil, nil)
	if err != nil {
		return nil, err
	}

	var meta FileMeta
	if err := decodeJSON(resp, &meta); err != nil {
		return nil, fmt.Errorf("remoteapi: decode file meta: %w", err)
	}

	return &meta, nil
}

// ListFiles implements MetadataClient.ListFiles. An empty prefix lists the
// entire remote tree.
func (c *Client) ListFiles(ctx context.Context, prefix string) ([]FileMeta, error) {
	path := "/files"
	if prefix != "" {
		path += "?prefix=" + url.QueryEscape(prefix)
	}

	resp, err := c.doRetry(ctx, c.metaHTTP, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}

	var files []FileMeta
	if err := decodeJSON(resp, &files); err != nil {
		return nil, fmt.Errorf("remoteapi: decode file list: %w", err)
	}

	return files, nil
}

// DeleteFile implements MetadataClient.DeleteFile: a soft delete.
func (c *Client) DeleteFile(ctx context.Context, path string) error {
	resp, err := c.doRetry(ctx, c.metaHTTP, http.MethodDelete, "/files/"+url.PathEscape(path), nil, nil)
	if err != nil {
		return err
	}

	resp.Body.Close()

	return nil
}

// GetChanges implements MetadataClient.GetChanges: one page of remote
// changes since sinceCursor.
func (c *Client) GetChanges(ctx context.Context, sinceCursor string) (*ChangesPage, error) {
	path := "/changes"
	if sinceCursor != "" {
		path += "?since=" + url.QueryEscape(sinceCursor)
	}

	resp, err := c.doRetry(ctx, c.metaHTTP, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}

	var page ChangesPage
	if err := decodeJSON(resp, &page); err != nil {
		return nil, fmt.Errorf("remoteapi: decode changes page: %w", err)
	}

	return &page, nil
}
