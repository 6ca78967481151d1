package remoteapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// HasChunk implements ChunkClient.HasChunk: HEAD /chunks/{hash}. Used before upload to skip chunks the server already has (global
// dedup across files sharing content, independent of the per-file
// SyncedFileRecord).
func (c *Client) HasChunk(ctx context.Context, hash string) (bool, error) {
	resp, err := c.doRetry(ctx, c.transferHTTP, http.MethodHead, "/chunks/"+hash, nil, nil)
	if apiErr, ok := asAPIError(err); ok && apiErr.StatusCode == http.StatusNotFound {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	resp.Body.Close()

	return true, nil
}

// PutChunk implements ChunkClient.PutChunk: POST /chunks/{hash} with raw
// sealed bytes (nonce||ciphertext||tag, per internal/cryptutil.Seal).
func (c *Client) PutChunk(ctx context.Context, hash string, sealed []byte) error {
	resp, err := c.doRetry(ctx, c.transferHTTP, http.MethodPost, "/chunks/"+hash, sealed, http.Header{
		"Content-Type": []string{"application/octet-stream"},
	})
	if err != nil {
		return err
	}

	resp.Body.Close()

	return nil
}

// GetChunk implements ChunkClient.GetChunk: GET /chunks/{hash}, returning
// the raw sealed bytes for the caller to Open with internal/cryptutil.
func (c *Client) GetChunk(ctx context.Context, hash string) ([]byte, error) {
	resp, err := c.doRetry(ctx, c.transferHTTP, http.MethodGet, "/chunks/"+hash, nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("remoteapi: reading chunk %s: %w", hash, err)
	}

	return data, nil
}

func asAPIError(err error) (*APIError, bool) {
	apiErr, ok := err.(*APIError)
	return apiErr, ok
}
