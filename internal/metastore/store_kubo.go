package metastore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ipfs/go-cid"
)

// KuboStore talks to a Kubo (go-ipfs) node over its HTTP API. Blocks are
// stored raw with sha2-256 so the node-reported CID matches the one derived
// locally; a mismatch is treated as a store failure, not trusted.
type KuboStore struct {
	apiURL string
	client *http.Client
}

// NewKuboStore creates a store against a Kubo API endpoint, e.g.
// "http://127.0.0.1:5001".
func NewKuboStore(apiURL string) *KuboStore {
	return &KuboStore{
		apiURL: strings.TrimRight(apiURL, "/"),
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

type blockPutResponse struct {
	Key  string `json:"Key"`
	Size int    `json:"Size"`
}

func (s *KuboStore) Upload(ctx context.Context, metadata CredentialMetadata) (UploadResult, error) {
	data, err := metadata.Encode()
	if err != nil {
		return UploadResult{}, err
	}
	want, err := deriveCID(data)
	if err != nil {
		return UploadResult{}, err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "metadata.json")
	if err != nil {
		return UploadResult{}, fmt.Errorf("build upload form: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return UploadResult{}, fmt.Errorf("build upload form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return UploadResult{}, fmt.Errorf("build upload form: %w", err)
	}

	endpoint := s.apiURL + "/api/v0/block/put?cid-codec=raw&mhtype=sha2-256&pin=false"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return UploadResult{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := s.client.Do(req)
	if err != nil {
		return UploadResult{}, fmt.Errorf("%w: kubo block/put: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return UploadResult{}, fmt.Errorf("%w: kubo block/put status %d", ErrUnavailable, resp.StatusCode)
	}

	var put blockPutResponse
	if err := json.NewDecoder(resp.Body).Decode(&put); err != nil {
		return UploadResult{}, fmt.Errorf("%w: kubo block/put response: %v", ErrUnavailable, err)
	}
	got, err := cid.Decode(put.Key)
	if err != nil || !got.Equals(want) {
		return UploadResult{}, fmt.Errorf("%w: kubo returned unexpected cid %q", ErrUnavailable, put.Key)
	}

	return UploadResult{CID: want.String(), SizeBytes: len(data)}, nil
}

func (s *KuboStore) Fetch(ctx context.Context, cidStr string) ([]byte, error) {
	id, err := cid.Decode(cidStr)
	if err != nil {
		return nil, ErrNotFound
	}

	endpoint := s.apiURL + "/api/v0/block/get?arg=" + url.QueryEscape(id.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: kubo block/get: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusInternalServerError, http.StatusNotFound:
		// Kubo reports missing blocks through its error envelope.
		return nil, ErrNotFound
	default:
		return nil, fmt.Errorf("%w: kubo block/get status %d", ErrUnavailable, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: kubo block/get read: %v", ErrUnavailable, err)
	}
	if !verifyCID(id, data) {
		return nil, ErrNotFound
	}
	return data, nil
}

// Pin asks the node to keep the block. Best effort: pinning is a durability
// optimization, so failures are reported as false, never as an error that
// could abort issuance.
func (s *KuboStore) Pin(ctx context.Context, cidStr string) bool {
	id, err := cid.Decode(cidStr)
	if err != nil {
		return false
	}

	endpoint := s.apiURL + "/api/v0/pin/add?arg=" + url.QueryEscape(id.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return false
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}
