package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/medichain/ssi-custody/pkg/config"
	"github.com/medichain/ssi-custody/pkg/encryption"
	"github.com/medichain/ssi-custody/pkg/logger"
	"github.com/medichain/ssi-custody/pkg/types"
)

// Gateway is a client for a Lighthouse-compatible IPFS pinning service.
// Content is encrypted with AES-256-GCM before upload and decrypted on
// retrieval, so the pinning service only ever sees ciphertext.
type Gateway struct {
	apiURL     string
	gatewayURL string
	apiKey     string
	client     *http.Client
	encryptor  *encryption.Service
	logger     *logger.Logger
}

// uploadResponse is the pinning service's add response
type uploadResponse struct {
	Name string `json:"Name"`
	Hash string `json:"Hash"`
	Size string `json:"Size"`
}

// NewGateway creates a new storage gateway client
func NewGateway(cfg *config.StorageConfig, encryptor *encryption.Service, log *logger.Logger) *Gateway {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Gateway{
		apiURL:     cfg.APIURL,
		gatewayURL: cfg.GatewayURL,
		apiKey:     cfg.APIKey,
		client:     &http.Client{Timeout: timeout},
		encryptor:  encryptor,
		logger:     log,
	}
}

// StoreEncrypted encrypts content and pins it, returning the content CID
func (g *Gateway) StoreEncrypted(ctx context.Context, content []byte, filename string) (string, error) {
	encrypted, err := g.encryptor.Encrypt(content)
	if err != nil {
		return "", types.NewCryptoError(types.ErrCodeInternalError, "failed to encrypt content", err)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", types.NewStorageError("failed to build upload request", err)
	}
	if _, err := part.Write(encrypted); err != nil {
		return "", types.NewStorageError("failed to build upload request", err)
	}
	if err := writer.Close(); err != nil {
		return "", types.NewStorageError("failed to build upload request", err)
	}

	url := g.apiURL + "/api/v0/add"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return "", types.NewStorageError("failed to build upload request", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return "", types.NewStorageError("storage gateway unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", types.NewStorageError(
			fmt.Sprintf("storage gateway returned %d: %s", resp.StatusCode, string(respBody)), nil)
	}

	var uploaded uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&uploaded); err != nil {
		return "", types.NewStorageError("invalid upload response", err)
	}
	if uploaded.Hash == "" {
		return "", types.NewStorageError("upload response missing content hash", nil)
	}

	g.logger.WithFields(map[string]interface{}{
		"cid":      uploaded.Hash,
		"filename": filename,
	}).Debug("Content pinned")

	return uploaded.Hash, nil
}

// RetrieveDecrypted fetches pinned content by CID and decrypts it
func (g *Gateway) RetrieveDecrypted(ctx context.Context, cid string) ([]byte, error) {
	url := fmt.Sprintf("%s/ipfs/%s", g.gatewayURL, cid)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, types.NewStorageError("failed to build retrieval request", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, types.NewStorageError("storage gateway unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, types.NewNotFoundError(types.ErrCodeNotFound,
			fmt.Sprintf("content %s not found on storage gateway", cid))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, types.NewStorageError(
			fmt.Sprintf("storage gateway returned %d", resp.StatusCode), nil)
	}

	encrypted, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.NewStorageError("failed to read content", err)
	}

	content, err := g.encryptor.Decrypt(encrypted)
	if err != nil {
		return nil, types.NewCryptoError(types.ErrCodeInternalError, "failed to decrypt content", err)
	}
	return content, nil
}

// Health probes the gateway endpoint
func (g *Gateway) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.gatewayURL, nil)
	if err != nil {
		return types.NewStorageError("failed to build health request", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return types.NewStorageError("storage gateway unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return types.NewStorageError(
			fmt.Sprintf("storage gateway returned %d", resp.StatusCode), nil)
	}
	return nil
}
