package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/medichain/ssi-custody/pkg/config"
	"github.com/medichain/ssi-custody/pkg/encryption"
	"github.com/medichain/ssi-custody/pkg/logger"
	"github.com/medichain/ssi-custody/pkg/types"
)

func newTestGateway(t *testing.T, apiURL, gatewayURL string) *Gateway {
	encryptor, err := encryption.NewService("test-secret-test-secret-test-secret!")
	assert.NoError(t, err)
	return NewGateway(&config.StorageConfig{
		APIURL:     apiURL,
		GatewayURL: gatewayURL,
		APIKey:     "test-key",
		Timeout:    5,
	}, encryptor, logger.New("error"))
}

func TestGateway_StoreAndRetrieveRoundTrip(t *testing.T) {
	var stored []byte

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v0/add", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		file, _, err := r.FormFile("file")
		assert.NoError(t, err)
		defer file.Close()

		buf := make([]byte, 1<<20)
		n, _ := file.Read(buf)
		stored = buf[:n]

		w.Write([]byte(`{"Name":"report.pdf","Hash":"QmTestCid123","Size":"128"}`))
	}))
	defer api.Close()

	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ipfs/QmTestCid123", r.URL.Path)
		w.Write(stored)
	}))
	defer gw.Close()

	g := newTestGateway(t, api.URL, gw.URL)

	plaintext := []byte("confidential lab report")
	cid, err := g.StoreEncrypted(context.Background(), plaintext, "report.pdf")
	assert.NoError(t, err)
	assert.Equal(t, "QmTestCid123", cid)

	// Pinned bytes must be ciphertext, never the plaintext
	assert.NotEqual(t, plaintext, stored)

	retrieved, err := g.RetrieveDecrypted(context.Background(), cid)
	assert.NoError(t, err)
	assert.Equal(t, plaintext, retrieved)
}

func TestGateway_StoreEncrypted_GatewayError(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer api.Close()

	g := newTestGateway(t, api.URL, api.URL)

	_, err := g.StoreEncrypted(context.Background(), []byte("data"), "f.bin")
	assert.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrCodeStorageUnavailable))
}

func TestGateway_RetrieveDecrypted_NotFound(t *testing.T) {
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer gw.Close()

	g := newTestGateway(t, gw.URL, gw.URL)

	_, err := g.RetrieveDecrypted(context.Background(), "QmMissing")
	assert.True(t, types.IsErrorCode(err, types.ErrCodeNotFound))
}

func TestGateway_Health(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()

	g := newTestGateway(t, healthy.URL, healthy.URL)
	assert.NoError(t, g.Health(context.Background()))

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()

	g2 := newTestGateway(t, broken.URL, broken.URL)
	assert.Error(t, g2.Health(context.Background()))
}
