package encryption_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"secret_deal/internal/config"
	"secret_deal/internal/domain"
	"secret_deal/internal/domain/value"
	"secret_deal/internal/infrastructure/encryption"
	"secret_deal/pkg/errcodes"
)

var (
	testContract  = value.Address{0xc0}
	testSubmitter = value.Address{0x5e}
)

func newTestAdapter(t *testing.T, handler http.Handler) *encryption.Adapter {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return encryption.NewAdapter(config.Relayer{
		URL:            srv.URL,
		RequestTimeout: 5 * time.Second,
		KeyCacheTTL:    time.Hour,
	}, testContract, testSubmitter)
}

func relayerMux(t *testing.T, keyCalls *int) *http.ServeMux {
	t.Helper()

	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/keys", func(w http.ResponseWriter, _ *http.Request) {
		if keyCalls != nil {
			*keyCalls++
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"publicKeyId": "key-1",
			"publicKey":   "0x04deadbeef",
		})
	})

	mux.HandleFunc("POST /v1/input/encrypt", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ContractAddress string   `json:"contractAddress"`
			UserAddress     string   `json:"userAddress"`
			PublicKeyID     string   `json:"publicKeyId"`
			Values          []uint32 `json:"values"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, testContract.Hex(), req.ContractAddress)
		require.Equal(t, testSubmitter.Hex(), req.UserAddress)
		require.Equal(t, "key-1", req.PublicKeyID)
		require.Len(t, req.Values, 1)

		handle := "0x" + strings.Repeat("ab", value.HandleLen)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"handles":    []string{handle},
			"inputProof": "0x010203",
		})
	})

	return mux
}

func TestAdapterLifecycle(t *testing.T) {
	rq := require.New(t)
	ctx := context.Background()

	a := newTestAdapter(t, relayerMux(t, nil))
	rq.Equal(encryption.StatusIdle, a.Status())

	rq.NoError(a.Init(ctx))
	rq.Equal(encryption.StatusReady, a.Status())
}

func TestEncryptWithRelayerDown(t *testing.T) {
	rq := require.New(t)
	ctx := context.Background()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/keys", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	a := newTestAdapter(t, mux)

	val, err := value.ParseOfferValue(42)
	rq.NoError(err)

	_, err = a.Encrypt(ctx, val)
	rq.True(domain.CodeIs(err, errcodes.NotReady))
	rq.Equal(encryption.StatusError, a.Status())
}

func TestEncrypt(t *testing.T) {
	rq := require.New(t)
	ctx := context.Background()

	a := newTestAdapter(t, relayerMux(t, nil))
	rq.NoError(a.Init(ctx))

	val, err := value.ParseOfferValue(1500)
	rq.NoError(err)

	ct, err := a.Encrypt(ctx, val)
	rq.NoError(err)
	rq.Len(ct.Handle, value.HandleLen)
	rq.Equal("0x010203", ct.Proof.String())

	_, err = ct.Handle32()
	rq.NoError(err)
}

func TestInitFailureThenRecovery(t *testing.T) {
	rq := require.New(t)
	ctx := context.Background()

	healthy := false
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/keys", func(w http.ResponseWriter, _ *http.Request) {
		if !healthy {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"publicKeyId": "key-1", "publicKey": "0x04"})
	})

	a := newTestAdapter(t, mux)

	rq.Error(a.Init(ctx))
	rq.Equal(encryption.StatusError, a.Status())

	val, err := value.ParseOfferValue(1)
	rq.NoError(err)
	_, err = a.Encrypt(ctx, val)
	rq.True(domain.CodeIs(err, errcodes.NotReady))

	// Повторная инициализация после восстановления релэера.
	healthy = true
	rq.NoError(a.Init(ctx))
	rq.Equal(encryption.StatusReady, a.Status())
}

func TestEncryptReinitializesAfterBootFailure(t *testing.T) {
	rq := require.New(t)
	ctx := context.Background()

	healthy := false
	mux := relayerMux(t, nil)
	gated := http.NewServeMux()
	gated.HandleFunc("GET /v1/keys", func(w http.ResponseWriter, r *http.Request) {
		if !healthy {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		mux.ServeHTTP(w, r)
	})
	gated.HandleFunc("POST /v1/input/encrypt", mux.ServeHTTP)

	a := newTestAdapter(t, gated)

	// Релэер лежит на старте процесса.
	rq.Error(a.Init(ctx))
	rq.Equal(encryption.StatusError, a.Status())

	val, err := value.ParseOfferValue(1500)
	rq.NoError(err)

	// Сабмит во время простоя отклоняется, но не хоронит адаптер.
	_, err = a.Encrypt(ctx, val)
	rq.True(domain.CodeIs(err, errcodes.NotReady))

	// После восстановления следующий сабмит проходит без явного Init.
	healthy = true

	ct, err := a.Encrypt(ctx, val)
	rq.NoError(err)
	rq.Len(ct.Handle, value.HandleLen)
	rq.Equal(encryption.StatusReady, a.Status())
}

func TestInitUsesKeyCache(t *testing.T) {
	rq := require.New(t)
	ctx := context.Background()

	keyCalls := 0
	a := newTestAdapter(t, relayerMux(t, &keyCalls))

	rq.NoError(a.Init(ctx))
	rq.NoError(a.Init(ctx))
	rq.Equal(1, keyCalls)
}

func TestEncryptMalformedHandle(t *testing.T) {
	rq := require.New(t)
	ctx := context.Background()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/keys", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"publicKeyId": "key-1", "publicKey": "0x04"})
	})
	mux.HandleFunc("POST /v1/input/encrypt", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"handles":    []string{"0x1234"},
			"inputProof": "0x01",
		})
	})

	a := newTestAdapter(t, mux)
	rq.NoError(a.Init(ctx))

	val, err := value.ParseOfferValue(1)
	rq.NoError(err)

	_, err = a.Encrypt(ctx, val)
	rq.True(domain.CodeIs(err, errcodes.EncryptionFailed))
}

func TestEncryptRelayerError(t *testing.T) {
	rq := require.New(t)
	ctx := context.Background()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/keys", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"publicKeyId": "key-1", "publicKey": "0x04"})
	})
	mux.HandleFunc("POST /v1/input/encrypt", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	a := newTestAdapter(t, mux)
	rq.NoError(a.Init(ctx))

	val, err := value.ParseOfferValue(1)
	rq.NoError(err)

	_, err = a.Encrypt(ctx, val)
	rq.True(domain.CodeIs(err, errcodes.EncryptionFailed))
}
