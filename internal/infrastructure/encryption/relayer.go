package encryption

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	jsoniter "github.com/json-iterator/go"
	gocache "github.com/patrickmn/go-cache"

	"secret_deal/internal/config"
	"secret_deal/internal/domain"
	"secret_deal/internal/domain/value"
	"secret_deal/pkg/errcodes"
	"secret_deal/pkg/httpx"
	"secret_deal/pkg/logx"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals // skip

// Status — жизненный цикл контекста шифрования.
type Status int32

const (
	StatusIdle Status = iota
	StatusInitializing
	StatusReady
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusInitializing:
		return "initializing"
	case StatusReady:
		return "ready"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

const keyMaterialCacheKey = "relayer-key-material"

// Adapter оборачивает ограниченное uint32-значение в хэндл шифротекста и
// доказательство корректности для пары (контракт, отправитель). Сама схема
// шифрования — внешний коллаборатор за HTTP-релэером; адаптер отвечает
// только за готовность контекста и тотальную hex-конвертацию результата.
type Adapter struct {
	cfg        config.Relayer
	httpClient *http.Client
	contract   value.Address
	submitter  value.Address

	initMu   sync.Mutex
	status   atomic.Int32
	keyCache *gocache.Cache
}

func NewAdapter(
	cfg config.Relayer,
	contract value.Address,
	submitter value.Address,
) *Adapter {
	transport := http.RoundTripper(httpx.NewLoggingRoundTripper(
		http.DefaultTransport,
		httpx.WithSensitiveDataMasker(logx.NewSensitiveDataMasker()),
		httpx.WithLogFieldMaxLen(2048),
	))

	if cfg.APIKey != "" {
		transport = httpx.NewAuthBearerRoundTripper(transport, staticKey(cfg.APIKey))
	}

	return &Adapter{
		cfg: cfg,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.RequestTimeout,
		},
		contract:  contract,
		submitter: submitter,
		keyCache:  gocache.New(cfg.KeyCacheTTL, cfg.KeyCacheTTL),
	}
}

func (a *Adapter) Status() Status {
	return Status(a.status.Load())
}

// Init переводит контекст Idle → Initializing → Ready | Error, подтягивая
// ключевой материал релэера. Повторный вызов после Error допустим; при
// уже готовом контексте вызов — no-op.
func (a *Adapter) Init(ctx context.Context) error {
	a.initMu.Lock()
	defer a.initMu.Unlock()

	if a.Status() == StatusReady {
		return nil
	}

	a.status.Store(int32(StatusInitializing))

	if err := a.fetchKeyMaterial(ctx); err != nil {
		a.status.Store(int32(StatusError))
		return err
	}

	a.status.Store(int32(StatusReady))

	logger(ctx).Info("encryption context ready", "relayer", a.cfg.URL)

	return nil
}

type encryptRequest struct {
	ContractAddress string   `json:"contractAddress"`
	UserAddress     string   `json:"userAddress"`
	PublicKeyID     string   `json:"publicKeyId"`
	Values          []uint32 `json:"values"`
}

type encryptResponse struct {
	Handles    []value.HexBytes `json:"handles"`
	InputProof value.HexBytes   `json:"inputProof"`
}

// Encrypt — чистое преобразование при готовом контексте. Контекст, не
// дошедший до Ready, переинициализируется на месте: сбой релэера при
// старте лечится первым же обращением после его восстановления.
func (a *Adapter) Encrypt(ctx context.Context, val value.OfferValue) (value.Ciphertext, error) {
	if a.Status() != StatusReady {
		if err := a.Init(ctx); err != nil {
			return value.Ciphertext{}, domain.WrapError(
				err,
				errcodes.NotReady,
				fmt.Sprintf("encryption context is %s, not ready", a.Status()),
			)
		}
	}

	keys, err := a.keyMaterial(ctx)
	if err != nil {
		return value.Ciphertext{}, domain.WrapError(err, errcodes.EncryptionFailed, "refresh key material")
	}

	reqBody, err := json.Marshal(encryptRequest{
		ContractAddress: a.contract.Hex(),
		UserAddress:     a.submitter.Hex(),
		PublicKeyID:     keys.PublicKeyID,
		Values:          []uint32{val.Uint32()},
	})
	if err != nil {
		return value.Ciphertext{}, domain.WrapError(err, errcodes.EncryptionFailed, "marshal encrypt request")
	}

	var resp encryptResponse
	if err := a.post(ctx, "/v1/input/encrypt", reqBody, &resp); err != nil {
		return value.Ciphertext{}, domain.WrapError(err, errcodes.EncryptionFailed, "relayer encrypt")
	}

	if len(resp.Handles) != 1 || len(resp.Handles[0]) != value.HandleLen {
		return value.Ciphertext{}, domain.NewError(errcodes.EncryptionFailed, "relayer returned malformed handle")
	}

	return value.Ciphertext{
		Handle: resp.Handles[0],
		Proof:  resp.InputProof,
	}, nil
}

type keyMaterialResponse struct {
	PublicKeyID string `json:"publicKeyId"`
	PublicKey   string `json:"publicKey"`
}

// keyMaterial возвращает ключевой материал, при истёкшем TTL перечитывая
// его у релэера.
func (a *Adapter) keyMaterial(ctx context.Context) (keyMaterialResponse, error) {
	if err := a.fetchKeyMaterial(ctx); err != nil {
		return keyMaterialResponse{}, err
	}

	cached, _ := a.keyCache.Get(keyMaterialCacheKey)
	keys, _ := cached.(keyMaterialResponse)

	return keys, nil
}

func (a *Adapter) fetchKeyMaterial(ctx context.Context) error {
	if _, found := a.keyCache.Get(keyMaterialCacheKey); found {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.URL+"/v1/keys", http.NoBody)
	if err != nil {
		return fmt.Errorf("http.NewRequestWithContext: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("httpClient.Do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("relayer keys: unexpected status %d", resp.StatusCode)
	}

	var keys keyMaterialResponse
	if err := json.NewDecoder(resp.Body).Decode(&keys); err != nil {
		return fmt.Errorf("json.Decode: %w", err)
	}

	a.keyCache.Set(keyMaterialCacheKey, keys, gocache.DefaultExpiration)

	return nil
}

func (a *Adapter) post(ctx context.Context, endpoint string, body []byte, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.URL+endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("http.NewRequestWithContext: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("httpClient.Do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("json.Decode: %w", err)
	}

	return nil
}

// staticKey — аутентификатор с фиксированным API-ключом релэера.
type staticKey string

func (s staticKey) Authenticate(context.Context) error { return nil }
func (s staticKey) BearerToken() string                { return string(s) }
