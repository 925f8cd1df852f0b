package push

import (
	"bytes"
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nhle/cfish-notify/internal/credential"
	"github.com/nhle/cfish-notify/internal/model"
)

// SecretStore keeps the subscription and its private key.
// *credential.Vault satisfies it.
type SecretStore interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// DeviceService obtains push endpoints from a push service over HTTP and
// keeps the resulting subscription in the OS keyring.
type DeviceService struct {
	serviceURL string
	secrets    SecretStore
	httpClient *http.Client
}

// NewDeviceService creates a service for the push service at serviceURL.
// An empty URL makes the service unsupported.
func NewDeviceService(serviceURL string, secrets SecretStore, timeout time.Duration) *DeviceService {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &DeviceService{
		serviceURL: strings.TrimRight(serviceURL, "/"),
		secrets:    secrets,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (d *DeviceService) Supported() bool {
	return d.serviceURL != "" && d.secrets != nil
}

func (d *DeviceService) Ready(ctx context.Context) error {
	return ctx.Err()
}

// Existing returns the stored subscription, or nil when there is none or
// it has expired.
func (d *DeviceService) Existing(ctx context.Context) (*model.PushSubscription, error) {
	raw, err := d.secrets.Get(credential.PushSubscriptionKey)
	if errors.Is(err, credential.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var sub model.PushSubscription
	if err := json.Unmarshal([]byte(raw), &sub); err != nil || sub.Endpoint == "" {
		_ = d.forget()
		return nil, nil
	}
	if sub.ExpirationTime != nil && time.Now().After(*sub.ExpirationTime) {
		_ = d.forget()
		return nil, nil
	}
	return &sub, nil
}

type subscribeRequest struct {
	ApplicationServerKey string `json:"applicationServerKey"`
	P256dh               string `json:"p256dh"`
	Auth                 string `json:"auth"`
}

type subscribeResponse struct {
	Endpoint       string     `json:"endpoint"`
	ExpirationTime *time.Time `json:"expirationTime"`
}

// Subscribe generates fresh client keys and asks the push service for an
// endpoint.
func (d *DeviceService) Subscribe(ctx context.Context, applicationServerKey []byte) (*model.PushSubscription, error) {
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating client key: %w", err)
	}
	authSecret := make([]byte, 16)
	if _, err := rand.Read(authSecret); err != nil {
		return nil, fmt.Errorf("generating auth secret: %w", err)
	}

	reqBody := subscribeRequest{
		ApplicationServerKey: encodeKey(applicationServerKey),
		P256dh:               encodeKey(priv.PublicKey().Bytes()),
		Auth:                 encodeKey(authSecret),
	}
	var resp subscribeResponse
	if err := d.call(ctx, http.MethodPost, d.serviceURL+"/subscriptions", reqBody, &resp); err != nil {
		return nil, err
	}
	if resp.Endpoint == "" {
		return nil, errors.New("push service returned no endpoint")
	}

	sub := &model.PushSubscription{
		Endpoint:       resp.Endpoint,
		ExpirationTime: resp.ExpirationTime,
		Keys: model.PushKeys{
			P256dh: reqBody.P256dh,
			Auth:   reqBody.Auth,
		},
	}

	data, err := json.Marshal(sub)
	if err != nil {
		return nil, d.abandon(ctx, resp.Endpoint, fmt.Errorf("encoding subscription: %w", err))
	}
	if err := d.secrets.Set(credential.PushPrivateKeyKey, encodeKey(priv.Bytes())); err != nil {
		return nil, d.abandon(ctx, resp.Endpoint, err)
	}
	if err := d.secrets.Set(credential.PushSubscriptionKey, string(data)); err != nil {
		_ = d.forget()
		return nil, d.abandon(ctx, resp.Endpoint, err)
	}
	return sub, nil
}

// abandon deletes an endpoint whose keys could not be stored, so the
// push service does not keep a subscription nobody can read.
func (d *DeviceService) abandon(ctx context.Context, endpoint string, cause error) error {
	if err := d.call(ctx, http.MethodDelete, endpoint, nil, nil); err != nil {
		return errors.Join(cause, fmt.Errorf("deleting unused endpoint: %w", err))
	}
	return cause
}

// Cancel deletes the endpoint at the push service and forgets the local
// subscription. An endpoint the service no longer knows counts as
// cancelled.
func (d *DeviceService) Cancel(ctx context.Context, sub model.PushSubscription) error {
	err := d.call(ctx, http.MethodDelete, sub.Endpoint, nil, nil)
	var se *serviceError
	if err != nil && !(errors.As(err, &se) && (se.status == http.StatusNotFound || se.status == http.StatusGone)) {
		return err
	}
	return d.forget()
}

func (d *DeviceService) forget() error {
	return errors.Join(
		d.secrets.Delete(credential.PushSubscriptionKey),
		d.secrets.Delete(credential.PushPrivateKeyKey),
	)
}

type serviceError struct {
	method string
	url    string
	status int
}

func (e *serviceError) Error() string {
	return fmt.Sprintf("push service returned %d on %s %s", e.status, e.method, e.url)
}

func (d *DeviceService) call(ctx context.Context, method, url string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request %s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &serviceError{method: method, url: url, status: resp.StatusCode}
	}
	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decoding push service response: %w", err)
	}
	return nil
}
