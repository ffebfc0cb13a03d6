package remote

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"leasekeeper-service/internal/transport/httpserver/dto"
)

// Endpoints served by internal/transport/httpserver.
const (
	KVEndpoint     = "/api/v1/kv"
	KeyEndpoint    = "/api/v1/kv/{key}"
	SetNXEndpoint  = "/api/v1/kv/{key}/setnx"
	SwapEndpoint   = "/api/v1/kv/{key}/swap"
	HealthEndpoint = "/readyz"
)

// StatusError is returned when the remote node answers with a non-2xx status.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote store returned status %d", e.Code)
	}
	return fmt.Sprintf("remote store returned status %d: %s", e.Code, e.Message)
}

// Store implements kvstore.Store, kvstore.Lister and kvstore.Pinger over HTTP.
// Atomicity is delegated to the store behind the remote node.
type Store struct {
	client *resty.Client
	cb     *gobreaker.CircuitBreaker[*resty.Response]
	logger *zap.Logger
}

// NewStore creates a new remote Store.
func NewStore(cfg ClientConfig, logger *zap.Logger) *Store {
	return &Store{
		client: NewRestyClient(cfg),
		cb:     NewCircuitBreaker[*resty.Response]("remote_store", cfg.CB, logger),
		logger: logger,
	}
}

// SetIfAbsent implements kvstore.Store.
func (s *Store) SetIfAbsent(ctx context.Context, key, value string) (bool, error) {
	var result dto.KVWriteResponse
	_, err := s.execute("setnx", func() (*resty.Response, error) {
		return s.client.R().
			SetContext(ctx).
			SetPathParam("key", key).
			SetBody(dto.KVWriteRequest{Value: value}).
			SetResult(&result).
			SetError(&dto.ErrorResponse{}).
			Post(SetNXEndpoint)
	})
	if err != nil {
		return false, err
	}
	return result.Written, nil
}

// Get implements kvstore.Store.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var result dto.ValueResponse
	_, err := s.execute("get", func() (*resty.Response, error) {
		return s.client.R().
			SetContext(ctx).
			SetPathParam("key", key).
			SetResult(&result).
			SetError(&dto.ErrorResponse{}).
			Get(KeyEndpoint)
	})
	if err != nil {
		return "", false, err
	}
	return result.Value, result.Found, nil
}

// Swap implements kvstore.Store.
func (s *Store) Swap(ctx context.Context, key, value string) (string, bool, error) {
	var result dto.KVSwapResponse
	_, err := s.execute("swap", func() (*resty.Response, error) {
		return s.client.R().
			SetContext(ctx).
			SetPathParam("key", key).
			SetBody(dto.KVWriteRequest{Value: value}).
			SetResult(&result).
			SetError(&dto.ErrorResponse{}).
			Post(SwapEndpoint)
	})
	if err != nil {
		return "", false, err
	}
	return result.Previous, result.Found, nil
}

// Delete implements kvstore.Store.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.execute("delete", func() (*resty.Response, error) {
		return s.client.R().
			SetContext(ctx).
			SetPathParam("key", key).
			SetError(&dto.ErrorResponse{}).
			Delete(KeyEndpoint)
	})
	return err
}

// Keys implements kvstore.Lister.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	var result dto.KVKeysResponse
	_, err := s.execute("keys", func() (*resty.Response, error) {
		return s.client.R().
			SetContext(ctx).
			SetQueryParam("prefix", prefix).
			SetResult(&result).
			SetError(&dto.ErrorResponse{}).
			Get(KVEndpoint)
	})
	if err != nil {
		return nil, err
	}
	return result.Keys, nil
}

// Ping checks the remote node's readiness endpoint. It bypasses the circuit
// breaker so readiness reflects the node, not the breaker state.
func (s *Store) Ping(ctx context.Context) error {
	r, err := s.client.R().
		SetContext(ctx).
		Get(HealthEndpoint)
	if err != nil {
		return fmt.Errorf("pinging remote store: %w", err)
	}
	if r.IsError() {
		return fmt.Errorf("pinging remote store: %w", &StatusError{Code: r.StatusCode()})
	}
	return nil
}

func (s *Store) execute(op string, call func() (*resty.Response, error)) (*resty.Response, error) {
	resp, err := s.cb.Execute(func() (*resty.Response, error) {
		r, err := call()
		if err != nil {
			return nil, err
		}
		if r.IsError() {
			return nil, statusError(r)
		}

		return r, nil
	})
	if err != nil {
		s.logger.Warn("remote store call failed",
			zap.String("op", op),
			zap.Error(err),
			zap.String("state", s.cb.State().String()),
		)

		return nil, fmt.Errorf("remote %s: %w", op, err)
	}

	return resp, nil
}

func statusError(r *resty.Response) error {
	e := &StatusError{Code: r.StatusCode()}
	if body, ok := r.Error().(*dto.ErrorResponse); ok && body != nil {
		e.Message = body.Error
	}
	return e
}
