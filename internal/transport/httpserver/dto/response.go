package dto

import (
	"leasekeeper-service/internal/domain"
)

// LeaseResponse represents a lease in API responses.
type LeaseResponse struct {
	Key       string `json:"key"`
	LockKey   string `json:"lock_key"`
	State     string `json:"state"`
	ExpiresAt int64  `json:"expires_at,omitempty"`
	Remaining int64  `json:"remaining_seconds"`
	Now       int64  `json:"now"`
}

// FromDomainLease converts domain.Lease to LeaseResponse.
func FromDomainLease(l *domain.Lease) LeaseResponse {
	return LeaseResponse{
		Key:       l.Key,
		LockKey:   l.LockKey,
		State:     string(l.State()),
		ExpiresAt: l.ExpiresAt,
		Remaining: l.Remaining(),
		Now:       l.Now,
	}
}

// LeaseListResponse wraps a lease listing.
type LeaseListResponse struct {
	Leases []LeaseResponse `json:"leases"`
	Count  int             `json:"count"`
}

// FromDomainLeases converts a lease slice to LeaseListResponse.
func FromDomainLeases(leases []*domain.Lease) LeaseListResponse {
	resp := LeaseListResponse{
		Leases: make([]LeaseResponse, len(leases)),
		Count:  len(leases),
	}
	for i, l := range leases {
		resp.Leases[i] = FromDomainLease(l)
	}
	return resp
}

// UnlockResponse is returned by a forced unlock.
type UnlockResponse struct {
	Key     string `json:"key"`
	Removed bool   `json:"removed"`
}

// ValueResponse represents a stored value. It is also the kv GET wire format.
type ValueResponse struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Found bool   `json:"found"`
}

// FromDomainValue converts domain.Value to ValueResponse.
func FromDomainValue(v *domain.Value) ValueResponse {
	return ValueResponse{Key: v.Key, Value: v.Value, Found: v.Found}
}

// KVWriteResponse answers a kv setnx.
type KVWriteResponse struct {
	Written bool `json:"written"`
}

// KVSwapResponse answers a kv swap.
type KVSwapResponse struct {
	Previous string `json:"previous"`
	Found    bool   `json:"found"`
}

// KVKeysResponse answers a kv key listing.
type KVKeysResponse struct {
	Keys []string `json:"keys"`
}

// HealthResponse represents health check response.
type HealthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp string            `json:"timestamp"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string      `json:"error"`
	Code    string      `json:"code,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// StatsResponse represents dashboard stats.
type StatsResponse struct {
	Backend string `json:"backend"`
	Total   int    `json:"total"`
	Held    int    `json:"held"`
	Expired int    `json:"expired"`
}

// FromLeases tallies leases by state.
func FromLeases(backend string, leases []*domain.Lease) StatsResponse {
	stats := StatsResponse{Backend: backend, Total: len(leases)}
	for _, l := range leases {
		switch l.State() {
		case domain.LeaseStateHeld:
			stats.Held++
		case domain.LeaseStateExpired:
			stats.Expired++
		}
	}
	return stats
}
