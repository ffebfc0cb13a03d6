// Package dto provides Data Transfer Objects for HTTP requests and responses.
// The kv types double as the wire format of the remote store client.
package dto

import "leasekeeper-service/internal/domain"

// MutationRequest is the body of POST /api/v1/values/:key/mutations.
type MutationRequest struct {
	Op      string `json:"op" validate:"required,oneof=set append incr"`
	Operand string `json:"operand" validate:"max=4096"`
}

// ToMutation converts MutationRequest to domain.Mutation.
func (r *MutationRequest) ToMutation() domain.Mutation {
	return domain.Mutation{
		Op:      domain.MutationOp(r.Op),
		Operand: r.Operand,
	}
}

// KVWriteRequest is the body of the kv setnx and swap endpoints.
type KVWriteRequest struct {
	Value string `json:"value"`
}

// KVKeysRequest holds the query parameters of GET /api/v1/kv.
type KVKeysRequest struct {
	Prefix string `query:"prefix" validate:"max=512"`
}
