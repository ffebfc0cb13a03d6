package handler

import (
	"sort"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"leasekeeper-service/internal/transport/httpserver/dto"
	"leasekeeper-service/internal/validator"
	"leasekeeper-service/pkg/kvstore"
)

// KVHandler exposes the raw store primitives so other nodes can use this one
// as their backend. Each endpoint is a single atomic store call.
type KVHandler struct {
	store     kvstore.Store
	validator *validator.Validator
	logger    *zap.Logger
}

// NewKVHandler creates a new KVHandler.
func NewKVHandler(store kvstore.Store, v *validator.Validator, logger *zap.Logger) *KVHandler {
	return &KVHandler{
		store:     store,
		validator: v,
		logger:    logger,
	}
}

// Get handles GET /api/v1/kv/:key
func (h *KVHandler) Get(c *fiber.Ctx) error {
	key := c.Params("key")
	if !validator.ValidStoreKey(key) {
		return invalidKey(c, key)
	}

	value, found, err := h.store.Get(c.UserContext(), key)
	if err != nil {
		return writeError(c, h.logger, "store get failed", err)
	}

	return c.JSON(dto.ValueResponse{Key: key, Value: value, Found: found})
}

// SetIfAbsent handles POST /api/v1/kv/:key/setnx
func (h *KVHandler) SetIfAbsent(c *fiber.Ctx) error {
	key, req, err := h.parseWrite(c)
	if err != nil || key == "" {
		return err
	}

	written, err := h.store.SetIfAbsent(c.UserContext(), key, req.Value)
	if err != nil {
		return writeError(c, h.logger, "store setnx failed", err)
	}

	return c.JSON(dto.KVWriteResponse{Written: written})
}

// Swap handles POST /api/v1/kv/:key/swap
func (h *KVHandler) Swap(c *fiber.Ctx) error {
	key, req, err := h.parseWrite(c)
	if err != nil || key == "" {
		return err
	}

	previous, found, err := h.store.Swap(c.UserContext(), key, req.Value)
	if err != nil {
		return writeError(c, h.logger, "store swap failed", err)
	}

	return c.JSON(dto.KVSwapResponse{Previous: previous, Found: found})
}

// Delete handles DELETE /api/v1/kv/:key
func (h *KVHandler) Delete(c *fiber.Ctx) error {
	key := c.Params("key")
	if !validator.ValidStoreKey(key) {
		return invalidKey(c, key)
	}

	if err := h.store.Delete(c.UserContext(), key); err != nil {
		return writeError(c, h.logger, "store delete failed", err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// Keys handles GET /api/v1/kv?prefix=
func (h *KVHandler) Keys(c *fiber.Ctx) error {
	lister, ok := h.store.(kvstore.Lister)
	if !ok {
		return c.Status(fiber.StatusNotImplemented).JSON(dto.ErrorResponse{
			Error: "store cannot list keys",
			Code:  "LISTING_UNSUPPORTED",
		})
	}

	var req dto.KVKeysRequest
	if err := c.QueryParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "invalid query parameters",
			Code:  "INVALID_PARAMS",
		})
	}
	if err := h.validator.Validate(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error:   "validation failed",
			Code:    "VALIDATION_ERROR",
			Details: err,
		})
	}

	keys, err := lister.Keys(c.UserContext(), req.Prefix)
	if err != nil {
		return writeError(c, h.logger, "store keys failed", err)
	}
	sort.Strings(keys)
	if keys == nil {
		keys = []string{}
	}

	return c.JSON(dto.KVKeysResponse{Keys: keys})
}

// parseWrite validates the key and decodes the body of a write. An empty key
// with a nil error means the error response was already sent.
func (h *KVHandler) parseWrite(c *fiber.Ctx) (string, dto.KVWriteRequest, error) {
	var req dto.KVWriteRequest

	key := c.Params("key")
	if !validator.ValidStoreKey(key) {
		return "", req, invalidKey(c, key)
	}

	if err := c.BodyParser(&req); err != nil {
		return "", req, c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "invalid request body",
			Code:  "INVALID_BODY",
		})
	}

	return key, req, nil
}
