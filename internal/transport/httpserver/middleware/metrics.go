package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"leasekeeper-service/internal/metrics"
)

// Metrics records request counts and latencies per matched route.
func Metrics(m *metrics.HTTPMetrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if e, ok := err.(*fiber.Error); ok {
				status = e.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		// Route().Path is the pattern, which keeps label cardinality bounded.
		m.Observe(c.Method(), c.Route().Path, strconv.Itoa(status), time.Since(start))

		return err
	}
}
