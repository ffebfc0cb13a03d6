package cli

import (
	"fmt"
	"io"

	"leasekeeper-service/internal/domain"
)

func printLease(w io.Writer, l *domain.Lease) {
	switch l.State() {
	case domain.LeaseStateFree:
		fmt.Fprintf(w, "%s\tfree\n", l.Key)
	case domain.LeaseStateExpired:
		fmt.Fprintf(w, "%s\texpired\texpires_at=%d\n", l.Key, l.ExpiresAt)
	default:
		fmt.Fprintf(w, "%s\theld\texpires_at=%d\tremaining=%ds\n", l.Key, l.ExpiresAt, l.Remaining())
	}
}
