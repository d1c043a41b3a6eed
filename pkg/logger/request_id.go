package logger

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var requestSeq uint64

// GenerateRequestID returns ids like 20261018102830-000042-1f3a9c2b.
// The sequence keeps ids from one process sortable; the uuid suffix keeps
// them unique across replicas.
func GenerateRequestID() string {
	seq := atomic.AddUint64(&requestSeq, 1)
	suffix := uuid.New().String()[:8]
	return fmt.Sprintf("%s-%06d-%s", time.Now().UTC().Format("20060102150405"), seq%1_000_000, suffix)
}
