// Package admin captures runtime profiles of a running engine for operators.
package admin

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/frankieli/raffle_engine/pkg/logger"
)

const (
	DefaultDuration = 30 * time.Second
	MaxDuration     = 5 * time.Minute
)

var ErrCollectionRunning = errors.New("admin: profile collection already running")

// Profile is one named capture inside a Bundle.
type Profile struct {
	Name string
	Data []byte
}

type Bundle struct {
	Host     string
	TakenAt  time.Time
	Duration time.Duration
	Profiles []Profile
}

// Collector takes one profile bundle at a time.
type Collector struct {
	mu sync.Mutex
}

func NewCollector() *Collector {
	return &Collector{}
}

// Collect records CPU and trace for d, then snapshots heap, goroutine, block
// and mutex profiles. Block and mutex sampling is enabled only for the window.
func (c *Collector) Collect(ctx context.Context, d time.Duration) (*Bundle, error) {
	if !c.mu.TryLock() {
		return nil, ErrCollectionRunning
	}
	defer c.mu.Unlock()

	if d <= 0 {
		d = DefaultDuration
	}
	if d > MaxDuration {
		d = MaxDuration
	}

	runtime.SetBlockProfileRate(1)
	runtime.SetMutexProfileFraction(1)
	defer func() {
		runtime.SetBlockProfileRate(0)
		runtime.SetMutexProfileFraction(0)
	}()

	var cpuBuf, traceBuf bytes.Buffer
	if err := pprof.StartCPUProfile(&cpuBuf); err != nil {
		return nil, fmt.Errorf("start cpu profile: %w", err)
	}
	if err := trace.Start(&traceBuf); err != nil {
		pprof.StopCPUProfile()
		return nil, fmt.Errorf("start trace: %w", err)
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		pprof.StopCPUProfile()
		trace.Stop()
		return nil, ctx.Err()
	}
	pprof.StopCPUProfile()
	trace.Stop()

	host, _ := os.Hostname()
	b := &Bundle{
		Host:     host,
		TakenAt:  time.Now(),
		Duration: d,
		Profiles: []Profile{
			{Name: "cpu.pprof", Data: cpuBuf.Bytes()},
			{Name: "trace.out", Data: traceBuf.Bytes()},
		},
	}

	var heap bytes.Buffer
	if err := pprof.WriteHeapProfile(&heap); err != nil {
		return nil, fmt.Errorf("write heap profile: %w", err)
	}
	b.Profiles = append(b.Profiles, Profile{Name: "heap.pprof", Data: heap.Bytes()})

	for _, name := range []string{"goroutine", "block", "mutex"} {
		p := pprof.Lookup(name)
		if p == nil {
			continue
		}
		var buf bytes.Buffer
		if err := p.WriteTo(&buf, 0); err != nil {
			return nil, fmt.Errorf("write %s profile: %w", name, err)
		}
		b.Profiles = append(b.Profiles, Profile{Name: name + ".pprof", Data: buf.Bytes()})
	}
	return b, nil
}

// WriteZip writes every profile of b as a zip archive.
func (b *Bundle) WriteZip(w io.Writer) error {
	zw := zip.NewWriter(w)
	for _, p := range b.Profiles {
		f, err := zw.CreateHeader(&zip.FileHeader{
			Name:     p.Name,
			Method:   zip.Deflate,
			Modified: b.TakenAt,
		})
		if err != nil {
			return err
		}
		if _, err := f.Write(p.Data); err != nil {
			return err
		}
	}
	return zw.Close()
}

// Handler serves GET ?seconds=N and responds with the bundle as a zip.
func (c *Collector) Handler() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		d := DefaultDuration
		if raw := ctx.Query("seconds"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "seconds must be a positive integer"})
				return
			}
			d = time.Duration(n) * time.Second
		}

		reqCtx := ctx.Request.Context()
		logger.Info(reqCtx).Dur("duration", d).Msg("profile collection started")
		b, err := c.Collect(reqCtx, d)
		if errors.Is(err, ErrCollectionRunning) {
			ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			logger.Error(reqCtx).Err(err).Msg("profile collection failed")
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		name := fmt.Sprintf("profile-%s-%d.zip", b.Host, b.TakenAt.Unix())
		ctx.Header("Content-Disposition", `attachment; filename="`+name+`"`)
		ctx.Header("Content-Type", "application/zip")
		ctx.Status(http.StatusOK)
		if err := b.WriteZip(ctx.Writer); err != nil {
			logger.Error(reqCtx).Err(err).Msg("write profile bundle")
		}
	}
}
