package storage

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/intake-api/pkg/blobstore"
	"github.com/jwalitptl/intake-api/pkg/metrics"
)

const (
	statusKey           = "status"
	defaultProbeTimeout = 10 * time.Second
)

// Status is the result of a blob storage connectivity probe.
type Status struct {
	Connected bool   `json:"connected"`
	Error     string `json:"error,omitempty"`
}

type Service struct {
	uploader blobstore.Uploader
	cache    *cache.Cache
	timeout  time.Duration
	metrics  *metrics.Metrics
}

// NewService caches probe results for ttl. A ttl of zero or less probes on
// every call.
func NewService(uploader blobstore.Uploader, ttl time.Duration, m *metrics.Metrics) *Service {
	s := &Service{
		uploader: uploader,
		timeout:  defaultProbeTimeout,
		metrics:  m,
	}
	if ttl > 0 {
		s.cache = cache.New(ttl, 2*ttl)
	}
	return s
}

// Status never fails: an unreachable store is reported in the result.
func (s *Service) Status(ctx context.Context) Status {
	if s.cache != nil {
		if v, ok := s.cache.Get(statusKey); ok {
			st := v.(Status)
			s.metrics.IncStatusProbe(st.Connected, true)
			return st
		}
	}

	probeCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	err := s.uploader.Ping(probeCtx)
	s.metrics.ObserveCollaborator("uploader", "ping", start, err)

	st := Status{Connected: err == nil}
	if err != nil {
		st.Error = err.Error()
	}
	s.metrics.IncStatusProbe(st.Connected, false)

	// A probe cut short by the caller says nothing about the store.
	if s.cache != nil && ctx.Err() == nil {
		s.cache.SetDefault(statusKey, st)
	}
	return st
}
