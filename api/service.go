package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dan13ram/yusd-settlement/app"
	"github.com/dan13ram/yusd-settlement/models"
	log "github.com/sirupsen/logrus"
)

const (
	APIServiceName = "API"

	shutdownTimeout = 10 * time.Second
)

// APIService serves a Server until stopped.
type APIService struct {
	wg     *sync.WaitGroup
	server *http.Server

	healthMu  sync.RWMutex
	startedAt time.Time
	serving   bool
}

func (x *APIService) setServing(serving bool) {
	x.healthMu.Lock()
	defer x.healthMu.Unlock()
	x.serving = serving
	if serving {
		x.startedAt = time.Now()
	}
}

func (x *APIService) Start() {
	log.Info("[API] Listening on ", x.server.Addr)
	x.setServing(true)
	err := x.server.ListenAndServe()
	x.setServing(false)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("[API] Server stopped: ", err)
	}
	log.Info("[API] Stopped service")
	x.wg.Done()
}

func (x *APIService) Health() models.ServiceHealth {
	x.healthMu.RLock()
	defer x.healthMu.RUnlock()
	now := time.Now()
	return models.ServiceHealth{
		Name:         APIServiceName,
		LastSyncTime: now,
		NextSyncTime: now,
		Healthy:      x.serving,
	}
}

func (x *APIService) Stop() {
	log.Debug("[API] Stopping service")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := x.server.Shutdown(ctx); err != nil {
		log.Error("[API] Error shutting down: ", err)
	}
}

// NewAPIService builds the API from config, or returns an empty service when
// it is disabled.
func NewAPIService(opts Options, wg *sync.WaitGroup) app.Service {
	if !app.Config.API.Enabled {
		log.Debug("[API] API disabled")
		return app.NewEmptyService(wg)
	}

	opts.RequestsPerMinute = app.Config.API.RequestsPerMinute
	opts.Burst = app.Config.API.Burst
	opts.SignatureMaxAge = time.Duration(app.Config.API.SignatureMaxAgeMillis) * time.Millisecond

	server := NewServer(opts)
	log.Info("[API] Initialized API")
	return &APIService{
		wg: wg,
		server: &http.Server{
			Addr:              app.Config.API.ListenAddress,
			Handler:           server.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}
