package app

import (
	"sync"
	"time"

	"github.com/dan13ram/yusd-settlement/models"
	log "github.com/sirupsen/logrus"
)

type Service interface {
	Start()
	Health() models.ServiceHealth
	Stop()
}

type EmptyService struct {
	wg *sync.WaitGroup
}

func (e *EmptyService) Start() {}

func (e *EmptyService) Stop() {
	e.wg.Done()
}

const EmptyServiceName = "empty"

func (e *EmptyService) Health() models.ServiceHealth {
	return models.ServiceHealth{
		Name:         EmptyServiceName,
		LastSyncTime: time.Now(),
		NextSyncTime: time.Now(),
		Healthy:      true,
	}
}

func NewEmptyService(wg *sync.WaitGroup) *EmptyService {
	return &EmptyService{
		wg: wg,
	}
}

// Runner is a unit of periodic work driven by a RunnerService.
type Runner interface {
	Run()
	Status() models.RunnerStatus
}

type RunnerService struct {
	name   string
	runner Runner
	stop   chan bool
	wg     *sync.WaitGroup

	interval     time.Duration
	lastSyncTime time.Time
	healthMu     sync.RWMutex
}

func (x *RunnerService) Start() {
	log.Info("[", x.name, "] Starting service")
	stop := false
	for !stop {
		log.Info("[", x.name, "] Starting sync")

		x.runner.Run()

		x.healthMu.Lock()
		x.lastSyncTime = time.Now()
		x.healthMu.Unlock()

		log.Info("[", x.name, "] Finished sync, sleeping for ", x.interval)

		select {
		case <-x.stop:
			stop = true
			log.Info("[", x.name, "] Stopped service")
		case <-time.After(x.interval):
		}
	}
	x.wg.Done()
}

func (x *RunnerService) Health() models.ServiceHealth {
	x.healthMu.RLock()
	lastSyncTime := x.lastSyncTime
	x.healthMu.RUnlock()

	status := x.runner.Status()
	return models.ServiceHealth{
		Name:         x.name,
		LastSyncTime: lastSyncTime,
		NextSyncTime: lastSyncTime.Add(x.interval),
		Processed:    status.Processed,
		Failed:       status.Failed,
		Healthy:      true,
	}
}

func (x *RunnerService) Runner() Runner {
	return x.runner
}

// Stop does not block when the service was never started.
func (x *RunnerService) Stop() {
	log.Debug("[", x.name, "] Stopping service")
	select {
	case x.stop <- true:
	default:
	}
}

func NewRunnerService(
	name string,
	runner Runner,
	wg *sync.WaitGroup,
	interval time.Duration,
) *RunnerService {
	if runner == nil || name == "" || interval <= 0 {
		log.Debug("[RUNNER] Invalid parameters")
		return nil
	}

	return &RunnerService{
		name:     name,
		runner:   runner,
		stop:     make(chan bool, 1),
		wg:       wg,
		interval: interval,
	}
}
