package app

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dan13ram/yusd-settlement/models"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
)

const (
	HealthServiceName = "HEALTH"
)

type HealthCheckRunner struct {
	instanceId  string
	hostname    string
	coreAddress string
	yusdToken   string

	services   []Service
	servicesMu sync.RWMutex
}

func (x *HealthCheckRunner) Run() {
	x.PostHealth()
}

func (x *HealthCheckRunner) Status() models.RunnerStatus {
	return models.RunnerStatus{}
}

func (x *HealthCheckRunner) FindLastHealth() (models.Health, error) {
	var health models.Health
	filter := bson.M{
		"instance_id": x.instanceId,
		"hostname":    x.hostname,
	}
	err := DB.FindOne(models.CollectionHealthChecks, filter, &health)
	return health, err
}

func (x *HealthCheckRunner) SetServices(services []Service) {
	x.servicesMu.Lock()
	defer x.servicesMu.Unlock()
	x.services = services
}

// ServiceHealths skips placeholder services.
func (x *HealthCheckRunner) ServiceHealths() []models.ServiceHealth {
	x.servicesMu.RLock()
	defer x.servicesMu.RUnlock()

	var serviceHealths []models.ServiceHealth
	for _, service := range x.services {
		health := service.Health()
		if health.Name == EmptyServiceName {
			continue
		}
		serviceHealths = append(serviceHealths, health)
	}
	return serviceHealths
}

func (x *HealthCheckRunner) PostHealth() bool {
	log.Debug("[HEALTH] Posting health")

	filter := bson.M{
		"instance_id": x.instanceId,
		"hostname":    x.hostname,
	}

	onInsert := bson.M{
		"instance_id":  x.instanceId,
		"hostname":     x.hostname,
		"core_address": x.coreAddress,
		"yusd_token":   x.yusdToken,
		"created_at":   time.Now(),
	}

	serviceHealths := x.ServiceHealths()
	healthy := true
	for _, health := range serviceHealths {
		healthy = healthy && health.Healthy
	}

	onUpdate := bson.M{
		"healthy":         healthy,
		"service_healths": serviceHealths,
		"updated_at":      time.Now(),
	}

	update := bson.M{"$set": onUpdate, "$setOnInsert": onInsert}

	if _, err := DB.UpsertOne(models.CollectionHealthChecks, filter, update); err != nil {
		log.Error("[HEALTH] Error posting health: ", err)
		return false
	}

	log.Info("[HEALTH] Posted health")
	return true
}

func newHealthCheck() *HealthCheckRunner {
	hostname, err := os.Hostname()
	if err != nil {
		log.Fatal("[HEALTH] Error getting hostname: ", err)
	}

	return &HealthCheckRunner{
		instanceId:  Config.Settlement.InstanceId,
		hostname:    hostname,
		coreAddress: strings.ToLower(Config.Settlement.CoreAddress),
		yusdToken:   strings.ToLower(Config.Settlement.YusdToken),
	}
}

func NewHealthCheck() *HealthCheckRunner {
	log.Debug("[HEALTH] Initializing health")

	x := newHealthCheck()

	log.Info("[HEALTH] Initialized health")
	return x
}
