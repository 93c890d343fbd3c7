package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	CollectionHealthChecks = "healthchecks"
)

type Health struct {
	Id             *primitive.ObjectID `bson:"_id,omitempty"`
	InstanceId     string              `bson:"instance_id"`
	Hostname       string              `bson:"hostname"`
	CoreAddress    string              `bson:"core_address"`
	YusdToken      string              `bson:"yusd_token"`
	Healthy        bool                `bson:"healthy"`
	ServiceHealths []ServiceHealth     `bson:"service_healths"`
	CreatedAt      time.Time           `bson:"created_at"`
	UpdatedAt      time.Time           `bson:"updated_at"`
}

type ServiceHealth struct {
	Name         string    `bson:"name" json:"name"`
	LastSyncTime time.Time `bson:"last_sync_time" json:"last_sync_time"`
	NextSyncTime time.Time `bson:"next_sync_time" json:"next_sync_time"`
	Processed    string    `bson:"processed" json:"processed"`
	Failed       string    `bson:"failed" json:"failed"`
	Healthy      bool      `bson:"healthy" json:"healthy"`
}

type RunnerStatus struct {
	Processed string
	Failed    string
}
