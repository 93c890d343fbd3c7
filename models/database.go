package models

import "go.mongodb.org/mongo-driver/bson/primitive"

type Database interface {
	Connect() error
	SetupLocker() error
	SetupIndexes() error
	Disconnect() error

	InsertOne(collection string, data interface{}) (primitive.ObjectID, error)
	FindOne(collection string, filter interface{}, result interface{}) error
	FindMany(collection string, filter interface{}, result interface{}) error
	FindManySorted(collection string, filter interface{}, sort interface{}, limit int64, result interface{}) error
	UpdateOne(collection string, filter interface{}, update interface{}) (int64, error)
	UpsertOne(collection string, filter interface{}, update interface{}) (primitive.ObjectID, error)
	DeleteOne(collection string, filter interface{}) error

	// WithTransaction runs fn against a Database bound to one transaction.
	// Every write made through tx is committed together or not at all.
	WithTransaction(fn func(tx Database) error) error

	XLock(resourceId string) (string, error)
	SLock(resourceId string) (string, error)
	Unlock(lockId string) error
}
