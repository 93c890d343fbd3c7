package app

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/dan13ram/yusd-settlement/models"
	log "github.com/sirupsen/logrus"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	lock "github.com/square/mongo-lock"
)

// mongoDatabase is a wrapper around the mongo database
type mongoDatabase struct {
	db       *mongo.Database
	uri      string
	database string
	timeout  time.Duration
	locker   *lock.Client
	session  mongo.SessionContext
}

var (
	DB models.Database
)

func (d *mongoDatabase) context() (context.Context, context.CancelFunc) {
	var parent context.Context = context.Background()
	if d.session != nil {
		parent = d.session
	}
	return context.WithTimeout(parent, d.timeout)
}

// Connect connects to the database
func (d *mongoDatabase) Connect() error {
	log.Debug("[DB] Connecting to database")
	wcMajority := writeconcern.Majority()
	wcMajority.WTimeout = d.timeout

	ctx, cancel := d.context()
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(d.uri).SetWriteConcern(wcMajority))
	if err != nil {
		return err
	}
	d.db = client.Database(d.database)

	log.Info("[DB] Connected to mongo database: ", d.database)
	return nil
}

// SetupLocker sets up the locker
func (d *mongoDatabase) SetupLocker() error {
	log.Debug("[DB] Setting up locker")

	ctx, cancel := d.context()
	defer cancel()

	locker := lock.NewClient(d.db.Collection("locks"))
	err := locker.CreateIndexes(ctx)
	if err != nil {
		return err
	}
	d.locker = locker

	log.Info("[DB] Locker setup")
	return nil
}

func randomString(n int) string {
	const alphanum = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	var bytes = make([]byte, n)
	rand.Read(bytes)
	for i, b := range bytes {
		bytes[i] = alphanum[b%byte(len(alphanum))]
	}
	return string(bytes)
}

// XLock locks a resource for exclusive access
func (d *mongoDatabase) XLock(resourceId string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	lockId := randomString(32)
	err := d.locker.XLock(ctx, resourceId, lockId, lock.LockDetails{TTL: 60})
	return lockId, err
}

// SLock locks a resource for shared access
func (d *mongoDatabase) SLock(resourceId string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	lockId := randomString(32)
	err := d.locker.SLock(ctx, resourceId, lockId, lock.LockDetails{TTL: 60}, -1)
	return lockId, err
}

// Unlock unlocks a resource
func (d *mongoDatabase) Unlock(lockId string) error {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	_, err := d.locker.Unlock(ctx, lockId)
	return err
}

type index struct {
	collection string
	keys       bson.D
	unique     bool
}

var indexes = []index{
	{models.CollectionNonces, bson.D{{Key: "requester", Value: 1}, {Key: "nonce", Value: 1}}, true},
	{models.CollectionRedeemRequests, bson.D{{Key: "request_id", Value: 1}}, true},
	{models.CollectionRedeemRequests, bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}}, false},
	{models.CollectionRateLimits, bson.D{{Key: "kind", Value: 1}}, true},
	{models.CollectionCustodyAccounts, bson.D{{Key: "asset", Value: 1}}, true},
	{models.CollectionSubmissions, bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}}, false},
	{models.CollectionOraclePrices, bson.D{{Key: "feed", Value: 1}}, true},
	{models.CollectionRewardsSnapshots, bson.D{{Key: "snapshot_id", Value: 1}}, true},
	{models.CollectionRewardsClaims, bson.D{{Key: "snapshot_id", Value: 1}, {Key: "account", Value: 1}}, true},
	{models.CollectionHealthChecks, bson.D{{Key: "instance_id", Value: 1}, {Key: "hostname", Value: 1}}, true},
}

// Setup Indexes
func (d *mongoDatabase) SetupIndexes() error {
	log.Debug("[DB] Setting up indexes")

	for _, idx := range indexes {
		log.Debug("[DB] Setting up indexes for ", idx.collection)
		ctx, cancel := d.context()
		_, err := d.db.Collection(idx.collection).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    idx.keys,
			Options: options.Index().SetUnique(idx.unique),
		})
		cancel()
		if err != nil {
			return err
		}
	}

	log.Info("[DB] Indexes setup")
	return nil
}

// Disconnect disconnects from the database
func (d *mongoDatabase) Disconnect() error {
	log.Debug("[DB] Disconnecting from database")
	ctx, cancel := d.context()
	defer cancel()
	err := d.db.Client().Disconnect(ctx)
	log.Info("[DB] Disconnected from database")
	return err
}

// method for insert single value in a collection
func (d *mongoDatabase) InsertOne(collection string, data interface{}) (primitive.ObjectID, error) {
	ctx, cancel := d.context()
	defer cancel()

	res, err := d.db.Collection(collection).InsertOne(ctx, data)
	if err != nil {
		return primitive.NilObjectID, err
	}
	id, _ := res.InsertedID.(primitive.ObjectID)
	return id, nil
}

// method for find single value in a collection
func (d *mongoDatabase) FindOne(collection string, filter interface{}, result interface{}) error {
	ctx, cancel := d.context()
	defer cancel()
	return d.db.Collection(collection).FindOne(ctx, filter).Decode(result)
}

// method for find multiple values in a collection
func (d *mongoDatabase) FindMany(collection string, filter interface{}, result interface{}) error {
	ctx, cancel := d.context()
	defer cancel()
	cursor, err := d.db.Collection(collection).Find(ctx, filter)
	if err != nil {
		return err
	}
	return cursor.All(ctx, result)
}

// method for find multiple values in a collection in sort order, up to limit
func (d *mongoDatabase) FindManySorted(collection string, filter interface{}, sort interface{}, limit int64, result interface{}) error {
	ctx, cancel := d.context()
	defer cancel()

	opts := options.Find().SetSort(sort)
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cursor, err := d.db.Collection(collection).Find(ctx, filter, opts)
	if err != nil {
		return err
	}
	return cursor.All(ctx, result)
}

// method for update single value in a collection, returns the matched count
func (d *mongoDatabase) UpdateOne(collection string, filter interface{}, update interface{}) (int64, error) {
	ctx, cancel := d.context()
	defer cancel()
	res, err := d.db.Collection(collection).UpdateOne(ctx, filter, update)
	if err != nil {
		return 0, err
	}
	return res.MatchedCount, nil
}

// method for upsert single value in a collection
func (d *mongoDatabase) UpsertOne(collection string, filter interface{}, update interface{}) (primitive.ObjectID, error) {
	ctx, cancel := d.context()
	defer cancel()

	opts := options.Update().SetUpsert(true)
	res, err := d.db.Collection(collection).UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return primitive.NilObjectID, err
	}
	id, _ := res.UpsertedID.(primitive.ObjectID)
	return id, nil
}

func (d *mongoDatabase) DeleteOne(collection string, filter interface{}) error {
	ctx, cancel := d.context()
	defer cancel()
	_, err := d.db.Collection(collection).DeleteOne(ctx, filter)
	return err
}

func (d *mongoDatabase) WithTransaction(fn func(tx models.Database) error) error {
	if d.session != nil {
		return fn(d)
	}

	session, err := d.db.Client().StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 2*d.timeout)
	defer cancel()

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		tx := *d
		tx.session = sessCtx
		return nil, fn(&tx)
	})
	return err
}

// InitDB creates a new database wrapper
func InitDB() {
	DB = &mongoDatabase{
		uri:      Config.MongoDB.URI,
		database: Config.MongoDB.Database,
		timeout:  time.Duration(Config.MongoDB.TimeoutMillis) * time.Millisecond,
	}

	err := DB.Connect()
	if err != nil {
		log.Fatal("[DB] Error connecting to database: ", err)
	}
	err = DB.SetupIndexes()
	if err != nil {
		log.Fatal("[DB] Error setting up indexes: ", err)
	}
	err = DB.SetupLocker()
	if err != nil {
		log.Fatal("[DB] Error setting up locker: ", err)
	}
	log.Info("[DB] Database initialized")
}
