// Package mongo implements the store on MongoDB with the official v2
// driver: atomic status upserts through FindOneAndUpdate, $lookup
// aggregation for the console listing, index creation on Migrate.
//
// The caller owns the client lifecycle -- the store never disconnects
// it. Pass the database handle through the constructor:
//
//	import (
//	    mongod "go.mongodb.org/mongo-driver/v2/mongo"
//	    "go.mongodb.org/mongo-driver/v2/mongo/options"
//
//	    "github.com/Ricou-IA/baikal-ingest/store/mongo"
//	)
//
//	client, _ := mongod.Connect(options.Client().ApplyURI(uri))
//	store := mongo.New(client.Database("ingest"))
//	store.Migrate(ctx)
package mongo
