package dedup

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"go-marugujarat-scraper/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoTimeout = 10 * time.Second

type mongoEntry struct {
	Identity        string    `bson:"identity"`
	Title           string    `bson:"title"`
	URL             string    `bson:"url"`
	PublishedMarker string    `bson:"published_marker,omitempty"`
	Category        string    `bson:"category,omitempty"`
	ApplyURL        string    `bson:"apply_url,omitempty"`
	Description     string    `bson:"description,omitempty"`
	FirstSeen       time.Time `bson:"first_seen"`
}

type mongoBackend struct {
	uri        string
	database   string
	collection string
}

func (b *mongoBackend) Location() string {
	host := "mongo"
	if u, err := url.Parse(b.uri); err == nil && u.Host != "" {
		host = u.Scheme + "://" + u.Host
	}
	return fmt.Sprintf("%s/%s.%s", host, b.database, b.collection)
}

func (b *mongoBackend) connect(ctx context.Context) (*mongo.Client, error) {
	cctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	client, err := mongo.Connect(cctx, options.Client().ApplyURI(b.uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(cctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("can't ping MongoDB: %w", err)
	}
	return client, nil
}

func (b *mongoBackend) Read(ctx context.Context) ([]Entry, error) {
	client, err := b.connect(ctx)
	if err != nil {
		return nil, ioErr("load", b.Location(), err)
	}
	defer client.Disconnect(context.Background())

	coll := client.Database(b.database).Collection(b.collection)
	cursor, err := coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "first_seen", Value: 1}}))
	if err != nil {
		return nil, ioErr("load", b.Location(), err)
	}
	defer cursor.Close(ctx)

	var entries []Entry
	for cursor.Next(ctx) {
		var doc mongoEntry
		if err := cursor.Decode(&doc); err != nil {
			return nil, corruptErr("load", b.Location(), err)
		}
		e := Entry{
			Identity: doc.Identity,
			Listing: models.Listing{
				Title:           doc.Title,
				URL:             doc.URL,
				PublishedMarker: doc.PublishedMarker,
				Category:        doc.Category,
				ApplyURL:        doc.ApplyURL,
				Description:     doc.Description,
			},
			FirstSeen: doc.FirstSeen.UTC(),
		}
		if err := fillEntry(&e, ""); err != nil {
			return nil, corruptErr("load", b.Location(), err)
		}
		entries = append(entries, e)
	}
	if err := cursor.Err(); err != nil {
		return nil, ioErr("load", b.Location(), err)
	}
	return entries, nil
}

func (b *mongoBackend) Commit(ctx context.Context, _, pending []Entry) error {
	client, err := b.connect(ctx)
	if err != nil {
		return ioErr("flush", b.Location(), err)
	}
	defer client.Disconnect(context.Background())

	coll := client.Database(b.database).Collection(b.collection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "identity", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return ioErr("flush", b.Location(), err)
	}
	if len(pending) == 0 {
		return nil
	}

	writes := make([]mongo.WriteModel, 0, len(pending))
	for _, e := range pending {
		doc := mongoEntry{
			Identity:        e.Identity,
			Title:           e.Title,
			URL:             e.URL,
			PublishedMarker: e.PublishedMarker,
			Category:        e.Category,
			ApplyURL:        e.ApplyURL,
			Description:     e.Description,
			FirstSeen:       e.FirstSeen.UTC(),
		}
		//$setOnInsert keeps an existing document untouched
		writes = append(writes, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"identity": e.Identity}).
			SetUpdate(bson.M{"$setOnInsert": doc}).
			SetUpsert(true))
	}
	if _, err := coll.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false)); err != nil {
		return ioErr("flush", b.Location(), err)
	}
	return nil
}
