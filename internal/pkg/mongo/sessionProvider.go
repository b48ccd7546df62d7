package mongo

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/airenas/sumtrainer/internal/pkg/cmdapp"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

//IndexData keeps index creation data
type IndexData struct {
	Table  string
	Field  string
	Unique bool
}

//NewIndexData creates index data
func newIndexData(table string, field string, unique bool) IndexData {
	return IndexData{Table: table, Field: field, Unique: unique}
}

//SessionProvider connects and provides session for mongo DB
type SessionProvider struct {
	client  *mongo.Client
	URL     string
	indexes []IndexData
	m       sync.Mutex // struct field mutex
}

//NewSessionProvider creates Mongo session provider
func NewSessionProvider() (*SessionProvider, error) {
	url := cmdapp.Config.GetString("mongo.url")
	if url == "" {
		return nil, errors.New("No Mongo url provided")
	}
	return &SessionProvider{URL: url, indexes: indexData}, nil
}

//Close closes mongo client
func (sp *SessionProvider) Close() {
	sp.m.Lock()
	defer sp.m.Unlock()
	if sp.client != nil {
		ctx, cancel := mongoContext()
		defer cancel()
		cmdapp.LogIf(sp.client.Disconnect(ctx))
		sp.client = nil
	}
}

//NewSession creates mongo session
func (sp *SessionProvider) NewSession() (mongo.Session, error) {
	sp.m.Lock()
	defer sp.m.Unlock()

	if sp.client == nil {
		cmdapp.Log.Info("Dial mongo: " + hidePass(sp.URL))
		ctx, cancel := mongoContext()
		defer cancel()
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(sp.URL))
		if err != nil {
			return nil, errors.Wrap(err, "Can't dial to mongo")
		}
		if err = client.Ping(ctx, readpref.Primary()); err != nil {
			cmdapp.LogIf(client.Disconnect(context.Background()))
			return nil, errors.Wrap(err, "Can't ping mongo")
		}
		if err = checkIndexes(ctx, client, sp.indexes); err != nil {
			cmdapp.LogIf(client.Disconnect(context.Background()))
			return nil, err
		}
		sp.client = client
	}
	res, err := sp.client.StartSession()
	if err != nil {
		return nil, errors.Wrap(err, "Can't start session")
	}
	return res, nil
}

func checkIndexes(ctx context.Context, c *mongo.Client, indexes []IndexData) error {
	for _, index := range indexes {
		err := checkIndex(ctx, c, index)
		if err != nil {
			return errors.Wrap(err, "Can't create index: "+index.Table+":"+index.Field)
		}
	}
	return nil
}

func checkIndex(ctx context.Context, c *mongo.Client, indexData IndexData) error {
	_, err := c.Database(store).Collection(indexData.Table).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: indexData.Field, Value: 1}},
		Options: options.Index().SetUnique(indexData.Unique).SetSparse(true),
	})
	return err
}

func mongoContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}

func hidePass(s string) string {
	u, err := url.Parse(s)
	if err != nil {
		cmdapp.Log.Warn("Can't parse mongo url.")
		return ""
	}
	_, ps := u.User.Password()
	if ps {
		u.User = url.UserPassword(u.User.Username(), "----")
	}
	return u.String()
}
