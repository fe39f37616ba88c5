package sink

import (
	"context"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"brandseed/cargo"
	"brandseed/config"
)

// Closer releases whatever connection a sink holds.
type Closer func(context.Context) error

func noopCloser(context.Context) error { return nil }

// Open builds the flush target named by cfg.Sink.Kind.
func Open(ctx context.Context, cfg *config.Config, log *logrus.Entry) (cargo.FlushFunc, Closer, error) {
	switch strings.ToLower(cfg.Sink.Kind) {
	case "", "http":
		log.WithField("url", cfg.URL).Info("sink: posting batches to bulk endpoint")
		h := NewHTTP(cfg.URL, WithAPIKey(cfg.APIKey), WithHTTPClient(&http.Client{}))
		return h.Submit, noopCloser, nil

	case "elasticsearch":
		log.WithFields(logrus.Fields{
			"addresses": cfg.Sink.Elastic.Addresses,
			"index":     cfg.Sink.Elastic.Index,
		}).Info("sink: writing batches to elasticsearch")
		es, err := NewElastic(cfg.Sink.Elastic.Addresses, cfg.Sink.Elastic.Index)
		if err != nil {
			return nil, nil, err
		}
		created, err := es.EnsureIndex(ctx)
		if err != nil {
			return nil, nil, err
		}
		if created {
			log.WithField("index", cfg.Sink.Elastic.Index).Info("sink: created index with brand mapping")
		}
		return es.Submit, noopCloser, nil

	case "mongo":
		log.WithFields(logrus.Fields{
			"database":   cfg.Sink.Mongo.Database,
			"collection": cfg.Sink.Mongo.Collection,
		}).Info("sink: upserting batches into mongo")
		m, disconnect, err := NewMongo(ctx, cfg.Sink.Mongo.URI, cfg.Sink.Mongo.Database, cfg.Sink.Mongo.Collection)
		if err != nil {
			return nil, nil, err
		}
		return m.Submit, disconnect, nil
	}
	return nil, nil, errors.Errorf("unknown sink %q", cfg.Sink.Kind)
}
