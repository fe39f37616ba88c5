package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/pkg/errors"

	"brandseed/cargo"
)

// brandMapping types the brand fields the search side queries on: slug is an
// exact keyword, name is analyzed with keyword and search-as-you-type subfields.
const brandMapping = `{
	"mappings": {
		"properties": {
			"id": {"type": "long"},
			"version": {"type": "long"},
			"slug": {"type": "keyword"},
			"name": {
				"type": "text",
				"fields": {
					"keyword": {"type": "keyword"},
					"search_as_type": {"type": "search_as_you_type"}
				}
			},
			"description": {"type": "text"},
			"image_url": {"type": "keyword"}
		}
	}
}`

type bulkAction struct {
	Index bulkMeta `json:"index"`
}

type bulkMeta struct {
	ID string `json:"_id"`
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	} `json:"items"`
}

// Elastic writes batches straight into an Elasticsearch index through the
// _bulk API, using the brand id as document id.
type Elastic struct {
	client *elasticsearch.Client
	index  string
}

func NewElastic(addresses []string, index string) (*Elastic, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:     addresses,
		RetryOnStatus: []int{502, 503, 504, 429},
		MaxRetries:    5,
	})
	if err != nil {
		return nil, errors.Wrap(err, "elasticsearch client")
	}
	return &Elastic{client: es, index: index}, nil
}

// EnsureIndex creates the index with the brand mapping when it does not exist
// yet. An existing index is left untouched.
func (e *Elastic) EnsureIndex(ctx context.Context) (created bool, err error) {
	res, err := e.client.Indices.Exists(
		[]string{e.index},
		e.client.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		return false, errors.Wrapf(err, "check index %s", e.index)
	}
	code := res.StatusCode
	res.Body.Close()

	switch code {
	case http.StatusOK:
		return false, nil
	case http.StatusNotFound:
	default:
		// HEAD carries no body to quote
		return false, errors.Wrapf(&StatusError{Code: code}, "check index %s", e.index)
	}

	res, err = e.client.Indices.Create(
		e.index,
		e.client.Indices.Create.WithBody(strings.NewReader(brandMapping)),
		e.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return false, errors.Wrapf(err, "create index %s", e.index)
	}
	defer res.Body.Close()
	if res.IsError() {
		return false, errors.Wrapf(newStatusError(res.StatusCode, res.Body), "create index %s", e.index)
	}
	return true, nil
}

func (e *Elastic) Submit(ctx context.Context, b cargo.Batch) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range b.Records {
		if err := enc.Encode(bulkAction{Index: bulkMeta{ID: strconv.FormatInt(r.ID, 10)}}); err != nil {
			return errors.Wrap(err, "encode bulk action")
		}
		if err := enc.Encode(r); err != nil {
			return errors.Wrap(err, "encode brand")
		}
	}

	res, err := e.client.Bulk(
		bytes.NewReader(buf.Bytes()),
		e.client.Bulk.WithContext(ctx),
		e.client.Bulk.WithIndex(e.index),
	)
	if err != nil {
		return errors.Wrap(err, "elasticsearch bulk")
	}
	defer res.Body.Close()

	if res.IsError() {
		return newStatusError(res.StatusCode, res.Body)
	}

	var blk bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&blk); err != nil {
		return errors.Wrap(err, "decode bulk response")
	}
	if !blk.Errors {
		return nil
	}

	rejected := 0
	var first error
	for _, item := range blk.Items {
		for _, d := range item {
			if d.Error == nil {
				continue
			}
			rejected++
			if first == nil {
				first = errors.Errorf("document %s: [%d] %s: %s", d.ID, d.Status, d.Error.Type, d.Error.Reason)
			}
		}
	}
	if first == nil {
		return errors.New("elasticsearch bulk reported errors")
	}
	return errors.Wrapf(first, "elasticsearch rejected %d of %d documents", rejected, len(b.Records))
}
