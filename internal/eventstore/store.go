// Package eventstore routes canonical events into date-partitioned OpenSearch
// indices and runs the queries the service needs against them. Events for a
// given UTC calendar date land in `<prefix>-<date>`; reads target `<prefix>-*`.
package eventstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/opensearch-project/opensearch-go/v2/opensearchutil"
	"github.com/vigil-systems/vigil/internal/client"
	"github.com/vigil-systems/vigil/internal/models"
)

const searchResultSize = 50

type Store struct {
	client *client.OpenSearchClient
	prefix string
}

func New(osClient *client.OpenSearchClient, prefix string) *Store {
	return &Store{
		client: osClient,
		prefix: prefix,
	}
}

// IndexFor returns the physical partition for an event timestamp.
func (s *Store) IndexFor(ts time.Time) string {
	return fmt.Sprintf("%s-%s", s.prefix, ts.UTC().Format("2006-01-02"))
}

// Pattern returns the wildcard read pattern covering all partitions.
func (s *Store) Pattern() string {
	return s.prefix + "-*"
}

// BulkIndex writes a finite batch of events in a single bulk operation,
// each document targeting its own date partition. An empty batch performs
// no write. A failed bulk write surfaces as an error; partially applied
// bulks are not rolled back.
func (s *Store) BulkIndex(ctx context.Context, events []models.LogEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	var (
		mu       sync.Mutex
		indexed  int
		failed   int
		reasons  []string
		flushErr error
	)

	// A request-level bulk failure (the /_bulk call itself errors out)
	// never reaches the per-item callbacks; it only surfaces here.
	bi, err := opensearchutil.NewBulkIndexer(opensearchutil.BulkIndexerConfig{
		Client: s.client.Client(),
		OnError: func(ctx context.Context, err error) {
			mu.Lock()
			if flushErr == nil {
				flushErr = err
			}
			mu.Unlock()
		},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create bulk indexer: %w", err)
	}

	for _, event := range events {
		data, err := json.Marshal(event)
		if err != nil {
			mu.Lock()
			failed++
			reasons = append(reasons, fmt.Sprintf("marshal event: %v", err))
			mu.Unlock()
			continue
		}

		err = bi.Add(ctx, opensearchutil.BulkIndexerItem{
			Action: "index",
			Index:  s.IndexFor(event.Timestamp),
			Body:   bytes.NewReader(data),
			OnSuccess: func(ctx context.Context, item opensearchutil.BulkIndexerItem, res opensearchutil.BulkIndexerResponseItem) {
				mu.Lock()
				indexed++
				mu.Unlock()
			},
			OnFailure: func(ctx context.Context, item opensearchutil.BulkIndexerItem, res opensearchutil.BulkIndexerResponseItem, err error) {
				mu.Lock()
				failed++
				if err != nil {
					reasons = append(reasons, err.Error())
				} else {
					reasons = append(reasons, fmt.Sprintf("%s: %s", res.Error.Type, res.Error.Reason))
				}
				mu.Unlock()
			},
		})
		if err != nil {
			mu.Lock()
			failed++
			reasons = append(reasons, fmt.Sprintf("add to bulk indexer: %v", err))
			mu.Unlock()
		}
	}

	if err := bi.Close(ctx); err != nil {
		return indexed, fmt.Errorf("bulk indexer close: %w", err)
	}

	if flushErr != nil {
		return indexed, fmt.Errorf("bulk flush: %w", flushErr)
	}
	if failed > 0 {
		return indexed, fmt.Errorf("bulk index: %d of %d events failed: %s", failed, len(events), reasons[0])
	}
	if indexed != len(events) {
		return indexed, fmt.Errorf("bulk index: %d of %d events unaccounted for", len(events)-indexed, len(events))
	}
	return indexed, nil
}

// Search runs a filtered full-text search across all partitions, newest first.
func (s *Store) Search(ctx context.Context, req models.SearchRequest) ([]models.SearchHit, error) {
	query := buildSearchQuery(req)

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}

	osc := s.client.Client()
	res, err := osc.Search(
		osc.Search.WithContext(ctx),
		osc.Search.WithIndex(s.Pattern()),
		osc.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search error: %s", res.String())
	}

	var searchResult struct {
		Hits struct {
			Hits []struct {
				Source map[string]interface{} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&searchResult); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	hits := make([]models.SearchHit, 0, len(searchResult.Hits.Hits))
	for _, hit := range searchResult.Hits.Hits {
		src := hit.Source
		ts := stringField(src, "@timestamp")
		if ts == "" {
			ts = stringField(src, "timestamp")
		}
		hits = append(hits, models.SearchHit{
			Timestamp: ts,
			Level:     stringField(src, "level"),
			Action:    stringField(src, "action"),
			Username:  stringField(src, "username"),
			IP:        stringField(src, "ip"),
			Country:   stringField(src, "country"),
			Message:   stringField(src, "message"),
		})
	}
	return hits, nil
}

// IPCount is one bucket of the failed-login aggregation.
type IPCount struct {
	IP    string
	Count int
}

// CountFailedLoginsByIP aggregates LOGIN_FAILED events per source IP over
// [now-lookback, now], returning at most topN buckets ordered by count.
// Bucket tie-break ordering at the topN cutoff is the store's own.
func (s *Store) CountFailedLoginsByIP(ctx context.Context, now time.Time, lookback time.Duration, topN int) ([]IPCount, error) {
	query := map[string]interface{}{
		"size": 0,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": []interface{}{
					map[string]interface{}{
						"term": map[string]interface{}{"action.keyword": "LOGIN_FAILED"},
					},
					map[string]interface{}{
						"range": map[string]interface{}{
							"@timestamp": map[string]interface{}{
								"gte": now.Add(-lookback).UTC().Format(time.RFC3339),
								"lte": now.UTC().Format(time.RFC3339),
							},
						},
					},
				},
			},
		},
		"aggs": map[string]interface{}{
			"by_ip": map[string]interface{}{
				"terms": map[string]interface{}{
					"field": "ip.keyword",
					"size":  topN,
				},
			},
		},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}

	osc := s.client.Client()
	res, err := osc.Search(
		osc.Search.WithContext(ctx),
		osc.Search.WithIndex(s.Pattern()),
		osc.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("aggregation request: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("aggregation error: %s", res.String())
	}

	var aggResult struct {
		Aggregations struct {
			ByIP struct {
				Buckets []struct {
					Key      string `json:"key"`
					DocCount int    `json:"doc_count"`
				} `json:"buckets"`
			} `json:"by_ip"`
		} `json:"aggregations"`
	}
	if err := json.NewDecoder(res.Body).Decode(&aggResult); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	counts := make([]IPCount, 0, len(aggResult.Aggregations.ByIP.Buckets))
	for _, bucket := range aggResult.Aggregations.ByIP.Buckets {
		counts = append(counts, IPCount{IP: bucket.Key, Count: bucket.DocCount})
	}
	return counts, nil
}

// EnsureTemplate installs the index template covering all event partitions.
func (s *Store) EnsureTemplate(ctx context.Context) error {
	template := map[string]interface{}{
		"index_patterns": []string{s.Pattern()},
		"template": map[string]interface{}{
			"settings": map[string]interface{}{
				"number_of_shards":   1,
				"number_of_replicas": 0,
			},
			"mappings": eventMappings(),
		},
		"priority": 100,
	}

	body, err := json.Marshal(template)
	if err != nil {
		return err
	}

	osc := s.client.Client()
	res, err := osc.Indices.PutIndexTemplate(
		s.prefix+"-template",
		bytes.NewReader(body),
		osc.Indices.PutIndexTemplate.WithContext(ctx),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		return fmt.Errorf("failed to create index template: %s - %s", res.Status(), string(bodyBytes))
	}
	return nil
}

func eventMappings() map[string]interface{} {
	keywordText := func() map[string]interface{} {
		return map[string]interface{}{
			"type": "text",
			"fields": map[string]interface{}{
				"keyword": map[string]interface{}{
					"type":         "keyword",
					"ignore_above": 256,
				},
			},
		}
	}

	return map[string]interface{}{
		"properties": map[string]interface{}{
			"@timestamp": map[string]interface{}{
				"type": "date",
			},
			"timestamp": keywordText(),
			"level":     keywordText(),
			"action":    keywordText(),
			"username":  keywordText(),
			"ip":        keywordText(),
			"country":   keywordText(),
			"resource":  keywordText(),
			"user_agent": map[string]interface{}{
				"type": "text",
			},
			"message": map[string]interface{}{
				"type": "text",
			},
		},
	}
}

func buildSearchQuery(req models.SearchRequest) map[string]interface{} {
	must := []interface{}{}
	filter := []interface{}{}

	if req.Query != "" {
		must = append(must, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  req.Query,
				"fields": []string{"username", "ip", "country", "action", "message"},
			},
		})
	}
	if len(must) == 0 {
		must = append(must, map[string]interface{}{"match_all": map[string]interface{}{}})
	}

	if req.Action != "" {
		filter = append(filter, map[string]interface{}{
			"term": map[string]interface{}{"action.keyword": req.Action},
		})
	}

	if req.From != "" || req.To != "" {
		rangeBody := map[string]interface{}{}
		if req.From != "" {
			rangeBody["gte"] = req.From
		}
		if req.To != "" {
			rangeBody["lte"] = req.To
		}
		filter = append(filter, map[string]interface{}{
			"range": map[string]interface{}{"@timestamp": rangeBody},
		})
	}

	return map[string]interface{}{
		"size": searchResultSize,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must":   must,
				"filter": filter,
			},
		},
		"sort": []interface{}{
			map[string]interface{}{"@timestamp": map[string]interface{}{"order": "desc"}},
		},
	}
}

func stringField(src map[string]interface{}, name string) string {
	if v, ok := src[name].(string); ok {
		return v
	}
	return ""
}
