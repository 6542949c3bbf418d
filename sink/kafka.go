// Copyright © 2022 Meroxa, Inc & Yalantis.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sink

import (
	"context"
	"fmt"
	"sort"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/conduitio-labs/conduit-connector-influxdb/source/emitter"
)

type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// Kafka produces events to a Kafka topic.
type Kafka struct {
	topic  string
	client producer
}

// NewKafka creates a Kafka sink that produces to topic through the given brokers.
func NewKafka(brokers []string, topic string) (*Kafka, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	return &Kafka{topic: topic, client: client}, nil
}

// AcceptBatch produces events and waits until every one of them is acknowledged.
func (k *Kafka) AcceptBatch(ctx context.Context, events []emitter.Event) error {
	if k.client == nil {
		return ErrClosed
	}

	if err := k.client.ProduceSync(ctx, Records(k.topic, events)...).FirstErr(); err != nil {
		return fmt.Errorf("produce %d records: %w", len(events), err)
	}

	return nil
}

// Close waits for buffered records and closes the client.
func (k *Kafka) Close(context.Context) error {
	if k.client != nil {
		k.client.Close()
		k.client = nil
	}

	return nil
}

// Records converts events into Kafka records keyed by the event index.
// Headers are sorted by key.
func Records(topic string, events []emitter.Event) []*kgo.Record {
	records := make([]*kgo.Record, 0, len(events))

	for i := range events {
		keys := make([]string, 0, len(events[i].Headers))
		for key := range events[i].Headers {
			keys = append(keys, key)
		}

		sort.Strings(keys)

		headers := make([]kgo.RecordHeader, 0, len(keys))
		for _, key := range keys {
			headers = append(headers, kgo.RecordHeader{Key: key, Value: []byte(events[i].Headers[key])})
		}

		records = append(records, &kgo.Record{
			Topic:   topic,
			Key:     []byte(events[i].Headers[emitter.HeaderIndex]),
			Value:   events[i].Body,
			Headers: headers,
		})
	}

	return records
}
