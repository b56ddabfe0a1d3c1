package dynamodb

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"bobbin-backend/application/ports"
	"bobbin-backend/domain/events"
	pkgerrors "bobbin-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

// maxBatchWrite is DynamoDB's limit on requests per BatchWriteItem
const maxBatchWrite = 25

// EventLog appends domain events to the owner's partition so a user's
// activity can be replayed. It is an EventPublisher.
type EventLog struct {
	client    API
	tableName string
	retention time.Duration
}

var _ ports.EventPublisher = (*EventLog)(nil)

// eventRecord is the stored form of a domain event
type eventRecord struct {
	PK            string `dynamodbav:"PK"` // USER#<owner>
	SK            string `dynamodbav:"SK"` // EVENT#<timestamp>#<event_id>
	EntityType    string `dynamodbav:"EntityType"`
	EventID       string `dynamodbav:"EventID"`
	EventType     string `dynamodbav:"EventType"`
	AggregateID   string `dynamodbav:"AggregateID"`
	AggregateType string `dynamodbav:"AggregateType"`
	Payload       string `dynamodbav:"Payload"`
	Timestamp     string `dynamodbav:"Timestamp"`
	Version       int    `dynamodbav:"Version"`
	TTL           int64  `dynamodbav:"TTL,omitempty"`
}

// NewEventLog creates an event log on tableName. Records expire after
// retention; zero keeps them forever.
func NewEventLog(client API, tableName string, retention time.Duration) *EventLog {
	return &EventLog{client: client, tableName: tableName, retention: retention}
}

// Publish appends one event
func (l *EventLog) Publish(ctx context.Context, event events.DomainEvent) error {
	return l.PublishBatch(ctx, []events.DomainEvent{event})
}

// PublishBatch appends events in batches of 25
func (l *EventLog) PublishBatch(ctx context.Context, domainEvents []events.DomainEvent) error {
	requests := make([]types.WriteRequest, 0, len(domainEvents))
	for _, event := range domainEvents {
		record, err := l.record(event)
		if err != nil {
			return err
		}
		item, err := attributevalue.MarshalMap(record)
		if err != nil {
			return fmt.Errorf("failed to marshal event record: %w", err)
		}
		requests = append(requests, types.WriteRequest{PutRequest: &types.PutRequest{Item: item}})
	}

	for start := 0; start < len(requests); start += maxBatchWrite {
		end := start + maxBatchWrite
		if end > len(requests) {
			end = len(requests)
		}
		result, err := l.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{l.tableName: requests[start:end]},
		})
		if err != nil {
			return classify("write events", err)
		}
		if pending := len(result.UnprocessedItems[l.tableName]); pending > 0 {
			return pkgerrors.NewUnavailableError("dynamodb").WithDetail("unprocessed_events", pending)
		}
	}
	return nil
}

func (l *EventLog) record(event events.DomainEvent) (eventRecord, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return eventRecord{}, fmt.Errorf("failed to marshal event: %w", err)
	}
	at := event.GetTimestamp().UTC()
	eventID := uuid.New().String()

	record := eventRecord{
		PK:            ownerPK(event.GetOwnerID()),
		SK:            fmt.Sprintf("%s%s#%s", prefixEvent, at.Format(time.RFC3339Nano), eventID),
		EntityType:    entityEvent,
		EventID:       eventID,
		EventType:     event.GetEventType(),
		AggregateID:   event.GetAggregateID(),
		AggregateType: aggregateType(event.GetEventType()),
		Payload:       string(payload),
		Timestamp:     at.Format(time.RFC3339),
		Version:       event.GetVersion(),
	}
	if l.retention > 0 {
		record.TTL = at.Add(l.retention).Unix()
	}
	return record, nil
}

// aggregateType is the entity part of an event type, e.g. "artifact" for
// "artifact.created"
func aggregateType(eventType string) string {
	if kind, _, found := strings.Cut(eventType, "."); found {
		return kind
	}
	return "unknown"
}
