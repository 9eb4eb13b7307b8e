package kinesis

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/example/itservices-cart/internal/domain/cart"
	"github.com/example/itservices-cart/internal/domain/pricing"
	"github.com/example/itservices-cart/internal/infrastructure/store"
)

var reducer = cart.NewReducer(pricing.DefaultTable)

// ConvertFromKinesisRecord converts a cart table change delivered through
// the DynamoDB Kinesis integration into a journal event.
func ConvertFromKinesisRecord(record events.KinesisEventRecord) (*store.Event, error) {
	var dynamoDBRecord events.DynamoDBEventRecord
	if err := json.Unmarshal(record.Kinesis.Data, &dynamoDBRecord); err != nil {
		return nil, fmt.Errorf("failed to unmarshal DynamoDB record: %w", err)
	}
	if dynamoDBRecord.EventID == "" {
		dynamoDBRecord.EventID = record.Kinesis.SequenceNumber
	}
	return ConvertFromDynamoDBStreamRecord(dynamoDBRecord)
}

// ConvertFromDynamoDBStreamRecord converts one cart table change. INSERT
// and MODIFY become CartSynced, REMOVE becomes CartCleared. Other
// records yield nil.
func ConvertFromDynamoDBStreamRecord(record events.DynamoDBEventRecord) (*store.Event, error) {
	switch events.DynamoDBOperationType(record.EventName) {
	case events.DynamoDBOperationTypeInsert, events.DynamoDBOperationTypeModify:
		return convertCartImage(record.EventID, cart.EventCartSynced, record.Change.NewImage, record.Change.ApproximateCreationDateTime.Time)
	case events.DynamoDBOperationTypeRemove:
		return convertCartImage(record.EventID, cart.EventCartCleared, record.Change.OldImage, record.Change.ApproximateCreationDateTime.Time)
	}
	return nil, nil
}

// convertCartImage builds the event from a cart item image. A removed
// cart keeps only its user id.
func convertCartImage(id, eventType string, image map[string]events.DynamoDBAttributeValue, at time.Time) (*store.Event, error) {
	if image == nil {
		return nil, fmt.Errorf("DynamoDB image is nil")
	}

	var userID string
	if v, ok := image["user_id"]; ok && v.DataType() == events.DataTypeString {
		userID = v.String()
	}
	if id == "" || userID == "" {
		return nil, fmt.Errorf("missing required fields: id=%s, user_id=%s", id, userID)
	}

	changed := cart.CartChanged{
		CartID:    cart.GetCartID(userID),
		UserID:    userID,
		ChangedAt: at,
	}
	if v, ok := image["updated_at"]; ok && v.DataType() == events.DataTypeString {
		t, err := time.Parse(time.RFC3339Nano, v.String())
		if err != nil {
			return nil, fmt.Errorf("failed to parse updated_at: %w", err)
		}
		changed.ChangedAt = t
	}

	if eventType == cart.EventCartSynced {
		if v, ok := image["cart_items"]; ok && v.DataType() == events.DataTypeString {
			var items []cart.LineItem
			if err := json.Unmarshal([]byte(v.String()), &items); err != nil {
				return nil, fmt.Errorf("failed to decode cart_items: %w", err)
			}
			snap := reducer.Reprice(items)
			changed.Items = json.RawMessage(v.String())
			changed.ItemCount = snap.ItemCount()
			changed.Subtotal = snap.Subtotal
			changed.Total = snap.Total
		}
	}

	data, err := json.Marshal(changed)
	if err != nil {
		return nil, err
	}
	return &store.Event{
		ID:            id,
		AggregateID:   changed.CartID,
		AggregateType: cart.AggregateType,
		EventType:     eventType,
		Data:          data,
		Timestamp:     changed.ChangedAt,
	}, nil
}

// BatchConvertFromKinesisEvent converts all records from a Kinesis event.
// Returns successfully converted events and any errors encountered.
func BatchConvertFromKinesisEvent(kinesisEvent events.KinesisEvent) ([]*store.Event, []error) {
	var eventList []*store.Event
	var errs []error

	for _, record := range kinesisEvent.Records {
		event, err := ConvertFromKinesisRecord(record)
		if err != nil {
			errs = append(errs, fmt.Errorf("record %s: %w", record.EventID, err))
			continue
		}
		if event != nil {
			eventList = append(eventList, event)
		}
	}

	return eventList, errs
}
