package events

import (
	"context"

	"github.com/alfredjeanlab/tally/internal/model"
)

// Event topic constants
const (
	TopicFactAppended = "tally.fact.appended"

	TopicPartitionCreated  = "tally.partition.created"
	TopicPartitionAdvanced = "tally.partition.advanced"
	TopicPartitionRetired  = "tally.partition.retired"

	TopicCustomerCreated = "tally.customer.created"
	TopicCustomerUpdated = "tally.customer.updated"
	TopicItemCreated     = "tally.item.created"
)

// Event types

type FactAppended struct {
	Fact *model.FactEvent `json:"fact"`
}

type PartitionCreated struct {
	Partition *model.Partition `json:"partition"`
}

type PartitionAdvanced struct {
	Partition *model.Partition     `json:"partition"`
	From      model.PartitionState `json:"from"`
}

type PartitionRetired struct {
	Partition    *model.Partition `json:"partition"`
	ObjectKey    string           `json:"object_key,omitempty"`
	FactsDropped int64            `json:"facts_dropped"`
}

type CustomerCreated struct {
	CustomerID string `json:"customer_id"`
}

type CustomerUpdated struct {
	CustomerID string         `json:"customer_id"`
	Changes    map[string]any `json:"changes"` // field name -> new value
}

type ItemCreated struct {
	Item *model.Item `json:"item"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
