package pubsub

import (
	"errors"
	"fmt"
	"sync"

	"ecosystem.dev/internal/identity"
)

var (
	ErrTopicClosed      error = errors.New("tried to operate on a closed topic")
	ErrTopicDoesntExist error = errors.New("tried to operate on a topic that doesn't exist")
	ErrTopicExists      error = errors.New("tried to create a topic that already exists")
	ErrWrongTopicType   error = errors.New("topic has a different message type")
)

// Identifier of a topic
type TopicId identity.Id

func (topic TopicId) String() string {
	return (identity.Id)(topic).String()
}

type anyTopic interface {
	isClosed() bool
	getInfo() TopicInfo
}

type Topic[T any] struct {
	// `Id` is only set at creation time and isn't written to afterwards.
	Id TopicId

	// This mutex controls the reading and writing of the
	// `subscribers`, `counter` and `closed` fields.
	m sync.Mutex

	counter     int
	closed      bool
	subscribers []chan T
}

type Subscription[T any] struct {
	Out   <-chan T
	topic *Topic[T]
}

func (topic *Topic[T]) addSubscriber(sub chan T) error {
	topic.m.Lock()
	defer topic.m.Unlock()

	if topic.closed {
		return fmt.Errorf("%w: %s", ErrTopicClosed, topic.Id.String())
	}

	topic.subscribers = append(topic.subscribers, sub)

	return nil
}

func (topic *Topic[T]) removeSubscriber(sub <-chan T) {
	topic.m.Lock()
	defer topic.m.Unlock()

	writeIndex := 0
	for readIndex := 0; readIndex < len(topic.subscribers); readIndex++ {
		item := topic.subscribers[readIndex]
		if item == sub {
			close(item)
			continue
		}

		topic.subscribers[writeIndex] = item
		writeIndex += 1
	}

	topic.subscribers = topic.subscribers[:writeIndex]
}

func (topic *Topic[T]) getInfo() TopicInfo {
	topic.m.Lock()
	defer topic.m.Unlock()

	return TopicInfo{
		Id:              topic.Id,
		Closed:          topic.closed,
		Counter:         topic.counter,
		SubscriberCount: len(topic.subscribers),
	}
}

func (topic *Topic[T]) isClosed() bool {
	topic.m.Lock()
	defer topic.m.Unlock()

	return topic.closed
}

func (topic *Topic[T]) IsClosed() bool {
	return topic.isClosed()
}

// Publish hands the message to every subscriber. Subscribers with a full buffer
// miss the message instead of stalling the publisher.
func (topic *Topic[T]) Publish(message T) {
	topic.m.Lock()
	defer topic.m.Unlock()

	if topic.closed {
		return
	}

	topic.counter += 1
	for _, sub := range topic.subscribers {
		select {
		case sub <- message:
		default:
		}
	}
}

func (topic *Topic[T]) Close() {
	topic.m.Lock()
	defer topic.m.Unlock()

	if topic.closed {
		return
	}

	topic.closed = true

	for _, channel := range topic.subscribers {
		close(channel)
	}

	topic.subscribers = nil
}

type Registry struct {
	m      sync.Mutex
	topics map[string]anyTopic
}

func CreateTopic[T any](r *Registry, id TopicId) (*Topic[T], error) {
	r.m.Lock()
	defer r.m.Unlock()

	if r.topics == nil {
		r.topics = make(map[string]anyTopic, 8)
	}

	key := id.String()
	if prev := r.topics[key]; prev != nil && !prev.isClosed() {
		return nil, fmt.Errorf("%w: %s", ErrTopicExists, id.String())
	}

	topic := &Topic[T]{Id: id}
	r.topics[key] = topic

	return topic, nil
}

// Subscribe attaches a buffered channel to the topic. The channel is closed
// when the topic closes or the subscription is dropped.
func Subscribe[T any](r *Registry, id TopicId, buffer int) (Subscription[T], error) {
	key := id.String()

	r.m.Lock()
	found := r.topics[key]
	r.m.Unlock()

	if found == nil {
		return Subscription[T]{}, fmt.Errorf("%w: %s", ErrTopicDoesntExist, id.String())
	}

	topic, ok := found.(*Topic[T])
	if !ok {
		return Subscription[T]{}, fmt.Errorf("%w: %s", ErrWrongTopicType, id.String())
	}

	channel := make(chan T, buffer)

	if err := topic.addSubscriber(channel); err != nil {
		return Subscription[T]{}, err
	}

	return Subscription[T]{Out: channel, topic: topic}, nil
}

func (sub *Subscription[T]) Unsubscribe() {
	sub.topic.removeSubscriber(sub.Out)
}

type TopicInfo struct {
	Id              TopicId `json:"id"`
	Closed          bool    `json:"closed"`
	Counter         int     `json:"counter"`
	SubscriberCount int     `json:"subscriberCount"`
}

func (r *Registry) GetTopicInfo() map[string]TopicInfo {
	r.m.Lock()
	defer r.m.Unlock()

	out := make(map[string]TopicInfo, len(r.topics))

	for key, topic := range r.topics {
		out[key] = topic.getInfo()
	}

	return out
}
