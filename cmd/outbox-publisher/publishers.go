package main

import (
	"context"
	"sync"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
	// ResumePublish unblocks an ordering key after a failed publish.
	ResumePublish(orderingKey string)
	Stop()
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type publisherFactory func(topic string) publisher

// publisherSet holds one publisher per topic for the life of the process.
type publisherSet struct {
	mu      sync.Mutex
	factory publisherFactory
	byTopic map[string]publisher
}

func newPublisherSet(factory publisherFactory) *publisherSet {
	return &publisherSet{factory: factory, byTopic: map[string]publisher{}}
}

func (p *publisherSet) get(topic string) publisher {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pub, ok := p.byTopic[topic]; ok {
		return pub
	}
	pub := p.factory(topic)
	if pub != nil {
		p.byTopic[topic] = pub
	}
	return pub
}

func (p *publisherSet) stopAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for topic, pub := range p.byTopic {
		pub.Stop()
		delete(p.byTopic, topic)
	}
}

type gcpPublisher struct {
	inner *gcppubsub.Publisher
}

func newGCPPublisher(p *gcppubsub.Publisher) publisher {
	if p == nil {
		return nil
	}
	p.EnableMessageOrdering = true
	return gcpPublisher{inner: p}
}

func (p gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return p.inner.Publish(ctx, msg)
}

func (p gcpPublisher) ResumePublish(orderingKey string) {
	p.inner.ResumePublish(orderingKey)
}

func (p gcpPublisher) Stop() {
	p.inner.Stop()
}
