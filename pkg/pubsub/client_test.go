package pubsub

import (
	"context"
	"testing"

	"github.com/angelmondragon/packfinderz-inventory/pkg/config"
	"github.com/stretchr/testify/assert"
)

func TestResourceNames(t *testing.T) {
	c := &Client{projectID: "pf-prod"}
	assert.Equal(t, "projects/pf-prod/topics/pf-inventory-events", c.topicResourceName("pf-inventory-events"))
	assert.Equal(t, "projects/pf-prod/subscriptions/inventory-cmds", c.subscriptionResourceName(" inventory-cmds "))
	assert.Equal(t, "projects/other/topics/t", c.topicResourceName("projects/other/topics/t"))
	assert.Equal(t, "", c.topicResourceName(""))

	var nilClient *Client
	assert.Equal(t, "", nilClient.topicResourceName("t"))
	assert.Nil(t, nilClient.Publisher("pf-inventory-events"))
	assert.Nil(t, nilClient.InventorySubscription())
	assert.Error(t, nilClient.Ping(context.Background()))
	assert.NoError(t, nilClient.Close())
}

func TestTopicNamesSkipsBlankAndDuplicates(t *testing.T) {
	names := topicNames(config.PubSubConfig{InventoryTopic: "events", AlertsTopic: " events "})
	assert.Equal(t, []string{"events"}, names)

	names = topicNames(config.PubSubConfig{InventoryTopic: "events", AlertsTopic: "alerts"})
	assert.Equal(t, []string{"events", "alerts"}, names)
	assert.Empty(t, topicNames(config.PubSubConfig{}))
}

func TestClientOptionsPreferInlineCredentials(t *testing.T) {
	assert.Len(t, clientOptions(config.GCPConfig{CredentialsJSON: `{"type":"service_account"}`, ApplicationCredentials: "/tmp/key.json"}), 1)
	assert.Len(t, clientOptions(config.GCPConfig{ApplicationCredentials: "/tmp/key.json"}), 1)
	assert.Empty(t, clientOptions(config.GCPConfig{}))
}

func TestNewClientRequiresProject(t *testing.T) {
	_, err := NewClient(context.Background(), config.GCPConfig{}, config.PubSubConfig{}, nil)
	assert.ErrorIs(t, err, errProjectIDRequired)
}
