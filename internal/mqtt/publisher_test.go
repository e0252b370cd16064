package mqtt

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/sg-weather/internal/radar"
)

type fakeToken struct {
	err  error
	done chan struct{}
}

func newFakeToken(err error) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type fakeClient struct {
	mu           sync.Mutex
	published    []Message
	failTopics   map[string]bool
	disconnected bool
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failTopics[topic] {
		return newFakeToken(errors.New("broker rejected publish"))
	}
	c.published = append(c.published, Message{Topic: topic, Payload: payload.([]byte), Retained: retained})
	return newFakeToken(nil)
}

func (c *fakeClient) IsConnected() bool { return !c.disconnected }

func (c *fakeClient) Disconnect(uint) { c.disconnected = true }

func (c *fakeClient) topics(suffix string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, m := range c.published {
		if strings.HasSuffix(m.Topic, suffix) {
			out = append(out, m.Topic)
		}
	}
	return out
}

func TestPublishSnapshotSendsDiscoveryOnce(t *testing.T) {
	c := &fakeClient{}
	p := newPublisher(c, testBuilder())
	entities := len(testBuilder().Entities(testSnapshot()))

	require.NoError(t, p.PublishSnapshot(testSnapshot()))
	require.NoError(t, p.PublishSnapshot(testSnapshot()))

	assert.Len(t, c.topics("/config"), entities)
	assert.Len(t, c.topics("/state"), 2*entities)
	assert.Len(t, c.topics("/attributes"), 2*entities)
	for _, m := range c.published {
		assert.True(t, m.Retained, m.Topic)
	}
}

func TestPublishSnapshotContinuesPastFailures(t *testing.T) {
	c := &fakeClient{failTopics: map[string]bool{"sg-weather/nea_ang_mo_kio/state": true}}
	p := newPublisher(c, testBuilder())

	err := p.PublishSnapshot(testSnapshot())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nea_ang_mo_kio")
	assert.Contains(t, c.topics("/state"), "sg-weather/nea_rainfall_s07/state")
}

func TestPublishRadar(t *testing.T) {
	c := &fakeClient{}
	p := newPublisher(c, testBuilder())

	require.NoError(t, p.PublishRadar(radar.Frame{Bucket: observedAt, URL: "https://radar.test/tile.png", Image: []byte("png")}))
	assert.Equal(t, []string{"homeassistant/camera/sg_weather/nea_rain_map/config"}, c.topics("/config"))
	assert.Equal(t, []string{"sg-weather/nea_rain_map/state"}, c.topics("/state"))
}

func TestDisabledPublisherIsNoop(t *testing.T) {
	p, err := NewPublisher(PublisherConfig{Enabled: false, TopicPrefix: "sg-weather"}, testBuilder())
	require.NoError(t, err)

	assert.NoError(t, p.PublishSnapshot(testSnapshot()))
	assert.NoError(t, p.PublishRadar(radar.Frame{}))
	assert.False(t, p.IsConnected())
	p.Close()
}

func TestCloseDisconnects(t *testing.T) {
	c := &fakeClient{}
	p := newPublisher(c, testBuilder())
	assert.True(t, p.IsConnected())

	p.Close()
	assert.True(t, c.disconnected)
	assert.False(t, p.IsConnected())
}
