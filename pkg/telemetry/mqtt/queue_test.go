package mqtt

import (
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/require"
)

type fakeToken struct{ err error }

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Error() error                   { return t.err }

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 0 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 0 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

type published struct {
	topic   string
	payload []byte
}

// fakeBroker is a paho.Client delivering messages in memory.
type fakeBroker struct {
	lock         sync.Mutex
	filters      map[string]paho.MessageHandler
	subscribed   []string
	unsubscribed []string
	pubCh        chan published
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{
		filters: make(map[string]paho.MessageHandler),
		pubCh:   make(chan published, 16),
	}
}

func (b *fakeBroker) IsConnected() bool      { return true }
func (b *fakeBroker) IsConnectionOpen() bool { return true }
func (b *fakeBroker) Connect() paho.Token    { return &fakeToken{} }
func (b *fakeBroker) Disconnect(uint)        {}
func (b *fakeBroker) AddRoute(string, paho.MessageHandler) {}
func (b *fakeBroker) OptionsReader() paho.ClientOptionsReader {
	return paho.ClientOptionsReader{}
}

func (b *fakeBroker) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	b.pubCh <- published{topic: topic, payload: payload.([]byte)}
	return &fakeToken{}
}

func (b *fakeBroker) Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.filters[topic] = callback
	b.subscribed = append(b.subscribed, topic)
	return &fakeToken{}
}

func (b *fakeBroker) SubscribeMultiple(filters map[string]byte, callback paho.MessageHandler) paho.Token {
	for topic, qos := range filters {
		b.Subscribe(topic, qos, callback)
	}
	return &fakeToken{}
}

func (b *fakeBroker) Unsubscribe(topics ...string) paho.Token {
	b.lock.Lock()
	defer b.lock.Unlock()
	for _, topic := range topics {
		delete(b.filters, topic)
		b.unsubscribed = append(b.unsubscribed, topic)
	}
	return &fakeToken{}
}

func (b *fakeBroker) deliver(topic string, payload []byte) {
	var handlers []paho.MessageHandler
	b.lock.Lock()
	for filter, h := range b.filters {
		if MatchTopic(topic, filter) {
			handlers = append(handlers, h)
		}
	}
	b.lock.Unlock()
	for _, h := range handlers {
		h(b, &fakeMessage{topic: topic, payload: payload})
	}
}

func (b *fakeBroker) nextPublished(t *testing.T) published {
	select {
	case p := <-b.pubCh:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("nothing published")
	}
	return published{}
}

func TestMatchTopic(t *testing.T) {
	testCases := []struct {
		topic, filter string
		match         bool
	}{
		{"t1/temperature", "t1/temperature", true},
		{"t1/temperature", "+/temperature", true},
		{"t1/temperature", "t1/#", true},
		{"t1", "t1/#", true},
		{"t1/a/b", "#", true},
		{"t1/reply", "+/temperature", false},
		{"t1/temperature/x", "+/temperature", false},
		{"t1", "t1/+", false},
		{"t2/temperature", "t1/+", false},
	}
	for _, tc := range testCases {
		require.Equal(t, tc.match, MatchTopic(tc.topic, tc.filter), "%s ~ %s", tc.topic, tc.filter)
	}
	require.True(t, IsWildcard("+/reply"))
	require.True(t, IsWildcard("fish/#"))
	require.False(t, IsWildcard("fish/t1/cmd"))
}

func TestClientOptionsFromURL(t *testing.T) {
	opts, prefix, err := ClientOptionsFromURL("mqtt://u:p@broker:1883/fish/?client-id=tank&keepalive=15")
	require.NoError(t, err)
	require.Equal(t, "fish/", prefix)
	require.Len(t, opts.Servers, 1)
	require.Equal(t, "tcp://broker:1883", opts.Servers[0].String())
	require.Equal(t, "tank", opts.ClientID)
	require.Equal(t, "u", opts.Username)
	require.Equal(t, "p", opts.Password)
	require.Equal(t, int64(15), opts.KeepAlive)
	require.True(t, opts.AutoReconnect)

	opts, prefix, err = ClientOptionsFromURL("mqtts://broker:8883")
	require.NoError(t, err)
	require.Empty(t, prefix)
	require.Equal(t, "ssl://broker:8883", opts.Servers[0].String())

	for _, u := range []string{"mqtt:///fish", "mqtt://broker?keepalive=x", "mqtt://broker?keepalive=0", "://"} {
		_, _, err := ClientOptionsFromURL(u)
		require.Error(t, err, u)
	}
}

func TestQueueDispatch(t *testing.T) {
	broker := newFakeBroker()
	q := &Queue{Client: broker, TopicPrefix: "fish/"}
	var lock sync.Mutex
	received := make(map[string][]string)
	record := func(name string) Handler {
		return func(topic string, payload []byte) {
			lock.Lock()
			defer lock.Unlock()
			received[name] = append(received[name], topic+"="+string(payload))
		}
	}
	exact := q.Sub("t1/temperature", record("exact"))
	q.Sub("+/reply", record("reply"))
	dup := q.Sub("t1/temperature", record("dup"))
	require.Equal(t, []string{"fish/t1/temperature", "fish/+/reply"}, broker.subscribed)
	require.NoError(t, dup.Token.Error())

	broker.deliver("fish/t1/temperature", []byte("25"))
	broker.deliver("fish/t2/reply", []byte("ok"))
	broker.deliver("other/t1/temperature", []byte("x"))
	require.Equal(t, map[string][]string{
		"exact": {"t1/temperature=25"},
		"dup":   {"t1/temperature=25"},
		"reply": {"t2/reply=ok"},
	}, received)

	require.NoError(t, dup.Close())
	require.Empty(t, broker.unsubscribed)
	require.NoError(t, exact.Close())
	require.Equal(t, []string{"fish/t1/temperature"}, broker.unsubscribed)
	require.NoError(t, exact.Close())
	require.Len(t, broker.unsubscribed, 1)

	broker.subscribed = nil
	require.NoError(t, q.Resubscribe().Error())
	require.Equal(t, []string{"fish/+/reply"}, broker.subscribed)
}

func TestQueuePublish(t *testing.T) {
	broker := newFakeBroker()
	q := &Queue{Client: broker, TopicPrefix: "fish/"}
	require.NoError(t, q.Publish("t1/temperature", []byte("24")))
	p := broker.nextPublished(t)
	require.Equal(t, "fish/t1/temperature", p.topic)
	require.Equal(t, []byte("24"), p.payload)
}
