package mqtt

import (
	"context"
	"fmt"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/tank.go/pkg/framework"
	"github.com/robotalks/tank.go/pkg/tank"
	"github.com/robotalks/tank.go/pkg/telemetry"
)

// Topic suffixes under <prefix><name>/.
const (
	TopicTemperature  = "temperature"
	TopicCommand      = "cmd"
	TopicReply        = "reply"
	TopicHistory      = "history"
	TopicHistoryReply = "history/reply"
)

// Bridge publishes readings and executes remote commands on a tank.
type Bridge struct {
	Queue *Queue
	Tank  *tank.Tank
	Name  string
	// History answers requests on the history topic, nil to disable.
	History *tank.History
	// Timeout bounds the execution of a remote command.
	Timeout time.Duration

	subs []*Subscription
}

// NewBridge creates a bridge for the tank named name.
func NewBridge(q *Queue, t *tank.Tank, name string) *Bridge {
	return &Bridge{Queue: q, Tank: t, Name: name, Timeout: time.Minute}
}

// Topic returns the topic relative to the queue prefix.
func (b *Bridge) Topic(suffix string) string {
	return b.Name + "/" + suffix
}

// Start subscribes the command topic, and the history topic if
// History is set.
func (b *Bridge) Start() error {
	if err := b.subscribe(TopicCommand, b.serve); err != nil {
		return err
	}
	if b.History != nil {
		return b.subscribe(TopicHistory, b.serveHistory)
	}
	return nil
}

func (b *Bridge) subscribe(suffix string, serve func([]byte)) error {
	sub := b.Queue.Sub(b.Topic(suffix), func(_ string, payload []byte) {
		go serve(payload)
	})
	b.subs = append(b.subs, sub)
	return waitToken(sub.Token, DefaultPublishTimeout)
}

// Close unsubscribes the topics.
func (b *Bridge) Close() error {
	var errs framework.AggregatedError
	for _, sub := range b.subs {
		errs.Add(sub.Close())
	}
	b.subs = nil
	return errs.Aggregate()
}

// AddReading implements tank.ReadingSink.
func (b *Bridge) AddReading(ctx context.Context, r tank.Reading) error {
	s, err := telemetry.ReadingStruct(b.Name, r)
	if err != nil {
		return err
	}
	payload, err := telemetry.Marshal(s)
	if err != nil {
		return err
	}
	return b.Queue.Publish(b.Topic(TopicTemperature), payload)
}

// Execute runs a command on the tank.
func (b *Bridge) Execute(ctx context.Context, cmd *telemetry.Command) *telemetry.Reply {
	pkt, err := b.Tank.Exec(ctx, cmd.Op, cmd.Pin, cmd.PinMode)
	return telemetry.ReplyFor(cmd, pkt, err)
}

func (b *Bridge) serve(payload []byte) {
	s, err := telemetry.Unmarshal(payload)
	if err != nil {
		glog.Errorf("decode command: %v", err)
		return
	}
	var reply *telemetry.Reply
	cmd, err := telemetry.ParseCommand(s)
	if err != nil {
		reply = &telemetry.Reply{
			RequestID: s.Fields[telemetry.FieldRequestID].GetStringValue(),
			Error:     fmt.Sprintf("invalid command: %v", err),
		}
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), b.Timeout)
		reply = b.Execute(ctx, cmd)
		cancel()
	}
	if reply.Error != "" {
		glog.Warningf("command %q: %s", reply.RequestID, reply.Error)
	} else if glog.V(1) {
		glog.Infof("command %q: %s pin=%d data=%d", reply.RequestID, reply.Op, reply.Pin, reply.Data)
	}
	out, err := telemetry.Marshal(reply.Struct())
	if err == nil {
		err = b.Queue.Publish(b.Topic(TopicReply), out)
	}
	if err != nil {
		glog.Errorf("publish reply: %v", err)
	}
}

func (b *Bridge) serveHistory(payload []byte) {
	s, err := telemetry.Unmarshal(payload)
	if err != nil {
		glog.Errorf("decode history request: %v", err)
		return
	}
	reply := &telemetry.HistoryReply{
		RequestID: s.Fields[telemetry.FieldRequestID].GetStringValue(),
		Client:    b.Name,
	}
	if req, err := telemetry.ParseHistoryRequest(s); err != nil {
		reply.Error = fmt.Sprintf("invalid request: %v", err)
		glog.Warningf("history %q: %s", reply.RequestID, reply.Error)
	} else {
		reply.Readings = b.History.Since(req.Window())
		glog.V(1).Infof("history %q: %d readings in %v days", reply.RequestID, len(reply.Readings), req.Days)
	}
	out, err := reply.Struct()
	var data []byte
	if err == nil {
		data, err = telemetry.Marshal(out)
	}
	if err == nil {
		err = b.Queue.Publish(b.Topic(TopicHistoryReply), data)
	}
	if err != nil {
		glog.Errorf("publish history reply: %v", err)
	}
}

var _ tank.ReadingSink = (*Bridge)(nil)
