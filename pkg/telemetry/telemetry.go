// Package telemetry encodes readings, remote commands and replies as
// protobuf Struct messages.
package telemetry

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/golang/protobuf/jsonpb"
	"github.com/golang/protobuf/proto"
	"github.com/golang/protobuf/ptypes"
	structpb "github.com/golang/protobuf/ptypes/struct"

	"github.com/robotalks/tank.go/pkg/l0/comm"
	"github.com/robotalks/tank.go/pkg/tank"
)

// Message field names.
const (
	FieldClient      = "client"
	FieldTime        = "time"
	FieldTemperature = "temperature"
	FieldRequestID   = "id"
	FieldOp          = "op"
	FieldPin         = "pin"
	FieldPinMode     = "pinMode"
	FieldData        = "data"
	FieldError       = "error"
)

// ErrMissingField indicates a required field is absent.
var ErrMissingField = errors.New("missing field")

// Command is a remote request executed on the tank.
type Command struct {
	RequestID string
	Op        comm.OpCode
	Pin       uint8
	PinMode   uint8
}

// Reply is the result of a Command.
type Reply struct {
	RequestID string
	Op        comm.OpCode
	Pin       uint8
	PinMode   uint8
	Data      uint32
	// Temperature is only set for comm.OpGetTemperature.
	Temperature float32
	Error       string
}

// ReadingMsg is a decoded temperature reading.
type ReadingMsg struct {
	Client string
	tank.Reading
}

// ReadingStruct converts a reading.
func ReadingStruct(client string, r tank.Reading) (*structpb.Struct, error) {
	ts, err := ptypes.TimestampProto(r.Time)
	if err != nil {
		return nil, err
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldClient:      stringValue(client),
		FieldTime:        stringValue(ptypes.TimestampString(ts)),
		FieldTemperature: numberValue(float64(r.Temperature)),
	}}, nil
}

// ParseReading converts a Struct back to a reading.
func ParseReading(s *structpb.Struct) (*ReadingMsg, error) {
	msg := &ReadingMsg{Client: s.Fields[FieldClient].GetStringValue()}
	t, err := parseTime(s)
	if err != nil {
		return nil, err
	}
	msg.Time = t
	temp, ok := s.Fields[FieldTemperature].GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingField, FieldTemperature)
	}
	msg.Temperature = float32(temp.NumberValue)
	return msg, nil
}

// Struct converts the command.
func (c *Command) Struct() *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldRequestID: stringValue(c.RequestID),
		FieldOp:        stringValue(c.Op.String()),
		FieldPin:       numberValue(float64(c.Pin)),
		FieldPinMode:   numberValue(float64(c.PinMode)),
	}}
}

// ParseCommand converts a Struct to Command.
// The op field accepts a name or a numeric code.
func ParseCommand(s *structpb.Struct) (*Command, error) {
	cmd := &Command{RequestID: s.Fields[FieldRequestID].GetStringValue()}
	switch op := s.Fields[FieldOp].GetKind().(type) {
	case *structpb.Value_StringValue:
		code, err := comm.ParseOpCode(op.StringValue)
		if err != nil {
			return nil, err
		}
		cmd.Op = code
	case *structpb.Value_NumberValue:
		if cmd.Op = comm.OpCode(op.NumberValue); !cmd.Op.IsValid() || float64(cmd.Op) != op.NumberValue {
			return nil, fmt.Errorf("unknown op code %v", op.NumberValue)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrMissingField, FieldOp)
	}
	pin, err := uint8Field(s, FieldPin)
	if err != nil {
		return nil, err
	}
	mode, err := uint8Field(s, FieldPinMode)
	if err != nil {
		return nil, err
	}
	cmd.Pin, cmd.PinMode = pin, mode
	return cmd, nil
}

// Struct converts the reply.
func (r *Reply) Struct() *structpb.Struct {
	s := &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldRequestID: stringValue(r.RequestID),
		FieldOp:        stringValue(r.Op.String()),
		FieldPin:       numberValue(float64(r.Pin)),
		FieldPinMode:   numberValue(float64(r.PinMode)),
		FieldData:      numberValue(float64(r.Data)),
	}}
	if r.Op == comm.OpGetTemperature {
		s.Fields[FieldTemperature] = numberValue(float64(r.Temperature))
	}
	if r.Error != "" {
		s.Fields[FieldError] = stringValue(r.Error)
	}
	return s
}

// ReplyFor builds the reply of cmd from the node's reply packet or an error.
func ReplyFor(cmd *Command, pkt *comm.Packet, err error) *Reply {
	r := &Reply{RequestID: cmd.RequestID, Op: cmd.Op, Pin: cmd.Pin, PinMode: cmd.PinMode}
	if err != nil {
		r.Error = err.Error()
		return r
	}
	r.PinMode, r.Data = pkt.PinMode, pkt.Data
	if cmd.Op == comm.OpGetTemperature {
		r.Temperature = pkt.Float()
	}
	return r
}

// Marshal encodes a Struct in protobuf binary.
func Marshal(s *structpb.Struct) ([]byte, error) {
	return proto.Marshal(s)
}

// Unmarshal decodes a Struct from protobuf binary, or JSON if the
// payload starts with '{'.
func Unmarshal(payload []byte) (*structpb.Struct, error) {
	s := &structpb.Struct{}
	if trimmed := bytes.TrimSpace(payload); len(trimmed) > 0 && trimmed[0] == '{' {
		if err := jsonpb.Unmarshal(bytes.NewReader(trimmed), s); err != nil {
			return nil, err
		}
		return s, nil
	}
	if err := proto.Unmarshal(payload, s); err != nil {
		return nil, err
	}
	return s, nil
}

// JSON formats a Struct for display.
func JSON(s *structpb.Struct) (string, error) {
	m := jsonpb.Marshaler{OrigName: true}
	return m.MarshalToString(s)
}

func stringValue(s string) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_StringValue{StringValue: s}}
}

func numberValue(n float64) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_NumberValue{NumberValue: n}}
}

func uint8Field(s *structpb.Struct, name string) (uint8, error) {
	v, ok := s.Fields[name]
	if !ok {
		return 0, nil
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok || n.NumberValue < 0 || n.NumberValue > math.MaxUint8 || n.NumberValue != math.Trunc(n.NumberValue) {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return uint8(n.NumberValue), nil
}

func parseTime(s *structpb.Struct) (time.Time, error) {
	str := s.Fields[FieldTime].GetStringValue()
	if str == "" {
		return time.Time{}, fmt.Errorf("%w: %s", ErrMissingField, FieldTime)
	}
	return time.Parse(time.RFC3339Nano, str)
}
