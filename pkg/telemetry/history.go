package telemetry

import (
	"fmt"
	"time"

	structpb "github.com/golang/protobuf/ptypes/struct"

	"github.com/robotalks/tank.go/pkg/tank"
)

// History message field names.
const (
	FieldDays     = "days"
	FieldReadings = "readings"
)

// HistoryRequest queries readings of the last Days days.
type HistoryRequest struct {
	RequestID string
	Days      float64
}

// Window returns the queried duration.
func (r *HistoryRequest) Window() time.Duration {
	return time.Duration(r.Days * float64(24*time.Hour))
}

// Struct converts the request.
func (r *HistoryRequest) Struct() *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldRequestID: stringValue(r.RequestID),
		FieldDays:      numberValue(r.Days),
	}}
}

// ParseHistoryRequest converts a Struct to HistoryRequest.
func ParseHistoryRequest(s *structpb.Struct) (*HistoryRequest, error) {
	req := &HistoryRequest{RequestID: s.Fields[FieldRequestID].GetStringValue()}
	days, ok := s.Fields[FieldDays].GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingField, FieldDays)
	}
	if days.NumberValue <= 0 {
		return nil, fmt.Errorf("invalid %s %v", FieldDays, days.NumberValue)
	}
	req.Days = days.NumberValue
	return req, nil
}

// HistoryReply carries readings in time order.
type HistoryReply struct {
	RequestID string
	Client    string
	Readings  []tank.Reading
	Error     string
}

// Struct converts the reply.
func (r *HistoryReply) Struct() (*structpb.Struct, error) {
	list := &structpb.ListValue{Values: make([]*structpb.Value, 0, len(r.Readings))}
	for _, reading := range r.Readings {
		s, err := ReadingStruct(r.Client, reading)
		if err != nil {
			return nil, err
		}
		delete(s.Fields, FieldClient)
		list.Values = append(list.Values, &structpb.Value{Kind: &structpb.Value_StructValue{StructValue: s}})
	}
	s := &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldRequestID: stringValue(r.RequestID),
		FieldClient:    stringValue(r.Client),
		FieldReadings:  {Kind: &structpb.Value_ListValue{ListValue: list}},
	}}
	if r.Error != "" {
		s.Fields[FieldError] = stringValue(r.Error)
	}
	return s, nil
}

// ParseHistoryReply converts a Struct to HistoryReply.
func ParseHistoryReply(s *structpb.Struct) (*HistoryReply, error) {
	reply := &HistoryReply{
		RequestID: s.Fields[FieldRequestID].GetStringValue(),
		Client:    s.Fields[FieldClient].GetStringValue(),
		Error:     s.Fields[FieldError].GetStringValue(),
	}
	for i, val := range s.Fields[FieldReadings].GetListValue().GetValues() {
		item := val.GetStructValue()
		if item == nil {
			return nil, fmt.Errorf("invalid %s[%d]", FieldReadings, i)
		}
		msg, err := ParseReading(item)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", FieldReadings, i, err)
		}
		reply.Readings = append(reply.Readings, msg.Reading)
	}
	return reply, nil
}
