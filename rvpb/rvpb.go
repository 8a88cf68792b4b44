// Package rvpb 定义适配器与厂商网关之间的消息
// 消息以structpb.Struct表示，用protobuf编码传输
package rvpb

import (
	"errors"
	"fmt"

	"github.com/golang/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// 回调事件类型
const (
	EventLoadSuccess   = "load_success"
	EventLoadFailure   = "load_failure"
	EventStarted       = "started"
	EventPlaybackError = "playback_error"
	EventClicked       = "clicked"
	EventCompleted     = "completed"
	EventClosed        = "closed"
)

// Message 可以和structpb.Struct互相转换的消息
type Message interface {
	ToStruct() (*structpb.Struct, error)
	FromStruct(s *structpb.Struct) error
}

// Marshal 编码消息
func Marshal(m Message) ([]byte, error) {
	s, err := m.ToStruct()
	if err != nil {
		return nil, err
	}
	return proto.Marshal(s)
}

// Unmarshal 解码消息
func Unmarshal(b []byte, m Message) error {
	var s structpb.Struct
	if err := proto.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("decoding message: %w", err)
	}
	return m.FromStruct(&s)
}

func str(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}

func num(s *structpb.Struct, key string) float64 {
	return s.GetFields()[key].GetNumberValue()
}

func required(s *structpb.Struct, key string) (string, error) {
	v := str(s, key)
	if v == "" {
		return "", fmt.Errorf("missing field %q", key)
	}
	return v, nil
}

// Event 厂商网关推送的回调事件
type Event struct {
	Type      string
	AdUnitID  string
	AdUnitIDs []string
	ErrorCode string
	Reward    Reward
}

// Reward 奖励
type Reward struct {
	Label  string
	Amount int64
}

func (e *Event) ToStruct() (*structpb.Struct, error) {
	if e.Type == "" {
		return nil, errors.New("event type is required")
	}
	fields := map[string]any{
		"type":       e.Type,
		"ad_unit_id": e.AdUnitID,
	}
	if e.ErrorCode != "" {
		fields["error_code"] = e.ErrorCode
	}
	if len(e.AdUnitIDs) > 0 {
		ids := make([]any, len(e.AdUnitIDs))
		for i, id := range e.AdUnitIDs {
			ids[i] = id
		}
		fields["ad_unit_ids"] = ids
	}
	if e.Type == EventCompleted {
		fields["reward_label"] = e.Reward.Label
		fields["reward_amount"] = e.Reward.Amount
	}
	return structpb.NewStruct(fields)
}

func (e *Event) FromStruct(s *structpb.Struct) error {
	typ, err := required(s, "type")
	if err != nil {
		return err
	}
	*e = Event{
		Type:      typ,
		AdUnitID:  str(s, "ad_unit_id"),
		ErrorCode: str(s, "error_code"),
		Reward: Reward{
			Label:  str(s, "reward_label"),
			Amount: int64(num(s, "reward_amount")),
		},
	}
	for _, v := range s.GetFields()["ad_unit_ids"].GetListValue().GetValues() {
		e.AdUnitIDs = append(e.AdUnitIDs, v.GetStringValue())
	}
	if e.Type != EventCompleted && e.AdUnitID == "" {
		return fmt.Errorf("event %s: missing field %q", e.Type, "ad_unit_id")
	}
	return nil
}

// InitRequest 初始化握手请求
type InitRequest struct {
	AdUnitID string
	Callback string
}

func (r *InitRequest) ToStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"ad_unit_id": r.AdUnitID,
		"callback":   r.Callback,
	})
}

func (r *InitRequest) FromStruct(s *structpb.Struct) error {
	id, err := required(s, "ad_unit_id")
	if err != nil {
		return err
	}
	*r = InitRequest{AdUnitID: id, Callback: str(s, "callback")}
	return nil
}

// InitResponse 初始化握手响应
type InitResponse struct {
	CanCollectPII bool
}

func (r *InitResponse) ToStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"can_collect_pii": r.CanCollectPII,
	})
}

func (r *InitResponse) FromStruct(s *structpb.Struct) error {
	r.CanCollectPII = s.GetFields()["can_collect_pii"].GetBoolValue()
	return nil
}

// Location 用户位置
type Location struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64
}

// LoadRequest 加载激励视频请求
type LoadRequest struct {
	AdUnitID         string
	Callback         string
	Keywords         string
	UserDataKeywords string
	Location         *Location
}

func (r *LoadRequest) ToStruct() (*structpb.Struct, error) {
	fields := map[string]any{
		"ad_unit_id":         r.AdUnitID,
		"callback":           r.Callback,
		"keywords":           r.Keywords,
		"user_data_keywords": r.UserDataKeywords,
	}
	if r.Location != nil {
		fields["location"] = map[string]any{
			"latitude":  r.Location.Latitude,
			"longitude": r.Location.Longitude,
			"accuracy":  r.Location.Accuracy,
		}
	}
	return structpb.NewStruct(fields)
}

func (r *LoadRequest) FromStruct(s *structpb.Struct) error {
	id, err := required(s, "ad_unit_id")
	if err != nil {
		return err
	}
	callback, err := required(s, "callback")
	if err != nil {
		return err
	}
	*r = LoadRequest{
		AdUnitID:         id,
		Callback:         callback,
		Keywords:         str(s, "keywords"),
		UserDataKeywords: str(s, "user_data_keywords"),
	}
	if loc := s.GetFields()["location"].GetStructValue(); loc != nil {
		r.Location = &Location{
			Latitude:  num(loc, "latitude"),
			Longitude: num(loc, "longitude"),
			Accuracy:  num(loc, "accuracy"),
		}
	}
	return nil
}

// ShowRequest 展示激励视频请求
type ShowRequest struct {
	AdUnitID   string
	Callback   string
	CustomData string
}

func (r *ShowRequest) ToStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"ad_unit_id":  r.AdUnitID,
		"callback":    r.Callback,
		"custom_data": r.CustomData,
	})
}

func (r *ShowRequest) FromStruct(s *structpb.Struct) error {
	id, err := required(s, "ad_unit_id")
	if err != nil {
		return err
	}
	callback, err := required(s, "callback")
	if err != nil {
		return err
	}
	*r = ShowRequest{AdUnitID: id, Callback: callback, CustomData: str(s, "custom_data")}
	return nil
}
