package rvbridge

import (
	"context"

	"github.com/jiaxwu/rvbridge/rvpb"
)

// Gateway 厂商网关客户端
type Gateway interface {
	// Call 调用网关操作，out为nil时忽略响应体
	Call(ctx context.Context, op string, in rvpb.Message, out rvpb.Message) error
}

// GatewayPicker 根据广告位ID选择网关
type GatewayPicker interface {
	PickGateway(adUnitID string) (Gateway, bool)
}
