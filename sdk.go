package rvbridge

import "context"

// ErrorCode 厂商SDK的错误码，原样转发给监听者
type ErrorCode int

const (
	ErrorUnspecified ErrorCode = iota
	ErrorNoFill
	ErrorNetwork
	ErrorServer
	ErrorVideoPlayback
	ErrorExpired
)

var errorCodeNames = map[ErrorCode]string{
	ErrorUnspecified:   "unspecified",
	ErrorNoFill:        "no_fill",
	ErrorNetwork:       "network",
	ErrorServer:        "server",
	ErrorVideoPlayback: "video_playback",
	ErrorExpired:       "expired",
}

func (c ErrorCode) String() string {
	if name, ok := errorCodeNames[c]; ok {
		return name
	}
	return errorCodeNames[ErrorUnspecified]
}

// ParseErrorCode 解析错误码名称，未知名称返回ErrorUnspecified
func ParseErrorCode(name string) ErrorCode {
	for code, n := range errorCodeNames {
		if n == name {
			return code
		}
	}
	return ErrorUnspecified
}

// Reward 激励视频播放完成后发放的奖励
type Reward struct {
	Label  string
	Amount int
}

// Location 用户位置，属于PII
type Location struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64
}

// SdkConfiguration 初始化厂商SDK所需的配置
type SdkConfiguration struct {
	AdUnitID string
}

// RequestParameters 加载激励视频的请求参数
type RequestParameters struct {
	Keywords         string
	UserDataKeywords string
	Location         *Location
}

// RewardedListener 厂商SDK的激励视频回调
type RewardedListener interface {
	OnRewardedLoadSuccess(adUnitID string)
	OnRewardedLoadFailure(adUnitID string, code ErrorCode)
	OnRewardedStarted(adUnitID string)
	OnRewardedPlaybackError(adUnitID string, code ErrorCode)
	OnRewardedClicked(adUnitID string)
	OnRewardedCompleted(adUnitIDs []string, reward Reward)
	OnRewardedClosed(adUnitID string)
}

// AdListener 调用方为一次加载请求提供的监听者
type AdListener interface {
	RewardedListener
	// OnAdFailedToLoad 请求在到达厂商SDK之前就被拒绝
	OnAdFailedToLoad(err *AdError)
}

// SDK 厂商激励视频SDK
//
// Initialize完成时必须先让IsInitialized返回true，再调用done。
// 回调可以在任意goroutine上发生。
type SDK interface {
	Initialize(ctx context.Context, cfg SdkConfiguration, done func())
	IsInitialized() bool
	SetRewardedListener(l RewardedListener)
	LoadRewarded(adUnitID string, params RequestParameters)
	HasRewarded(adUnitID string) bool
	ShowRewarded(adUnitID string, customData string)
	CanCollectPersonalInformation() bool
}
