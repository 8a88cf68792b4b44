package rvbridge

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// 默认保留强引用的加载请求个数
const defaultRetain = 16

// Adapter 把聚合框架的激励视频请求桥接到厂商SDK
// 它是厂商SDK唯一的回调接收者，再按广告位ID把回调分发给登记的监听者
type Adapter struct {
	sdk      SDK
	requests *requestRegistry
	log      *logrus.Entry

	// 保护初始化状态
	mu            sync.Mutex
	initializing  bool
	initListeners []func()
}

var _ RewardedListener = (*Adapter)(nil)

// NewAdapter 创建一个Adapter
// retain为保留强引用的最近请求个数，<0时使用默认值，0表示请求只被调用方持有
func NewAdapter(sdk SDK, retain int) *Adapter {
	if sdk == nil {
		panic("nil SDK")
	}
	if retain < 0 {
		retain = defaultRetain
	}
	return &Adapter{
		sdk:      sdk,
		requests: newRequestRegistry(retain),
		log:      logrus.WithField("module", "rvbridge"),
	}
}

// SetLogger 替换日志，需要在第一次请求之前调用
func (a *Adapter) SetLogger(log *logrus.Entry) {
	a.log = log
}

// Initialize 初始化厂商SDK
// 已经初始化时同步调用done；初始化进行中时done排队，完成后按顺序各调用一次
func (a *Adapter) Initialize(ctx context.Context, cfg SdkConfiguration, done func()) {
	if done == nil {
		done = func() {}
	}
	a.mu.Lock()
	if a.sdk.IsInitialized() {
		a.mu.Unlock()
		a.sdk.SetRewardedListener(a)
		done()
		return
	}
	a.initListeners = append(a.initListeners, done)
	if a.initializing {
		a.mu.Unlock()
		return
	}
	a.initializing = true
	a.mu.Unlock()
	a.log.WithField("ad_unit_id", cfg.AdUnitID).Info("[Adapter] initializing vendor SDK")
	a.sdk.Initialize(ctx, cfg, a.onInitialized)
}

func (a *Adapter) onInitialized() {
	a.mu.Lock()
	a.initializing = false
	listeners := a.initListeners
	a.initListeners = nil
	a.mu.Unlock()

	a.log.Info("[Adapter] vendor SDK initialized")
	a.sdk.SetRewardedListener(a)
	for _, done := range listeners {
		done()
	}
}

// LoadRewarded 为广告位加载激励视频
// 广告位已有未结束的请求时，通知l并返回ErrAdAlreadyLoaded，不会访问厂商SDK。
// 调用方需要持有返回的*Request直到广告结束，否则登记可能被回收
func (a *Adapter) LoadRewarded(ctx context.Context, adUnitID string, params RequestParameters, l AdListener) (*Request, error) {
	if l == nil {
		panic("nil AdListener")
	}
	if adUnitID == "" {
		err := newAdError(ErrCodeInvalidServerParameters, "missing or invalid ad unit ID")
		l.OnAdFailedToLoad(err)
		return nil, err
	}
	req := &Request{adUnitID: adUnitID, listener: l, adapter: a}
	if !a.requests.add(adUnitID, req) {
		err := newAdError(ErrCodeAdAlreadyLoaded, "an ad has already been requested for the ad unit ID: %s", adUnitID)
		a.log.WithField("ad_unit_id", adUnitID).Warn("[Adapter] duplicate rewarded request rejected")
		l.OnAdFailedToLoad(err)
		return nil, err
	}
	a.Initialize(ctx, SdkConfiguration{AdUnitID: adUnitID}, func() {
		a.log.WithField("ad_unit_id", adUnitID).Debug("[Adapter] loading rewarded ad")
		a.sdk.LoadRewarded(adUnitID, params)
	})
	return req, nil
}

// ShowRewarded 展示广告位已加载的激励视频
// 没有可展示的广告时删除登记并返回false
func (a *Adapter) ShowRewarded(adUnitID string, customData string) bool {
	if adUnitID != "" && a.sdk.HasRewarded(adUnitID) {
		a.log.WithField("ad_unit_id", adUnitID).Debug("[Adapter] showing rewarded ad")
		a.sdk.ShowRewarded(adUnitID, customData)
		return true
	}
	a.requests.remove(adUnitID)
	return false
}

// Expire 广告过期，只有广告位登记的正是req时才删除
func (a *Adapter) Expire(adUnitID string, req *Request) {
	if req == nil {
		return
	}
	if a.requests.removeIf(adUnitID, req) {
		a.log.WithField("ad_unit_id", adUnitID).Debug("[Adapter] rewarded request expired")
	}
}

// Pending 广告位是否有未结束的请求
func (a *Adapter) Pending(adUnitID string) bool {
	return a.requests.get(adUnitID) != nil
}

// PendingCount 未结束的请求个数
func (a *Adapter) PendingCount() int {
	return a.requests.len()
}

// Reset 丢弃所有登记
func (a *Adapter) Reset() {
	a.requests.clear()
}

func (a *Adapter) OnRewardedLoadSuccess(adUnitID string) {
	if req := a.requests.get(adUnitID); req != nil {
		req.listener.OnRewardedLoadSuccess(adUnitID)
	}
}

// 加载失败、播放失败、关闭是终结回调，登记在转发前取出，监听者可以在回调里重新请求

func (a *Adapter) OnRewardedLoadFailure(adUnitID string, code ErrorCode) {
	if req := a.requests.take(adUnitID); req != nil {
		req.listener.OnRewardedLoadFailure(adUnitID, code)
	}
	a.log.WithFields(logrus.Fields{"ad_unit_id": adUnitID, "code": code}).Info("[Adapter] rewarded load failed")
}

func (a *Adapter) OnRewardedStarted(adUnitID string) {
	if req := a.requests.get(adUnitID); req != nil {
		req.listener.OnRewardedStarted(adUnitID)
	}
}

func (a *Adapter) OnRewardedPlaybackError(adUnitID string, code ErrorCode) {
	if req := a.requests.take(adUnitID); req != nil {
		req.listener.OnRewardedPlaybackError(adUnitID, code)
	}
	a.log.WithFields(logrus.Fields{"ad_unit_id": adUnitID, "code": code}).Info("[Adapter] rewarded playback failed")
}

func (a *Adapter) OnRewardedClicked(adUnitID string) {
	if req := a.requests.get(adUnitID); req != nil {
		req.listener.OnRewardedClicked(adUnitID)
	}
}

// OnRewardedCompleted 一个奖励可能对应多个广告位，分别转发，每个监听者只看到自己的广告位
func (a *Adapter) OnRewardedCompleted(adUnitIDs []string, reward Reward) {
	for _, adUnitID := range adUnitIDs {
		if req := a.requests.get(adUnitID); req != nil {
			req.listener.OnRewardedCompleted([]string{adUnitID}, reward)
		}
	}
}

func (a *Adapter) OnRewardedClosed(adUnitID string) {
	if req := a.requests.take(adUnitID); req != nil {
		req.listener.OnRewardedClosed(adUnitID)
	}
}

// Request 一次激励视频加载请求
type Request struct {
	adUnitID string
	listener AdListener
	adapter  *Adapter
}

func (r *Request) AdUnitID() string {
	return r.adUnitID
}

// Show 展示本次请求加载的广告
func (r *Request) Show(customData string) error {
	if !r.adapter.ShowRewarded(r.adUnitID, customData) {
		return newAdError(ErrCodeAdNotReady, "no rewarded ad available for the ad unit ID: %s", r.adUnitID)
	}
	return nil
}

// Expire 标记本次请求加载的广告已过期
func (r *Request) Expire() {
	r.adapter.Expire(r.adUnitID, r)
}
