package rvbridge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jiaxwu/rvbridge/consistenthash"
	"github.com/jiaxwu/rvbridge/registry"
	"github.com/jiaxwu/rvbridge/rvpb"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const (
	defaultBasePath = "/_rvbridge/"
	// 虚拟节点倍数
	defaultReplicas = 50
	// 单次网关请求超时
	requestTimeout = 10 * time.Second
	// 回调事件请求体上限
	maxEventBytes = 64 << 10
	// etcd中网关地址的key前缀
	gatewayPrefix = "rvbridge/gateways/"

	opInit   = "init"
	opLoad   = "load"
	opShow   = "show"
	opEvents = "events"
)

var (
	errNoGateway      = errors.New("no gateway available")
	errNotInitialized = errors.New("sdk not initialized")
)

// HTTPSDK 通过HTTP访问远程厂商网关的SDK
// 它同时是网关回调事件的http.Handler
type HTTPSDK struct {
	// 本节点地址，网关把回调事件推送到这里，比如http://example.net:8080
	self string
	// 基础路径，避免冲突，比如"/_rvbridge/"
	basePath string
	log      *logrus.Entry

	mu            sync.RWMutex
	gateways      *consistenthash.Map
	clients       map[string]*httpGateway
	httpClient    *http.Client
	listener      RewardedListener
	initialized   bool
	canCollectPII bool
	// 已加载可以展示的广告位
	ready map[string]bool

	// 合并并发的初始化
	initGroup singleflight.Group
}

var (
	_ SDK           = (*HTTPSDK)(nil)
	_ GatewayPicker = (*HTTPSDK)(nil)
	_ http.Handler  = (*HTTPSDK)(nil)
)

// NewHTTPSDK 创建一个HTTPSDK
func NewHTTPSDK(self string) *HTTPSDK {
	return &HTTPSDK{
		self:       strings.TrimSuffix(self, "/"),
		basePath:   defaultBasePath,
		log:        logrus.WithField("module", "rvbridge.http"),
		gateways:   consistenthash.New(defaultReplicas, nil),
		clients:    make(map[string]*httpGateway),
		httpClient: http.DefaultClient,
		ready:      make(map[string]bool),
	}
}

// SetBasePath 设置基础路径，只影响之后添加的网关
func (s *HTTPSDK) SetBasePath(basePath string) {
	if !strings.HasSuffix(basePath, "/") {
		basePath += "/"
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.basePath = basePath
}

// SetHTTPClient 替换请求网关使用的http.Client
func (s *HTTPSDK) SetHTTPClient(client *http.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.httpClient = client
	for gw := range s.clients {
		s.clients[gw] = &httpGateway{baseURL: gw + s.basePath, client: client}
	}
}

// SetLogger 替换日志，需要在开始处理请求之前调用
func (s *HTTPSDK) SetLogger(log *logrus.Entry) {
	s.log = log
}

func (s *HTTPSDK) eventsPath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.basePath + opEvents
}

func (s *HTTPSDK) callbackURL() string {
	return s.self + s.eventsPath()
}

func (s *HTTPSDK) addLocked(gateways ...string) {
	s.gateways.Add(gateways...)
	for _, gw := range gateways {
		if _, ok := s.clients[gw]; !ok {
			s.clients[gw] = &httpGateway{baseURL: gw + s.basePath, client: s.httpClient}
		}
	}
}

// Set 替换网关列表
func (s *HTTPSDK) Set(gateways ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gateways = consistenthash.New(defaultReplicas, nil)
	s.clients = make(map[string]*httpGateway, len(gateways))
	s.addLocked(gateways...)
}

// SetETCDRegistry 从etcd发现网关，并持续跟踪网关变化直到ctx结束
func (s *HTTPSDK) SetETCDRegistry(ctx context.Context, etcdAddrs ...string) error {
	r, err := registry.New(gatewayPrefix, etcdAddrs)
	if err != nil {
		return err
	}
	watch := r.Watch(ctx)
	gateways, err := r.GetAddrs(ctx)
	if err != nil {
		r.Close()
		return err
	}
	s.Set(gateways...)
	s.log.WithField("gateways", gateways).Info("[HTTPSDK] gateways discovered")
	go func() {
		defer r.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watch:
				// 通道已经被关闭
				if !ok {
					return
				}
				s.applyEvent(event)
			}
		}
	}()
	return nil
}

func (s *HTTPSDK) applyEvent(event registry.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if event.AddAddr != "" {
		s.addLocked(event.AddAddr)
		s.log.WithFields(logrus.Fields{"gateway": event.AddAddr, "total": s.gateways.Len()}).Info("[HTTPSDK] gateway added")
	} else if event.DeleteAddr != "" {
		s.gateways.Delete(event.DeleteAddr)
		delete(s.clients, event.DeleteAddr)
		s.log.WithFields(logrus.Fields{"gateway": event.DeleteAddr, "total": s.gateways.Len()}).Info("[HTTPSDK] gateway removed")
	}
}

// Gateways 返回当前的网关列表
func (s *HTTPSDK) Gateways() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gateways.Members()
}

// PickGateway 根据广告位ID选择网关
func (s *HTTPSDK) PickGateway(adUnitID string) (Gateway, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[s.gateways.Get(adUnitID)]
	if !ok {
		return nil, false
	}
	return c, true
}

// Initialize 与网关握手，done总会被调用，握手失败时IsInitialized保持false
// 握手被并发的调用者共享，所以不随ctx取消
func (s *HTTPSDK) Initialize(ctx context.Context, cfg SdkConfiguration, done func()) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		_, err, _ := s.initGroup.Do(opInit, func() (any, error) {
			return nil, s.handshake(ctx, cfg)
		})
		if err != nil {
			s.log.WithError(err).Error("[HTTPSDK] initialization failed")
		}
		if done != nil {
			done()
		}
	}()
}

func (s *HTTPSDK) handshake(ctx context.Context, cfg SdkConfiguration) error {
	if s.IsInitialized() {
		return nil
	}
	gw, ok := s.PickGateway(cfg.AdUnitID)
	if !ok {
		return errNoGateway
	}
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	var res rvpb.InitResponse
	if err := gw.Call(ctx, opInit, &rvpb.InitRequest{AdUnitID: cfg.AdUnitID, Callback: s.callbackURL()}, &res); err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	s.mu.Lock()
	s.initialized = true
	s.canCollectPII = res.CanCollectPII
	s.mu.Unlock()
	s.log.WithField("can_collect_pii", res.CanCollectPII).Info("[HTTPSDK] initialized")
	return nil
}

func (s *HTTPSDK) IsInitialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

func (s *HTTPSDK) CanCollectPersonalInformation() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.canCollectPII
}

func (s *HTTPSDK) SetRewardedListener(l RewardedListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = l
}

// LoadRewarded 异步请求网关加载广告，结果通过回调事件返回
func (s *HTTPSDK) LoadRewarded(adUnitID string, params RequestParameters) {
	req := &rvpb.LoadRequest{
		AdUnitID:         adUnitID,
		Callback:         s.callbackURL(),
		Keywords:         params.Keywords,
		UserDataKeywords: params.UserDataKeywords,
	}
	if params.Location != nil {
		req.Location = &rvpb.Location{
			Latitude:  params.Location.Latitude,
			Longitude: params.Location.Longitude,
			Accuracy:  params.Location.Accuracy,
		}
	}
	go func() {
		if err := s.call(adUnitID, opLoad, req); err != nil {
			s.log.WithError(err).WithField("ad_unit_id", adUnitID).Warn("[HTTPSDK] load request failed")
			s.dispatch(&rvpb.Event{Type: rvpb.EventLoadFailure, AdUnitID: adUnitID, ErrorCode: ErrorNetwork.String()})
		}
	}()
}

func (s *HTTPSDK) HasRewarded(adUnitID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready[adUnitID]
}

// ShowRewarded 异步请求网关展示广告
func (s *HTTPSDK) ShowRewarded(adUnitID string, customData string) {
	req := &rvpb.ShowRequest{AdUnitID: adUnitID, Callback: s.callbackURL(), CustomData: customData}
	go func() {
		if err := s.call(adUnitID, opShow, req); err != nil {
			s.log.WithError(err).WithField("ad_unit_id", adUnitID).Warn("[HTTPSDK] show request failed")
			s.dispatch(&rvpb.Event{Type: rvpb.EventPlaybackError, AdUnitID: adUnitID, ErrorCode: ErrorNetwork.String()})
		}
	}()
}

func (s *HTTPSDK) call(adUnitID string, op string, in rvpb.Message) error {
	if !s.IsInitialized() {
		return errNotInitialized
	}
	gw, ok := s.PickGateway(adUnitID)
	if !ok {
		return errNoGateway
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	return gw.Call(ctx, op, in, nil)
}

// ServeHTTP 接收网关推送的回调事件
func (s *HTTPSDK) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != s.eventsPath() {
		http.Error(w, "no such path: "+r.URL.Path, http.StatusNotFound)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEventBytes))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var event rvpb.Event
	if err := rvpb.Unmarshal(body, &event); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !s.dispatch(&event) {
		http.Error(w, "unknown event type: "+event.Type, http.StatusBadRequest)
		return
	}
}

// dispatch 更新广告状态并把事件转发给监听者，未知事件返回false
func (s *HTTPSDK) dispatch(event *rvpb.Event) bool {
	s.mu.Lock()
	switch event.Type {
	case rvpb.EventLoadSuccess:
		s.ready[event.AdUnitID] = true
	case rvpb.EventLoadFailure, rvpb.EventStarted, rvpb.EventPlaybackError, rvpb.EventClosed:
		delete(s.ready, event.AdUnitID)
	case rvpb.EventClicked, rvpb.EventCompleted:
	default:
		s.mu.Unlock()
		return false
	}
	l := s.listener
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{"event": event.Type, "ad_unit_id": event.AdUnitID}).Debug("[HTTPSDK] event received")
	if l == nil {
		return true
	}
	code := ParseErrorCode(event.ErrorCode)
	switch event.Type {
	case rvpb.EventLoadSuccess:
		l.OnRewardedLoadSuccess(event.AdUnitID)
	case rvpb.EventLoadFailure:
		l.OnRewardedLoadFailure(event.AdUnitID, code)
	case rvpb.EventStarted:
		l.OnRewardedStarted(event.AdUnitID)
	case rvpb.EventPlaybackError:
		l.OnRewardedPlaybackError(event.AdUnitID, code)
	case rvpb.EventClicked:
		l.OnRewardedClicked(event.AdUnitID)
	case rvpb.EventCompleted:
		ids := event.AdUnitIDs
		if len(ids) == 0 && event.AdUnitID != "" {
			ids = []string{event.AdUnitID}
		}
		l.OnRewardedCompleted(ids, Reward{Label: event.Reward.Label, Amount: int(event.Reward.Amount)})
	case rvpb.EventClosed:
		l.OnRewardedClosed(event.AdUnitID)
	}
	return true
}

// 网关请求客户端，每个网关一个
type httpGateway struct {
	baseURL string
	client  *http.Client
}

func (h *httpGateway) Call(ctx context.Context, op string, in rvpb.Message, out rvpb.Message) error {
	body, err := rvpb.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+op, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	res, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway returned: %v", res.Status)
	}
	if out == nil {
		return nil
	}
	b, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	return rvpb.Unmarshal(b, out)
}
