// Package gateway 模拟厂商激励视频网关，用于测试和演示
//
// 网关收到init、load、show请求后立即返回，再把回调事件异步推送到请求携带的callback地址。
package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jiaxwu/rvbridge/rvpb"
	"github.com/sirupsen/logrus"
)

const (
	defaultBasePath = "/_rvbridge/"
	pushTimeout     = 5 * time.Second
	maxRequestBytes = 64 << 10
	errorNoFill     = "no_fill"
	errorNotLoaded  = "video_playback"
)

// Server 模拟网关
type Server struct {
	basePath string
	client   *http.Client
	log      *logrus.Entry

	mu            sync.Mutex
	canCollectPII bool
	noFill        map[string]bool
	loaded        map[string]bool
	reward        rvpb.Reward
	inits         int

	// 正在推送的事件
	wg sync.WaitGroup
}

// New 创建一个模拟网关
func New() *Server {
	return &Server{
		basePath: defaultBasePath,
		client:   http.DefaultClient,
		log:      logrus.WithField("module", "gateway"),
		noFill:   make(map[string]bool),
		loaded:   make(map[string]bool),
		reward:   rvpb.Reward{Label: "coins", Amount: 10},
	}
}

// SetBasePath 设置基础路径，需要在开始处理请求之前调用
func (s *Server) SetBasePath(basePath string) {
	if !strings.HasSuffix(basePath, "/") {
		basePath += "/"
	}
	s.basePath = basePath
}

// SetCanCollectPII 设置握手时返回的是否允许收集个人信息
func (s *Server) SetCanCollectPII(can bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.canCollectPII = can
}

// SetNoFill 这些广告位的加载请求都返回no_fill
func (s *Server) SetNoFill(adUnitIDs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range adUnitIDs {
		s.noFill[id] = true
	}
}

// SetReward 设置播放完成后发放的奖励
func (s *Server) SetReward(label string, amount int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reward = rvpb.Reward{Label: label, Amount: amount}
}

// Inits 收到的握手次数
func (s *Server) Inits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inits
}

// Wait 等待所有事件推送完成
func (s *Server) Wait() {
	s.wg.Wait()
}

// ServeHTTP 处理init、load、show请求
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path, s.basePath) {
		http.Error(w, "no such path: "+r.URL.Path, http.StatusNotFound)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	op := r.URL.Path[len(s.basePath):]
	s.log.WithField("op", op).Debug("[Gateway] request")
	switch op {
	case "init":
		s.handleInit(w, body)
	case "load":
		s.handleLoad(w, body)
	case "show":
		s.handleShow(w, body)
	default:
		http.Error(w, "no such op: "+op, http.StatusNotFound)
	}
}

func (s *Server) handleInit(w http.ResponseWriter, body []byte) {
	var req rvpb.InitRequest
	if err := rvpb.Unmarshal(body, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.inits++
	res := &rvpb.InitResponse{CanCollectPII: s.canCollectPII}
	s.mu.Unlock()
	b, err := rvpb.Marshal(res)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(b)
}

func (s *Server) handleLoad(w http.ResponseWriter, body []byte) {
	var req rvpb.LoadRequest
	if err := rvpb.Unmarshal(body, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	var event *rvpb.Event
	if s.noFill[req.AdUnitID] {
		event = &rvpb.Event{Type: rvpb.EventLoadFailure, AdUnitID: req.AdUnitID, ErrorCode: errorNoFill}
	} else {
		s.loaded[req.AdUnitID] = true
		event = &rvpb.Event{Type: rvpb.EventLoadSuccess, AdUnitID: req.AdUnitID}
	}
	s.mu.Unlock()
	s.push(req.Callback, event)
}

func (s *Server) handleShow(w http.ResponseWriter, body []byte) {
	var req rvpb.ShowRequest
	if err := rvpb.Unmarshal(body, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	loaded := s.loaded[req.AdUnitID]
	delete(s.loaded, req.AdUnitID)
	reward := s.reward
	s.mu.Unlock()
	if !loaded {
		s.push(req.Callback, &rvpb.Event{Type: rvpb.EventPlaybackError, AdUnitID: req.AdUnitID, ErrorCode: errorNotLoaded})
		return
	}
	s.push(req.Callback,
		&rvpb.Event{Type: rvpb.EventStarted, AdUnitID: req.AdUnitID},
		&rvpb.Event{Type: rvpb.EventCompleted, AdUnitIDs: []string{req.AdUnitID}, Reward: reward},
		&rvpb.Event{Type: rvpb.EventClosed, AdUnitID: req.AdUnitID},
	)
}

// push 按顺序异步推送事件
func (s *Server) push(callback string, events ...*rvpb.Event) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for _, event := range events {
			if err := s.send(callback, event); err != nil {
				s.log.WithError(err).WithField("event", event.Type).Warn("[Gateway] push failed")
				return
			}
		}
	}()
}

func (s *Server) send(callback string, event *rvpb.Event) error {
	b, err := rvpb.Marshal(event)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, callback, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	res, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	io.Copy(io.Discard, res.Body)
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("callback returned: %v", res.Status)
	}
	return nil
}
