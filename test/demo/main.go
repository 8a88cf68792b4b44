package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jiaxwu/rvbridge"
	"github.com/sirupsen/logrus"
)

// printer 打印回调，终结回调时通知done
type printer struct {
	loaded chan struct{}
	done   chan struct{}
}

func (p *printer) OnRewardedLoadSuccess(id string) {
	fmt.Println("loaded", id)
	close(p.loaded)
}
func (p *printer) OnRewardedLoadFailure(id string, code rvbridge.ErrorCode) {
	fmt.Println("load failed", id, code)
	close(p.done)
}
func (p *printer) OnRewardedStarted(id string) { fmt.Println("started", id) }
func (p *printer) OnRewardedPlaybackError(id string, code rvbridge.ErrorCode) {
	fmt.Println("playback error", id, code)
	close(p.done)
}
func (p *printer) OnRewardedClicked(id string) { fmt.Println("clicked", id) }
func (p *printer) OnRewardedCompleted(ids []string, reward rvbridge.Reward) {
	fmt.Printf("rewarded %v with %d %s\n", ids, reward.Amount, reward.Label)
}
func (p *printer) OnRewardedClosed(id string) {
	fmt.Println("closed", id)
	close(p.done)
}
func (p *printer) OnAdFailedToLoad(err *rvbridge.AdError) {
	fmt.Println("rejected:", err)
}

func main() {
	// -port=9999 -gateway=http://localhost:8001 -unit=unit1
	var (
		port     int
		gateways string
		etcd     string
		unit     string
		copies   int
	)
	flag.IntVar(&port, "port", 9999, "Callback server port")
	flag.StringVar(&gateways, "gateway", "http://localhost:8001", "Comma separated gateway addresses")
	flag.StringVar(&etcd, "etcd", "", "Discover gateways from these etcd endpoints instead")
	flag.StringVar(&unit, "unit", "unit1", "Ad unit ID")
	flag.IntVar(&copies, "copies", 1, "Duplicate load requests for the same ad unit")
	flag.Parse()

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logrus.SetLevel(logrus.InfoLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addr := fmt.Sprintf("http://localhost:%d", port)
	sdk := rvbridge.NewHTTPSDK(addr)
	if etcd != "" {
		if err := sdk.SetETCDRegistry(ctx, strings.Split(etcd, ",")...); err != nil {
			logrus.Fatalln(err)
		}
	} else {
		sdk.Set(strings.Split(gateways, ",")...)
	}
	logrus.Infof("gateways: %v", sdk.Gateways())
	go func() {
		logrus.Infof("callback server is running at %s", addr)
		logrus.Fatalln(http.ListenAndServe(fmt.Sprintf(":%d", port), sdk))
	}()

	adapter := rvbridge.NewAdapter(sdk, -1)
	params := rvbridge.NewRequestParameters(rvbridge.MediationConfig{}, sdk.CanCollectPersonalInformation())
	p := &printer{loaded: make(chan struct{}), done: make(chan struct{})}
	req, err := adapter.LoadRewarded(ctx, unit, params, p)
	if err != nil {
		logrus.Fatalln(err)
	}
	// 重复请求会被直接拒绝
	for i := 1; i < copies; i++ {
		adapter.LoadRewarded(ctx, unit, params, &printer{})
	}

	select {
	case <-p.loaded:
	case <-p.done:
		return
	case <-time.After(10 * time.Second):
		logrus.Fatalln("timed out waiting for the ad to load")
	}
	if err := req.Show("demo"); err != nil {
		logrus.Fatalln(err)
	}
	select {
	case <-p.done:
	case <-time.After(10 * time.Second):
		logrus.Fatalln("timed out waiting for the ad to close")
	}
}
