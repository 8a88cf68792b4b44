package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"

	"github.com/jiaxwu/rvbridge"
	"github.com/jiaxwu/rvbridge/gateway"
)

// counter 统计被拒绝和加载成功的请求
type counter struct {
	rejected *atomic.Int32
	loaded   *atomic.Int32
	wg       *sync.WaitGroup
}

func (c counter) OnRewardedLoadSuccess(string) {
	c.loaded.Add(1)
	c.wg.Done()
}
func (c counter) OnRewardedLoadFailure(string, rvbridge.ErrorCode)   { c.wg.Done() }
func (c counter) OnRewardedStarted(string)                           {}
func (c counter) OnRewardedPlaybackError(string, rvbridge.ErrorCode) {}
func (c counter) OnRewardedClicked(string)                           {}
func (c counter) OnRewardedCompleted([]string, rvbridge.Reward)      {}
func (c counter) OnRewardedClosed(string)                            {}
func (c counter) OnAdFailedToLoad(*rvbridge.AdError) {
	c.rejected.Add(1)
	c.wg.Done()
}

func main() {
	var n int
	flag.IntVar(&n, "n", 5, "Concurrent load requests for one ad unit")
	flag.Parse()

	gw := gateway.New()
	gwSrv := httptest.NewServer(gw)
	defer gwSrv.Close()

	cbSrv := httptest.NewUnstartedServer(nil)
	sdk := rvbridge.NewHTTPSDK("http://" + cbSrv.Listener.Addr().String())
	cbSrv.Config.Handler = http.Handler(sdk)
	cbSrv.Start()
	defer cbSrv.Close()
	sdk.Set(gwSrv.URL)

	adapter := rvbridge.NewAdapter(sdk, -1)
	c := counter{rejected: &atomic.Int32{}, loaded: &atomic.Int32{}, wg: &sync.WaitGroup{}}
	c.wg.Add(n)
	for i := 0; i < n; i++ {
		go adapter.LoadRewarded(context.Background(), "unit1", rvbridge.RequestParameters{}, c)
	}
	c.wg.Wait()
	fmt.Printf("loaded=%d rejected=%d handshakes=%d\n", c.loaded.Load(), c.rejected.Load(), gw.Inits())
}
