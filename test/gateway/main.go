package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jiaxwu/rvbridge/gateway"
	"github.com/jiaxwu/rvbridge/registry"
	"github.com/sirupsen/logrus"
)

func main() {
	// -port=8001 -etcd=127.0.0.1:2379 -nofill=unit3
	var (
		port   int
		etcd   string
		noFill string
		pii    bool
	)
	flag.IntVar(&port, "port", 8001, "Gateway server port")
	flag.StringVar(&etcd, "etcd", "", "Comma separated etcd endpoints to register with")
	flag.StringVar(&noFill, "nofill", "", "Comma separated ad unit IDs that never fill")
	flag.BoolVar(&pii, "pii", false, "Allow collecting personal information")
	flag.Parse()

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logrus.SetLevel(logrus.DebugLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gw := gateway.New()
	gw.SetCanCollectPII(pii)
	if noFill != "" {
		gw.SetNoFill(strings.Split(noFill, ",")...)
	}

	addr := fmt.Sprintf("http://localhost:%d", port)
	if etcd != "" {
		r, err := registry.New("rvbridge/gateways/", strings.Split(etcd, ","))
		if err != nil {
			logrus.Fatalln(err)
		}
		defer r.Close()
		if err := r.Register(ctx, addr); err != nil {
			logrus.Fatalln(err)
		}
		logrus.Infof("gateway %s registered in etcd", addr)
	}

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: gw}
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()
	logrus.Infof("gateway is running at %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logrus.Fatalln(err)
	}
	gw.Wait()
}
