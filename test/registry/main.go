package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/jiaxwu/rvbridge/registry"
	"github.com/sirupsen/logrus"
)

func main() {
	var etcd string
	flag.StringVar(&etcd, "etcd", "127.0.0.1:2379", "Comma separated etcd endpoints")
	flag.Parse()

	r, err := registry.New("rvbridge/gateways/", strings.Split(etcd, ","))
	if err != nil {
		logrus.Fatalln(err)
	}
	defer r.Close()
	ctx := context.Background()
	watch := r.Watch(ctx)
	addrs, err := r.GetAddrs(ctx)
	if err != nil {
		logrus.Fatalln(err)
	}
	fmt.Println("gateways:", addrs)
	for event := range watch {
		fmt.Printf("%+v\n", event)
	}
}
