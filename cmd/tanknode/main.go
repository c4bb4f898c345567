package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"
	"log"
	"net/http"

	"github.com/golang/glog"

	"github.com/robotalks/tank.go/pkg/framework"
	"github.com/robotalks/tank.go/pkg/l0/comm"
	"github.com/robotalks/tank.go/pkg/l0/link"
	"github.com/robotalks/tank.go/pkg/node"
)

var (
	listenURL   string
	linkURL     string
	wsAddr      string
	temperature = 25.0
	drift       float64
)

func init() {
	node.SetupFlags()
	flag.StringVar(&listenURL, "listen", listenURL, "Accept links on tcp://host:port")
	flag.StringVar(&linkURL, "link", linkURL, "Serve a single link, e.g. serial:///dev/ttyUSB0")
	flag.StringVar(&wsAddr, "ws", wsAddr, "Accept websocket links on the HTTP address")
	flag.Float64Var(&temperature, "temperature", temperature, "Simulated water temperature")
	flag.Float64Var(&drift, "drift", drift, "Temperature change after each reading")
}

type simNode struct {
	board  *node.SimBoard
	sensor *node.SimSensor
}

func (s *simNode) serve(ctx context.Context, t *comm.StreamTransport) error {
	n := node.Default().NewNode(t, s.board, s.sensor)
	n.SetObserver(&comm.LogObserver{Prefix: "node: "})
	defer n.Close()
	glog.Info("link up")
	err := n.Run(ctx)
	glog.Infof("link down: %v", err)
	return err
}

func (s *simNode) listen(ctx context.Context) error {
	ln, err := link.Listen(listenURL)
	if err != nil {
		return err
	}
	return framework.RunWithCloser(ctx, ln, func() error {
		for {
			t, err := ln.AcceptLink()
			if err != nil {
				return err
			}
			s.serve(ctx, t)
		}
	})
}

func (s *simNode) serveWebsocket(ctx context.Context) error {
	srv := &http.Server{
		Addr: wsAddr,
		Handler: link.WebsocketHandler(func(t *comm.StreamTransport) {
			s.serve(ctx, t)
		}),
	}
	return framework.RunWithCloser(ctx, srv, srv.ListenAndServe)
}

func (s *simNode) serveLink(ctx context.Context) error {
	t, err := link.Open(linkURL)
	if err != nil {
		return err
	}
	return s.serve(ctx, t)
}

func main() {
	flag.Parse()
	if listenURL == "" && wsAddr == "" && linkURL == "" {
		log.Fatalln("one of -listen, -ws, -link is required")
	}

	sensor := node.NewSimSensor(float32(temperature))
	sensor.Bus = node.Default().SensorBus
	sensor.Drift = float32(drift)
	s := &simNode{board: node.NewSimBoard(), sensor: sensor}

	runner := framework.NewRunner().HandleSignals()
	if listenURL != "" {
		runner.Go("listen", framework.RunFunc(s.listen))
	}
	if wsAddr != "" {
		runner.Go("websocket", framework.RunFunc(s.serveWebsocket))
	}
	if linkURL != "" {
		runner.Go("link", framework.RunFunc(s.serveLink)).StopOnExit()
	}
	if err := runner.Wait(); err != nil {
		glog.Flush()
		log.Fatalln(err)
	}
}
