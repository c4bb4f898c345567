package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/tank.go/pkg/env"
	"github.com/robotalks/tank.go/pkg/framework"
	"github.com/robotalks/tank.go/pkg/tank"
)

var (
	connectTimeout = 30 * time.Second
	retention      = tank.DefaultRetention
)

func init() {
	env.SetupFlags()
	flag.DurationVar(&connectTimeout, "mqtt-connect-timeout", connectTimeout, "Timeout connecting the MQTT broker")
	flag.DurationVar(&retention, "history-retention", retention, "How long temperature history is kept, 0 to keep all")
}

func logReading(_ context.Context, r tank.Reading) error {
	glog.Infof("temperature %.2f°C at %s", r.Temperature, r.Time.Format(time.RFC3339))
	return nil
}

func main() {
	flag.Parse()

	e := env.NewConfig().MustNewEnv()
	defer e.Close()
	if err := e.Conn.Connect(); err != nil {
		glog.Warningf("connect %s failed, retry on demand: %v", e.Config.LinkURL, err)
	}

	history := tank.NewHistory()
	history.Retention = retention
	sinks := tank.MultiSink{history}
	if bridge := e.NewBridge(); bridge != nil {
		bridge.History = history
		if err := e.Queue.Connect(connectTimeout); err != nil {
			log.Fatalln(err)
		}
		if err := bridge.Start(); err != nil {
			log.Fatalln(err)
		}
		defer bridge.Close()
		sinks = append(sinks, bridge)
	} else {
		sinks = append(sinks, tank.ReadingSinkFunc(logReading))
	}

	runner := framework.NewRunner().HandleSignals()
	runner.Go("poller", e.NewPoller(sinks))
	if err := runner.Wait(); err != nil {
		glog.Error(err)
		glog.Flush()
		log.Fatalln(err)
	}
}
