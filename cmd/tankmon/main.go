package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/robotalks/tank.go/pkg/framework"
	"github.com/robotalks/tank.go/pkg/telemetry"
	"github.com/robotalks/tank.go/pkg/telemetry/mqtt"
)

var (
	mqttURL     = "mqtt://localhost:1883/fish/"
	tankFilter  = "+"
	historyDays float64
)

func init() {
	if val := os.Getenv("TANK_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
	flag.StringVar(&tankFilter, "tank", tankFilter, "Tank name, + for all.")
	flag.Float64Var(&historyDays, "history", historyDays, "Print temperature history of the last DAYS of -tank and exit.")
}

func queryHistory(q *mqtt.Queue) {
	if mqtt.IsWildcard(tankFilter) {
		log.Fatalln("-history requires -tank NAME")
	}
	req := &telemetry.HistoryRequest{RequestID: strconv.FormatInt(time.Now().UnixNano(), 36), Days: historyDays}
	replyCh := make(chan *telemetry.HistoryReply, 1)
	sub := q.Sub(tankFilter+"/"+mqtt.TopicHistoryReply, func(topic string, payload []byte) {
		s, err := telemetry.Unmarshal(payload)
		if err != nil {
			log.Printf("%s: bad message: %v", topic, err)
			return
		}
		reply, err := telemetry.ParseHistoryReply(s)
		if err != nil {
			log.Printf("%s: %v", topic, err)
			return
		}
		if reply.RequestID == req.RequestID {
			select {
			case replyCh <- reply:
			default:
			}
		}
	})
	defer sub.Close()
	if sub.Token.Wait() && sub.Token.Error() != nil {
		log.Fatalln(sub.Token.Error())
	}
	payload, err := telemetry.Marshal(req.Struct())
	if err == nil {
		err = q.Publish(tankFilter+"/"+mqtt.TopicHistory, payload)
	}
	if err != nil {
		log.Fatalln(err)
	}
	select {
	case reply := <-replyCh:
		if reply.Error != "" {
			log.Fatalln(reply.Error)
		}
		for _, r := range reply.Readings {
			fmt.Printf("%s %.2f\n", r.Time.Format(time.RFC3339), r.Temperature)
		}
	case <-time.After(30 * time.Second):
		log.Fatalln("no history reply")
	}
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	q, err := mqtt.NewQueueFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}
	if err := q.Connect(30 * time.Second); err != nil {
		log.Fatalln(err)
	}
	if historyDays > 0 {
		queryHistory(q)
		q.Close()
		return
	}

	show := func(topic string, payload []byte) {
		s, err := telemetry.Unmarshal(payload)
		if err != nil {
			log.Printf("%s: bad message: %v", topic, err)
			return
		}
		out, err := telemetry.JSON(s)
		if err != nil {
			log.Printf("%s: %v", topic, err)
			return
		}
		log.Printf("%s: %s", topic, out)
	}
	for _, suffix := range []string{mqtt.TopicTemperature, mqtt.TopicReply} {
		if sub := q.Sub(tankFilter+"/"+suffix, show); sub.Token.Wait() && sub.Token.Error() != nil {
			log.Fatalln(sub.Token.Error())
		}
	}

	runner := framework.NewRunner().HandleSignals()
	<-runner.Context.Done()
	q.Close()
}
