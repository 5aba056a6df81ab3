package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/robotalks/coex.go/pkg/framework"
	"github.com/robotalks/coex.go/pkg/ipc/mqtt"
	"github.com/robotalks/coex.go/pkg/monitor"
)

var (
	mqttURL    = "mqtt://localhost:1883/coex/"
	node       = "+"
	outputJSON bool
)

func init() {
	if val := os.Getenv("COEX_MONITOR_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
	flag.StringVar(&node, "node", node, "Node ID to watch, + for all.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print records in JSON.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	q, err := mqtt.NewQueueFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}
	if token := q.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalln(token.Error())
	}
	defer q.Close()

	q.Sub(monitor.TraceTopic(node), func(topic string, payload []byte) {
		r, err := monitor.Decode(payload)
		if err != nil {
			log.Printf("%s: bad record: %v", topic, err)
			return
		}
		if !outputJSON {
			log.Println(r.Format())
			return
		}
		out, err := r.JSON()
		if err != nil {
			log.Printf("%s: %v", topic, err)
			return
		}
		log.Println(out)
	})

	runner := framework.NewRunner().HandleSignals()
	runner.Go(framework.RunFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	if err := runner.Wait(); err != nil {
		log.Fatalln(err)
	}
}
