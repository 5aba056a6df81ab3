package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/coex.go/pkg/env"
	"github.com/robotalks/coex.go/pkg/framework"
	"github.com/robotalks/coex.go/pkg/ipc/mqtt"
	"github.com/robotalks/coex.go/pkg/monitor"
	"github.com/robotalks/coex.go/pkg/mws"
	"github.com/robotalks/coex.go/pkg/mws/radio"
)

var statsInterval time.Duration

func init() {
	if os.Getenv("COEX_ROLE") == "" {
		env.Default().Role = string(mqtt.NBURole)
	}
	env.Default().Listen = true
	env.SetupFlags()
	flag.DurationVar(&statsInterval, "stats", statsInterval, "Interval to log endpoint stats, 0 to disable.")
}

func main() {
	flag.Parse()

	conf := env.MustLoad()
	mwsConf, err := conf.MWSConfig()
	if err != nil {
		log.Fatalln(err)
	}

	arbiter := radio.NewArbiter(mwsConf.Priorities)
	arbiter.AddListener(radio.ListenerFunc(func(owner *radio.Owner) {
		if owner == nil {
			glog.Info("radio released")
			return
		}
		glog.Infof("radio owned by %s (exclusive=%v)", owner.Protocol, owner.Exclusive)
	}))
	opts := []mws.Option{mws.WithConfig(mwsConf), mws.WithRadio(arbiter)}

	if conf.MonitorURL != "" {
		q, err := mqtt.NewQueueFromURL(conf.MonitorURL)
		if err != nil {
			log.Fatalln(err)
		}
		if token := q.Connect(); token.Wait() && token.Error() != nil {
			log.Fatalln(token.Error())
		}
		defer q.Close()
		pub := monitor.NewPublisher(conf.NodeID, &monitor.QueueSink{Queue: q})
		opts = append(opts, mws.WithTracer(pub))
	}

	runner := framework.NewRunner().HandleSignals()
	ch, err := conf.OpenChannel(runner.Context)
	if err != nil {
		log.Fatalln(err)
	}
	endpoint := mws.NewEndpoint(ch, opts...)
	glog.Infof("node %s serving as %s on %s", conf.NodeID, conf.Role, conf.ChannelURL)

	runner.Go(framework.NamedRun("endpoint", endpoint))
	if statsInterval > 0 {
		runner.Go(framework.NamedRun("stats", framework.RunFunc(func(ctx context.Context) error {
			ticker := time.NewTicker(statsInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-ticker.C:
					glog.Infof("stats: %+v", endpoint.Stats())
				}
			}
		})))
	}
	if err := runner.Wait(); err != nil {
		glog.Flush()
		log.Fatalln(err)
	}
	glog.Flush()
}
