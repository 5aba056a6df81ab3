package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/golang/glog"

	"github.com/robotalks/coex.go/pkg/framework"
	"github.com/robotalks/coex.go/pkg/hci"
	"github.com/robotalks/coex.go/pkg/hci/capture"
	"github.com/robotalks/coex.go/pkg/hci/h4"
)

var (
	portPath   string
	portOpts   h4.PortOptions
	outPath    = "hci.pcap"
	replayPath string
	sendReset  bool
)

// hciReset is the HCI_Reset command: opcode 0x0c03, no parameters.
var hciReset = []byte{0x03, 0x0c, 0x00}

func init() {
	flag.StringVar(&portPath, "port", portPath, "Serial device of the controller.")
	flag.IntVar(&portOpts.BaudRate, "baud", h4.DefaultBaudRate, "Baud rate.")
	flag.StringVar(&portOpts.Parity, "parity", "N", "Parity: N, E or O.")
	flag.StringVar(&outPath, "o", outPath, "Capture file to write.")
	flag.StringVar(&replayPath, "r", replayPath, "Print a capture file instead of capturing.")
	flag.BoolVar(&sendReset, "reset", sendReset, "Send HCI_Reset after opening the port.")
}

func replay(path string) error {
	records, err := capture.Open(path)
	if err != nil {
		return err
	}
	for _, r := range records {
		fmt.Printf("%s %s %s % x\n",
			r.Timestamp.Format("15:04:05.000000"), r.Dir, r.Frame.Type(), r.Frame.Payload())
	}
	return nil
}

func main() {
	flag.Parse()
	if replayPath != "" {
		if err := replay(replayPath); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if portPath == "" {
		log.Fatalln("-port is required")
	}

	transport, err := h4.OpenSerial(portPath, portOpts)
	if err != nil {
		log.Fatalln(err)
	}
	w, err := capture.Create(outPath)
	if err != nil {
		log.Fatalln(err)
	}
	framer := hci.NewFramer(transport, hci.WithTap(w))
	err = framer.Init(hci.HandlePacketFunc(func(t hci.PacketType, payload []byte) {
		glog.Infof("%s % x", t, payload)
	}))
	if err != nil {
		log.Fatalln(err)
	}

	runner := framework.NewRunner().HandleSignals()
	runner.Go(framework.NamedRun("h4", transport))
	if sendReset {
		if err := framer.Send(hci.Command, hciReset); err != nil {
			glog.Errorf("send reset: %v", err)
		}
	}
	err = runner.Wait()

	framer.Deinit()
	if cerr := w.Close(); cerr != nil && err == nil {
		err = cerr
	}
	stats := framer.Stats()
	glog.Infof("captured %d frames, sent %d, dropped %d, skipped %d bytes",
		stats.FramesReceived, stats.FramesSent, stats.FramesDropped, transport.Skipped())
	glog.Flush()
	if err != nil {
		log.Fatalln(err)
	}
}
