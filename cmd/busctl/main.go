// Command busctl is a minimal telemetry-bus ping/inspect CLI, adapted from
// the teacher's cmd/foo (which opened a networktables.Client and looped
// Ping forever) into a one-shot tool that can also read and write a single
// entry for debugging a running synapsed instance.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/synapse-vision/synapse-core/internal/settings"
	"github.com/synapse-vision/synapse-core/internal/telemetrybus"
)

func main() {
	addr := flag.String("addr", ":1735", "telemetry bus server address")
	get := flag.String("get", "", "print the current value of this key and exit")
	put := flag.String("put", "", "write this key (requires -value) and exit")
	value := flag.String("value", "", "string value to write with -put")
	pings := flag.Int("pings", 5, "number of pings to send when neither -get nor -put is set")
	flag.Parse()

	client := &telemetrybus.Client{
		Logger: logrus.New(),
		Config: telemetrybus.ClientConfig{Addr: *addr},
	}

	if err := client.Open(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer client.Close()

	switch {
	case *get != "":
		v, ok := client.Get(*get)
		if !ok {
			fmt.Fprintf(os.Stderr, "no such key %q\n", *get)
			os.Exit(1)
		}
		fmt.Println(v.ToInterface())
	case *put != "":
		if err := client.Put(*put, settings.StringValue(*value)); err != nil {
			fmt.Fprintln(os.Stderr, "put:", err)
			os.Exit(1)
		}
	default:
		for i := 0; i < *pings; i++ {
			if err := client.Ping(); err != nil {
				fmt.Fprintln(os.Stderr, "ping:", err)
				os.Exit(1)
			}
			fmt.Println("pong")
		}
	}
}
