// Command monitor tails the robot's dashboard websocket from a terminal.
//
//	monitor --addr 127.0.0.1:8088             # loop state + LCD mirror
//	monitor --addr 127.0.0.1:8088 --events    # audit event stream
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"
)

const reconnectDelay = 2 * time.Second

func main() {
	addr := flag.String("addr", "127.0.0.1:8088", "dashboard host:port")
	events := flag.Bool("events", false, "tail audit events instead of loop state")
	flag.Parse()

	path := "/ws/status"
	if *events {
		path = "/ws/events"
	}
	u := url.URL{Scheme: "ws", Host: *addr, Path: path}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if err := tail(u.String()); err != nil {
				fmt.Fprintf(os.Stderr, "connection lost: %v, retrying in %s\n", err, reconnectDelay)
			}
			select {
			case <-interrupt:
				return
			case <-time.After(reconnectDelay):
			}
		}
	}()

	select {
	case <-interrupt:
	case <-done:
	}
}

func tail(target string) error {
	conn, _, err := websocket.DefaultDialer.Dial(target, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", target, err)
	}
	defer conn.Close()
	fmt.Fprintf(os.Stderr, "connected to %s\n", target)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		fmt.Println(compact(data))
	}
}

// compact renders the payload as a single line, falling back to the raw
// bytes when the payload is not JSON.
func compact(data []byte) string {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return string(data)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return string(data)
	}
	return string(out)
}
