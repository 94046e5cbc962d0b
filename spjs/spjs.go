// Package spjs talks to a Serial Port JSON Server over a websocket.
package spjs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const reconnectDelay = 3 * time.Second

type SPJS struct {
	url string

	outgoing chan message
	incoming chan interface{}
	closeCh  chan struct{}

	closeOnce sync.Once
}

type message struct {
	done    chan struct{}
	payload []byte
}

type DataFrame struct {
	Port string `json:"P"`
	Data string `json:"D"`
}
type CmdStatus struct {
	Cmd        string
	QueueCount int `json:"QCnt"`
	Type       []string
	Data       []string `json:"D"`
	ID         string   `json:"Id"`
}

type ErrorMessage struct {
	Error string
}
type SerialPortList struct {
	SerialPorts []SerialPort
}
type SerialPort struct {
	Name         string
	Friendly     string
	SerialNumber string
	IsOpen       bool
	Baud         int
	USBVID       string
	USBPID       string
}

// ErrClosed is returned from writes after Close.
var ErrClosed = errors.New("spjs: closed")

func NewSPJS(url string) *SPJS {
	sp := &SPJS{
		url:      url,
		outgoing: make(chan message, 1000),
		incoming: make(chan interface{}, 1000),
		closeCh:  make(chan struct{}),
	}

	go sp.loop()

	return sp
}

// Messages returns parsed messages from the server.
func (sp *SPJS) Messages() chan interface{} {
	return sp.incoming
}

// Close disconnects and stops reconnecting.
func (sp *SPJS) Close() error {
	sp.closeOnce.Do(func() { close(sp.closeCh) })
	return nil
}

func parseSPJSMessage(data []byte, msg map[string]json.RawMessage) (val interface{}, err error) {
	check := func(fieldName string, v interface{}) bool {
		if msg[fieldName] == nil {
			return false
		}
		val = v
		err = json.Unmarshal(data, val)
		return true
	}
	if check("Error", &ErrorMessage{}) {
		return
	}
	if check("SerialPorts", &SerialPortList{}) {
		return
	}
	if check("Cmd", &CmdStatus{}) {
		return
	}
	if check("D", &DataFrame{}) {
		return
	}

	return nil, errors.New("unknown message: " + string(data))
}

func (sp *SPJS) readLoop(ws *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			log.Println("ERROR: spjs read:", err)
			return
		}
		if !bytes.HasPrefix(data, []byte("{")) {
			// ignore echo messages
			continue
		}
		var msg map[string]json.RawMessage
		err = json.Unmarshal(data, &msg)
		if err != nil {
			log.Println("ERROR: spjs read:", err)
			continue
		}
		val, err := parseSPJSMessage(data, msg)
		if err != nil {
			log.Println("ERROR: spjs parse:", err)
			continue
		}
		select {
		case sp.incoming <- val:
		case <-sp.closeCh:
			return
		}
	}
}

func (sp *SPJS) loop() {
	var nextUp message

reconnect:
	for {
		select {
		case <-sp.closeCh:
			return
		default:
		}

		log.Println("Connecting to", sp.url)
		ws, _, err := websocket.DefaultDialer.Dial(sp.url, nil)
		if err != nil {
			log.Println("ERROR: spjs connect:", err)
			select {
			case <-sp.closeCh:
				return
			case <-time.After(reconnectDelay):
			}
			continue
		}
		log.Println("Connected.")
		ch := make(chan struct{})
		go sp.readLoop(ws, ch)
		go sp.WriteString("list") // refresh list on reconnect

		for {
			if nextUp.done != nil {
				err = ws.WriteMessage(websocket.TextMessage, nextUp.payload)
				if err != nil {
					log.Println("ERROR: spjs send:", err)
					ws.Close()
					continue reconnect
				}
				close(nextUp.done)
				nextUp.done = nil
			}

			select {
			case <-sp.closeCh:
				ws.Close()
				return
			case <-ch:
				ws.Close()
				continue reconnect
			case nextUp = <-sp.outgoing:
			}
		}
	}
}

// WriteString sends a raw command and blocks until it is on the wire.
func (sp *SPJS) WriteString(data string) error {
	return sp.WriteStringContext(context.Background(), data)
}

// WriteStringContext is WriteString bounded by ctx.
func (sp *SPJS) WriteStringContext(ctx context.Context, data string) error {
	ch := make(chan struct{})
	select {
	case sp.outgoing <- message{done: ch, payload: []byte(data)}:
	case <-sp.closeCh:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-ch:
		return nil
	case <-sp.closeCh:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}
