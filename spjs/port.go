package spjs

import (
	"bytes"
	"context"
	"io"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"
)

const closeTimeout = 2 * time.Second

// Port is one serial port on the server, presented as a byte stream.
// It consumes the SPJS message channel, so only one Port may be used
// per SPJS.
type Port struct {
	sp   *SPJS
	name string
	baud int

	data    chan string
	closeCh chan struct{}

	buf       bytes.Buffer
	closeOnce sync.Once
}

var _ io.ReadWriteCloser = &Port{}

// Port opens name on the server with the given baud rate.
func (sp *SPJS) Port(name string, baud int) *Port {
	p := &Port{
		sp:      sp,
		name:    name,
		baud:    baud,
		data:    make(chan string, 100),
		closeCh: make(chan struct{}),
	}
	go p.loop()
	return p
}

func (p *Port) openCommand() string {
	return "open " + p.name + " " + strconv.Itoa(p.baud)
}

func (p *Port) loop() {
	for {
		var msg interface{}
		select {
		case <-p.closeCh:
			return
		case msg = <-p.sp.Messages():
		}

		switch m := msg.(type) {
		case *DataFrame:
			if m.Port != p.name {
				continue
			}
			select {
			case p.data <- m.Data:
			case <-p.closeCh:
				return
			}
		case *SerialPortList:
			for _, port := range m.SerialPorts {
				if port.Name == p.name && !port.IsOpen {
					go p.sp.WriteString(p.openCommand())
				}
			}
		case *ErrorMessage:
			log.Println("ERROR: spjs:", m.Error)
		}
	}
}

// Write sends each line in b to the port.
func (p *Port) Write(b []byte) (int, error) {
	for _, line := range strings.SplitAfter(string(b), "\n") {
		if line == "" {
			continue
		}
		if err := p.sp.WriteString("send " + p.name + " " + line); err != nil {
			return 0, err
		}
	}
	return len(b), nil
}

// Read returns data the device sent.
func (p *Port) Read(b []byte) (int, error) {
	if p.buf.Len() == 0 {
		select {
		case <-p.closeCh:
			return 0, io.ErrClosedPipe
		case d := <-p.data:
			p.buf.WriteString(d)
		}
	}
	return p.buf.Read(b)
}

// Close closes the port on the server and stops reading. The close
// command is on the wire when Close returns unless it took longer than
// closeTimeout. The SPJS connection itself stays open.
func (p *Port) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.closeCh)
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		err = p.sp.WriteStringContext(ctx, "close "+p.name)
	})
	return err
}
