package flexismart

import (
	"encoding/binary"
	"math"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// appendString appends a length-prefixed string.
func appendString(buf []byte, s string) []byte {
	buf = append(buf, uint8(len(s)))
	return append(buf, s...)
}

func appendTemperature(buf []byte, celsius float64) []byte {
	return binary.BigEndian.AppendUint16(buf, uint16(int16(math.Round(celsius*10))))
}

// encodeGatewayData builds a gateway data response body (without status).
func encodeGatewayData(gw GatewayData) []byte {
	var buf []byte
	buf = appendString(buf, gw.FirmwareVersion)
	buf = appendString(buf, gw.Model)
	buf = appendString(buf, gw.DeviceName)
	buf = append(buf, gw.MACAddress...)
	buf = append(buf, gw.IPAddress.To4()...)
	buf = append(buf, uint8(len(gw.Zones)))
	for _, z := range gw.Zones {
		buf = append(buf, uint8(z))
	}
	return buf
}

// encodeModuleData builds a module data response body (without status).
func encodeModuleData(m ModuleData) []byte {
	buf := []byte{uint8(m.Zone), uint8(m.Module)}
	buf = appendString(buf, m.Identifier)
	buf = appendString(buf, m.FirmwareVersion)
	buf = appendTemperature(buf, m.TargetTemperature)
	buf = appendTemperature(buf, m.CurrentTemperature)
	buf = appendTemperature(buf, m.TemperatureOffset)

	var flags uint8
	if m.BoostActive {
		flags |= flagBoostActive
	}
	if m.WindowOpenDetection {
		flags |= flagWindowOpenDetection
	}
	if m.Extended {
		flags |= flagExtended
	}
	buf = append(buf, flags)
	buf = binary.BigEndian.AppendUint16(buf, uint16(m.BoostTimeLeft/time.Minute))

	if m.Extended {
		buf = appendTemperature(buf, m.AntiFreezeTemperature)
		var active uint8
		if m.Holiday.Active {
			active = 1
		}
		buf = append(buf, active)
		var until uint32
		if !m.Holiday.Until.IsZero() {
			until = uint32(m.Holiday.Until.Unix())
		}
		buf = binary.BigEndian.AppendUint32(buf, until)
	}
	return buf
}

// handlerFunc answers one request; returning nil drops it.
type handlerFunc func(p *Packet) []byte

// fakeGateway is a loopback UDP peer that answers packets via handle.
type fakeGateway struct {
	conn *net.UDPConn

	mu       sync.Mutex
	handle   handlerFunc
	received []*Packet
}

func newFakeGateway(t *testing.T, handle handlerFunc) *fakeGateway {
	t.Helper()

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)

	g := &fakeGateway{conn: conn, handle: handle}
	t.Cleanup(func() { conn.Close() })

	go g.serve()
	return g
}

func (g *fakeGateway) port() int {
	return g.conn.LocalAddr().(*net.UDPAddr).Port
}

func (g *fakeGateway) requests() []*Packet {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*Packet(nil), g.received...)
}

func (g *fakeGateway) serve() {
	buf := make([]byte, 2048)
	for {
		n, from, err := g.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		p, err := Decode(buf[:n])
		if err != nil {
			continue
		}

		g.mu.Lock()
		g.received = append(g.received, p)
		handle := g.handle
		g.mu.Unlock()

		body := handle(p)
		if body == nil {
			continue
		}
		reply := NewPacket(p.MsgID, p.Command, body).Encode()
		_, _ = g.conn.WriteToUDP(reply, from)
	}
}

// ok prefixes a response body with StatusOK.
func ok(body []byte) []byte {
	return append([]byte{StatusOK}, body...)
}
