package flexismart

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"net"
	"strings"
	"time"
)

// Module data flag bits.
const (
	flagBoostActive         = 0x01
	flagWindowOpenDetection = 0x02
	flagExtended            = 0x80
)

// GatewayData describes the gateway itself and the zones it manages.
type GatewayData struct {
	FirmwareVersion string
	Model           string
	DeviceName      string
	MACAddress      net.HardwareAddr
	IPAddress       net.IP
	Zones           []int
}

// HolidayData is the holiday (away) programme of a module.
type HolidayData struct {
	Active bool
	Until  time.Time
}

// ModuleData is the telemetry of a single heater module.
//
// AntiFreezeTemperature and Holiday are only meaningful when Extended is
// set, i.e. when the data was requested with the extended flag and the
// gateway returned the extended block.
type ModuleData struct {
	Zone                int
	Module              int
	Identifier          string
	FirmwareVersion     string
	TargetTemperature   float64
	CurrentTemperature  float64
	TemperatureOffset   float64
	BoostActive         bool
	BoostTimeLeft       time.Duration
	WindowOpenDetection bool

	Extended              bool
	AntiFreezeTemperature float64
	Holiday               HolidayData
}

// BoostTimeLeftString renders the remaining boost time the way the gateway
// app does, e.g. "45 min". It is "0 min" while boost is inactive.
func (m ModuleData) BoostTimeLeftString() string {
	if !m.BoostActive {
		return "0 min"
	}
	return fmt.Sprintf("%d min", int(m.BoostTimeLeft/time.Minute))
}

// MarshalModuleAddress creates the payload addressing a single module.
func MarshalModuleAddress(zone, module int) ([]byte, error) {
	if zone < 0 || zone > 255 {
		return nil, fmt.Errorf("%w: zone %d out of range", ErrInvalidRequest, zone)
	}
	if module < 0 || module > 255 {
		return nil, fmt.Errorf("%w: module %d out of range", ErrInvalidRequest, module)
	}
	return []byte{uint8(zone), uint8(module)}, nil
}

// MarshalModuleDataRequest creates the payload of a module data request.
func MarshalModuleDataRequest(zone, module int, extended bool) ([]byte, error) {
	buf, err := MarshalModuleAddress(zone, module)
	if err != nil {
		return nil, err
	}
	var ext uint8
	if extended {
		ext = 1
	}
	return append(buf, ext), nil
}

// MarshalTemperature appends a temperature in tenths of a degree.
func MarshalTemperature(buf []byte, celsius float64) ([]byte, error) {
	tenths := math.Round(celsius * 10)
	if tenths < math.MinInt16 || tenths > math.MaxInt16 {
		return nil, fmt.Errorf("%w: temperature %.1f out of range", ErrInvalidRequest, celsius)
	}
	return binary.BigEndian.AppendUint16(buf, uint16(int16(tenths))), nil
}

// MarshalHolidayMode creates the payload enabling holiday mode on a module
// until the given time, returning to temperature afterwards.
func MarshalHolidayMode(zone, module int, until time.Time, temperature float64) ([]byte, error) {
	buf, err := MarshalModuleAddress(zone, module)
	if err != nil {
		return nil, err
	}
	buf = binary.BigEndian.AppendUint32(buf, uint32(until.Unix()))
	return MarshalTemperature(buf, temperature)
}

// MarshalDateTime creates the payload setting the gateway clock.
func MarshalDateTime(t time.Time) []byte {
	buf := binary.BigEndian.AppendUint16(nil, uint16(t.Year()))
	return append(buf,
		uint8(t.Month()),
		uint8(t.Day()),
		uint8(t.Hour()),
		uint8(t.Minute()),
		uint8(t.Second()),
		uint8(t.Weekday()),
	)
}

// checkStatus strips the status byte of a response payload.
func checkStatus(data []byte) ([]byte, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidResponse)
	}
	switch data[0] {
	case StatusOK:
		return data[1:], nil
	case StatusInvalidRequest:
		return nil, ErrInvalidRequest
	default:
		return nil, fmt.Errorf("%w: unknown status 0x%02X", ErrInvalidResponse, data[0])
	}
}

// UnmarshalGatewayData parses the payload of a gateway data response.
func UnmarshalGatewayData(data []byte) (*GatewayData, error) {
	r := payloadReader{data: data}

	gw := &GatewayData{
		FirmwareVersion: r.str(),
		Model:           r.str(),
		DeviceName:      r.str(),
		MACAddress:      net.HardwareAddr(r.bytes(6)),
		IPAddress:       net.IP(r.bytes(4)),
	}

	count := int(r.u8())
	zones := make([]int, 0, count)
	for i := 0; i < count; i++ {
		zones = append(zones, int(r.u8()))
	}
	gw.Zones = zones

	if r.err != nil {
		return nil, fmt.Errorf("gateway data: %w", r.err)
	}
	return gw, nil
}

// UnmarshalModuleCount parses the payload of a module count response.
func UnmarshalModuleCount(data []byte) (int, error) {
	r := payloadReader{data: data}
	n := int(r.u8())
	if r.err != nil {
		return 0, fmt.Errorf("module count: %w", r.err)
	}
	return n, nil
}

// UnmarshalModuleData parses the payload of a module data response.
func UnmarshalModuleData(data []byte) (*ModuleData, error) {
	r := payloadReader{data: data}

	m := &ModuleData{
		Zone:            int(r.u8()),
		Module:          int(r.u8()),
		Identifier:      r.str(),
		FirmwareVersion: r.str(),
	}
	m.TargetTemperature = r.temperature()
	m.CurrentTemperature = r.temperature()
	m.TemperatureOffset = r.temperature()

	flags := r.u8()
	m.BoostActive = flags&flagBoostActive != 0
	m.WindowOpenDetection = flags&flagWindowOpenDetection != 0
	m.BoostTimeLeft = time.Duration(r.u16()) * time.Minute

	if flags&flagExtended != 0 {
		m.Extended = true
		m.AntiFreezeTemperature = r.temperature()
		m.Holiday.Active = r.u8() != 0
		if until := r.u32(); until != 0 {
			m.Holiday.Until = time.Unix(int64(until), 0)
		}
	}

	if r.err != nil {
		return nil, fmt.Errorf("module data: %w", r.err)
	}
	if m.Identifier == "" {
		return nil, fmt.Errorf("%w: module data without identifier", ErrInvalidResponse)
	}
	return m, nil
}

// payloadReader reads big-endian fields, remembering the first short read.
type payloadReader struct {
	data []byte
	off  int
	err  error
}

func (r *payloadReader) bytes(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.off+n > len(r.data) {
		r.err = fmt.Errorf("%w: %w at offset %d", ErrInvalidResponse, ErrInvalidLength, r.off)
		return nil
	}
	b := make([]byte, n)
	copy(b, r.data[r.off:r.off+n])
	r.off += n
	return b
}

func (r *payloadReader) u8() uint8 {
	b := r.bytes(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *payloadReader) u16() uint16 {
	b := r.bytes(2)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

func (r *payloadReader) u32() uint32 {
	b := r.bytes(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (r *payloadReader) temperature() float64 {
	return float64(int16(r.u16())) / 10
}

func (r *payloadReader) str() string {
	n := int(r.u8())
	b := r.bytes(n)
	return strings.TrimRight(string(b), "\x00")
}

var (
	// ErrTooManyRequests is returned when all 256 message ids are waiting
	// for a response.
	ErrTooManyRequests = errors.New("too many requests in flight")
	// ErrRequestTimeout is returned when the gateway does not answer in time.
	ErrRequestTimeout = errors.New("request timeout")
	// ErrInvalidResponse is returned for malformed or undecodable replies.
	ErrInvalidResponse = errors.New("invalid response")
	// ErrInvalidRequest is returned when the gateway rejects a request, or
	// when a request cannot be encoded.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrClosed is returned for requests on a closed client.
	ErrClosed = errors.New("client closed")
)
