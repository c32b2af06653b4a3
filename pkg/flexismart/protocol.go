package flexismart

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Frame and command constants of the FlexiSmart gateway protocol.
const (
	HeaderBytes = 0x5446 // "TF"

	// headerLen is Header(2)+MsgID(1)+Command(1)+Len(2).
	headerLen = 6
	crcLen    = 2

	// Commands
	CmdPing                   = 0x01
	CmdGatewayData            = 0x02
	CmdModuleCount            = 0x03
	CmdModuleData             = 0x10
	CmdSetTemperature         = 0x20
	CmdSetBoost               = 0x21
	CmdSetHolidayMode         = 0x22
	CmdDisableHolidayMode     = 0x23
	CmdSetWindowOpenDetection = 0x24
	CmdSetAntiFreeze          = 0x25
	CmdSetDateTime            = 0x26

	// Response status codes, first byte of every response payload.
	StatusOK             = 0x00
	StatusInvalidRequest = 0x01

	// MaxDataLen is the largest payload accepted from the wire. Real
	// responses stay well below this; the limit guards against garbage.
	MaxDataLen = 1024
)

var (
	ErrInvalidHeader   = errors.New("invalid header")
	ErrInvalidChecksum = errors.New("invalid checksum")
	ErrInvalidLength   = errors.New("invalid data length")
	ErrDataLenExceeded = errors.New("data length exceeds maximum")
)

// Packet is a single FlexiSmart protocol frame.
type Packet struct {
	Header  uint16
	MsgID   uint8
	Command uint8
	DataLen uint16
	Data    []byte
	CRC     uint16
}

// NewPacket creates a new packet for the given command.
func NewPacket(msgID uint8, command uint8, data []byte) *Packet {
	return &Packet{
		Header:  HeaderBytes,
		MsgID:   msgID,
		Command: command,
		DataLen: uint16(len(data)),
		Data:    data,
	}
}

// Encode serializes the packet into bytes and fills in its CRC.
func (p *Packet) Encode() []byte {
	buf := make([]byte, headerLen+len(p.Data)+crcLen)

	binary.BigEndian.PutUint16(buf[0:2], p.Header)
	buf[2] = p.MsgID
	buf[3] = p.Command
	binary.BigEndian.PutUint16(buf[4:6], p.DataLen)
	copy(buf[headerLen:], p.Data)

	// CRC covers everything after the header magic.
	p.CRC = Checksum(buf[2 : headerLen+len(p.Data)])
	binary.BigEndian.PutUint16(buf[headerLen+len(p.Data):], p.CRC)

	return buf
}

// Decode parses a datagram into a Packet.
func Decode(data []byte) (*Packet, error) {
	if len(data) < headerLen+crcLen {
		return nil, ErrInvalidLength
	}

	header := binary.BigEndian.Uint16(data[0:2])
	if header != HeaderBytes {
		return nil, ErrInvalidHeader
	}

	msgID := data[2]
	command := data[3]
	dataLen := int(binary.BigEndian.Uint16(data[4:6]))
	if dataLen > MaxDataLen {
		return nil, fmt.Errorf("%w: %d > %d", ErrDataLenExceeded, dataLen, MaxDataLen)
	}
	if len(data) < headerLen+dataLen+crcLen {
		return nil, ErrInvalidLength
	}

	payload := make([]byte, dataLen)
	copy(payload, data[headerLen:headerLen+dataLen])

	crcReceived := binary.BigEndian.Uint16(data[headerLen+dataLen:])
	crcCalculated := Checksum(data[2 : headerLen+dataLen])
	if crcReceived != crcCalculated {
		return nil, fmt.Errorf("%w: expected 0x%04X, got 0x%04X", ErrInvalidChecksum, crcCalculated, crcReceived)
	}

	return &Packet{
		Header:  header,
		MsgID:   msgID,
		Command: command,
		DataLen: uint16(dataLen),
		Data:    payload,
		CRC:     crcReceived,
	}, nil
}

// Checksum calculates the CRC16 Modbus checksum
func Checksum(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if (crc & 0x0001) != 0 {
				crc >>= 1
				crc ^= 0xA001
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}
