package comm

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sigurn/crc16"
)

// Frame constants.
const (
	// PacketSize is the fixed size of a frame on the wire.
	PacketSize = 22

	STX   byte   = 0x02
	ETX   byte   = 0x03
	Magic uint16 = 31256

	// PinCount is the number of addressable pins on the node, 0..52.
	PinCount = 53
)

// Frame field offsets.
const (
	offMagic    = 1
	offID       = 3
	offClientID = 7
	offOpCode   = 11
	offPin      = 13
	offPinMode  = 14
	offData     = 15
	offETX      = 19
	offCRC      = 20
)

// OpCode defines the requested operation.
type OpCode uint16

// Operation codes, stable wire values.
const (
	OpGetTemperature OpCode = 1000
	OpInputPin       OpCode = 1001
	OpReadDigitPin   OpCode = 1002
	OpInputAnalogPin OpCode = 1003
	OpReadAnalogPin  OpCode = 1004
)

var opCodeNames = map[OpCode]string{
	OpGetTemperature: "GET_TEMPERATURE",
	OpInputPin:       "INPUT_PIN",
	OpReadDigitPin:   "READ_DIGIT_PIN",
	OpInputAnalogPin: "INPUT_ANALOG_PIN",
	OpReadAnalogPin:  "READ_ANALOG_PIN",
}

// IsValid checks if it's one of the defined operation codes.
func (c OpCode) IsValid() bool {
	_, ok := opCodeNames[c]
	return ok
}

func (c OpCode) String() string {
	if name, ok := opCodeNames[c]; ok {
		return name
	}
	return "OP(" + strconv.Itoa(int(c)) + ")"
}

// ParseOpCode parses a name like GET_TEMPERATURE or a numeric code.
func ParseOpCode(s string) (OpCode, error) {
	name := strings.ToUpper(strings.Replace(s, "-", "_", -1))
	for code, n := range opCodeNames {
		if n == name {
			return code, nil
		}
	}
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil || !OpCode(n).IsValid() {
		return 0, fmt.Errorf("unknown op code %q", s)
	}
	return OpCode(n), nil
}

// PacketID defines the type of packet id.
type PacketID uint32

// NewPacketID creates a random packet id.
func NewPacketID() PacketID {
	return PacketID(uint32(time.Now().UnixNano())).Next()
}

// Next calculates the next id. 0 is skipped as it's reserved
// for cleared packets.
func (id PacketID) Next() PacketID {
	n := uint32(id) + 1
	if n == 0 {
		n = 1
	}
	return PacketID(n)
}

var crcTable = crc16.MakeTable(crc16.CRC16_CCITT_FALSE)

// ComputeCRC calculates the integrity value over frame content.
func ComputeCRC(content []byte) uint16 {
	return crc16.Checksum(content, crcTable)
}

// Packet is a single frame.
// The zero value is the cleared packet which means "no packet".
type Packet struct {
	ID       uint32
	ClientID uint32
	OpCode   OpCode
	Pin      uint8
	PinMode  uint8
	Data     uint32

	// CRC is the integrity value carried by a received frame.
	// It's not used for sending, Serialize always computes a fresh one.
	CRC uint16
}

// Clear resets all fields.
func (p *Packet) Clear() {
	*p = Packet{}
}

// IsCleared indicates the packet is in cleared state.
func (p *Packet) IsCleared() bool {
	return *p == Packet{}
}

// Float interprets Data as float32 bits.
func (p *Packet) Float() float32 {
	return math.Float32frombits(p.Data)
}

// SetFloat stores a float32 in Data.
func (p *Packet) SetFloat(v float32) {
	p.Data = math.Float32bits(v)
}

// Serialize encodes the packet into buf which must hold at least PacketSize
// bytes, and returns the number of bytes written.
func (p *Packet) Serialize(buf []byte) int {
	b := buf[:PacketSize]
	p.encodeContent(b)
	binary.LittleEndian.PutUint16(b[offCRC:], ComputeCRC(b[:offCRC]))
	return PacketSize
}

// Bytes returns encoded bytes for sending.
func (p *Packet) Bytes() []byte {
	b := make([]byte, PacketSize)
	p.Serialize(b)
	return b
}

// WriteTo writes encoded bytes in a single Write.
func (p *Packet) WriteTo(w io.Writer) (int64, error) {
	var b [PacketSize]byte
	p.Serialize(b[:])
	n, err := w.Write(b[:])
	return int64(n), err
}

// Deserialize decodes a frame. The caller is responsible for checking the
// start marker, and the CRC is only copied, not checked.
func (p *Packet) Deserialize(buf []byte) error {
	if len(buf) < PacketSize {
		return ErrShortFrame
	}
	p.ID = binary.LittleEndian.Uint32(buf[offID:])
	p.ClientID = binary.LittleEndian.Uint32(buf[offClientID:])
	p.OpCode = OpCode(binary.LittleEndian.Uint16(buf[offOpCode:]))
	p.Pin = buf[offPin]
	p.PinMode = buf[offPinMode]
	p.Data = binary.LittleEndian.Uint32(buf[offData:])
	p.CRC = binary.LittleEndian.Uint16(buf[offCRC:])
	return nil
}

// ValidateCRC recomputes the CRC from current fields and
// compares with the embedded one.
func (p *Packet) ValidateCRC() bool {
	return p.contentCRC() == p.CRC
}

func (p *Packet) contentCRC() uint16 {
	var b [offCRC]byte
	p.encodeContent(b[:])
	return ComputeCRC(b[:])
}

func (p *Packet) encodeContent(b []byte) {
	b[0] = STX
	binary.LittleEndian.PutUint16(b[offMagic:], Magic)
	binary.LittleEndian.PutUint32(b[offID:], p.ID)
	binary.LittleEndian.PutUint32(b[offClientID:], p.ClientID)
	binary.LittleEndian.PutUint16(b[offOpCode:], uint16(p.OpCode))
	b[offPin] = p.Pin
	b[offPinMode] = p.PinMode
	binary.LittleEndian.PutUint32(b[offData:], p.Data)
	b[offETX] = ETX
}
