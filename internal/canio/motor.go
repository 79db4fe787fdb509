// Package canio drives RoboMaster style motors over a CAN bus.
//
// Every motor reports on its own feedback frame (0x200 + id): a 13-bit rotor
// angle, the rotor speed in rpm and the measured current, all big-endian.
// Commands for up to four motors share one frame: ids 1 to 4 go out on
// 0x200 and ids 5 to 8 on 0x1FF, two big-endian int16 bytes per motor.
package canio

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/pkg/errors"
)

const (
	MaxMotors = 8

	// EncoderCounts is the resolution of the rotor angle.
	EncoderCounts = 8192
	// MaxCurrent bounds the raw command value.
	MaxCurrent = 16384

	feedbackBase = 0x200
	commandLow   = 0x200
	commandHigh  = 0x1FF
)

// Motor is one motor on the bus. It implements swerve.Actuator: Position
// and Velocity are reported at the output shaft, after the gear, and the
// effort given to SetCommand is multiplied by the effort scale into raw
// current units.
type Motor struct {
	id          int
	gear        float64
	effortScale float64

	mu      sync.Mutex
	seen    bool
	lastRaw int
	turns   int64
	rpm     int16
	current int16
	command int16
}

// NewMotor returns the motor with bus id 1..8. gear is rotor turns per output
// turn; gear 0 means direct drive.
func NewMotor(id int, gear, effortScale float64) (*Motor, error) {
	if id < 1 || id > MaxMotors {
		return nil, errors.Errorf("canio: motor id must be in 1..%d, got %d", MaxMotors, id)
	}
	if gear == 0 {
		gear = 1
	}
	if !(gear > 0) || math.IsInf(gear, 0) || effortScale < 0 || math.IsNaN(effortScale) || math.IsInf(effortScale, 0) {
		return nil, errors.Errorf("canio: motor %d: invalid gear %v or effort scale %v", id, gear, effortScale)
	}
	return &Motor{id: id, gear: gear, effortScale: effortScale}, nil
}

func (m *Motor) ID() int { return m.id }

// Position is the continuous output angle in radians, counted from the
// first feedback frame's rotor angle of zero.
func (m *Motor) Position() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := float64(m.turns)*EncoderCounts + float64(m.lastRaw)
	return counts / EncoderCounts * 2 * math.Pi / m.gear
}

// Velocity is the output rate in rad/s.
func (m *Motor) Velocity() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return float64(m.rpm) * 2 * math.Pi / 60 / m.gear
}

// Current is the last reported current in raw units.
func (m *Motor) Current() int16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Online reports whether any feedback has arrived.
func (m *Motor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seen
}

func (m *Motor) SetCommand(effort float64) {
	raw := effort * m.effortScale
	switch {
	case math.IsNaN(raw):
		raw = 0
	case raw > MaxCurrent:
		raw = MaxCurrent
	case raw < -MaxCurrent:
		raw = -MaxCurrent
	}
	m.mu.Lock()
	m.command = int16(math.Round(raw))
	m.mu.Unlock()
}

// Command returns the raw value the next flush will send.
func (m *Motor) Command() int16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.command
}

// update decodes one feedback payload. A rotor step of more than half a
// turn between frames is taken as a wrap.
func (m *Motor) update(data []byte) error {
	if len(data) < 6 {
		return errors.Errorf("canio: motor %d: short feedback frame (%d bytes)", m.id, len(data))
	}
	raw := int(binary.BigEndian.Uint16(data[0:2]))
	if raw >= EncoderCounts {
		return errors.Errorf("canio: motor %d: rotor angle %d out of range", m.id, raw)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen {
		switch delta := raw - m.lastRaw; {
		case delta > EncoderCounts/2:
			m.turns--
		case delta < -EncoderCounts/2:
			m.turns++
		}
	}
	m.seen = true
	m.lastRaw = raw
	m.rpm = int16(binary.BigEndian.Uint16(data[2:4]))
	m.current = int16(binary.BigEndian.Uint16(data[4:6]))
	return nil
}
