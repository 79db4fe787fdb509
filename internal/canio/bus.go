package canio

import (
	"context"
	"encoding/binary"
	"sort"
	"sync"

	"github.com/go-daq/canbus"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var ErrUnknownMotor = errors.New("canio: frame from unknown motor")

// Sender is the transmit side of a CAN socket.
type Sender interface {
	Send(frame canbus.Frame) (int, error)
}

// Receiver is the receive side of a CAN socket.
type Receiver interface {
	Recv() (canbus.Frame, error)
}

// Bus owns the motors on one CAN interface.
type Bus struct {
	tx     Sender
	logger *zap.Logger

	mu     sync.RWMutex
	motors map[int]*Motor
}

func NewBus(tx Sender, logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{tx: tx, logger: logger, motors: make(map[int]*Motor)}
}

func (b *Bus) Add(m *Motor) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.motors[m.id]; ok {
		return errors.Errorf("canio: motor %d already on the bus", m.id)
	}
	b.motors[m.id] = m
	return nil
}

func (b *Bus) Motor(id int) *Motor {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.motors[id]
}

// Handle routes one received frame to its motor. Frames for ids that were
// never added return ErrUnknownMotor.
func (b *Bus) Handle(frame canbus.Frame) error {
	id := int(frame.ID) - feedbackBase
	if id < 1 || id > MaxMotors {
		return errors.Wrapf(ErrUnknownMotor, "id 0x%X", frame.ID)
	}
	m := b.Motor(id)
	if m == nil {
		return errors.Wrapf(ErrUnknownMotor, "id 0x%X", frame.ID)
	}
	return m.update(frame.Data)
}

// Flush sends the pending commands of every motor. Only the command frames
// that have at least one motor are sent.
func (b *Bus) Flush() error {
	var low, high [8]byte
	var hasLow, hasHigh bool

	b.mu.RLock()
	for id, m := range b.motors {
		slot := (id - 1) % 4
		cmd := uint16(m.Command())
		if id <= 4 {
			binary.BigEndian.PutUint16(low[2*slot:], cmd)
			hasLow = true
		} else {
			binary.BigEndian.PutUint16(high[2*slot:], cmd)
			hasHigh = true
		}
	}
	b.mu.RUnlock()

	var errs error
	if hasLow {
		errs = multierr.Append(errs, b.send(commandLow, low))
	}
	if hasHigh {
		errs = multierr.Append(errs, b.send(commandHigh, high))
	}
	return errs
}

func (b *Bus) send(id uint32, data [8]byte) error {
	frame := canbus.Frame{
		ID:   id,
		Data: data[:],
		Kind: canbus.SFF,
	}
	if _, err := b.tx.Send(frame); err != nil {
		return errors.Wrapf(err, "send 0x%X", id)
	}
	return nil
}

// Halt zeroes every command and flushes.
func (b *Bus) Halt() error {
	b.mu.RLock()
	for _, m := range b.motors {
		m.SetCommand(0)
	}
	b.mu.RUnlock()
	return b.Flush()
}

// IDs returns the ids on the bus in ascending order.
func (b *Bus) IDs() []int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := make([]int, 0, len(b.motors))
	for id := range b.motors {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Listen feeds received frames to Handle until ctx is done or rx fails.
// Recv blocks, so the caller unblocks it by closing the socket after
// cancelling ctx. Bad frames are logged and skipped.
func (b *Bus) Listen(ctx context.Context, rx Receiver) error {
	for {
		frame, err := rx.Recv()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			return errors.Wrap(err, "receive")
		}
		if err := b.Handle(frame); err != nil {
			b.logger.Debug("dropped frame", zap.Uint32("id", frame.ID), zap.Error(err))
		}
	}
}

// Open returns a socket bound to the named interface, e.g. "can0".
func Open(iface string) (*canbus.Socket, error) {
	sock, err := canbus.New()
	if err != nil {
		return nil, errors.Wrap(err, "open can socket")
	}
	if err := sock.Bind(iface); err != nil {
		sock.Close()
		return nil, errors.Wrapf(err, "bind %s", iface)
	}
	return sock, nil
}
