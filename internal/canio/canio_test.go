package canio

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/go-daq/canbus"
	"github.com/onsi/gomega"
	"go.uber.org/zap/zaptest"
)

type fakeSocket struct {
	sent []canbus.Frame
	err  error
	rx   []canbus.Frame
}

func (f *fakeSocket) Send(frame canbus.Frame) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	data := append([]byte(nil), frame.Data...)
	f.sent = append(f.sent, canbus.Frame{ID: frame.ID, Data: data, Kind: frame.Kind})
	return len(data), nil
}

func (f *fakeSocket) Recv() (canbus.Frame, error) {
	if len(f.rx) == 0 {
		return canbus.Frame{}, io.EOF
	}
	frame := f.rx[0]
	f.rx = f.rx[1:]
	return frame, nil
}

func feedback(id int, angle uint16, rpm, current int16) canbus.Frame {
	data := make([]byte, 8)
	binary.BigEndian.PutUint16(data[0:], angle)
	binary.BigEndian.PutUint16(data[2:], uint16(rpm))
	binary.BigEndian.PutUint16(data[4:], uint16(current))
	return canbus.Frame{ID: uint32(feedbackBase + id), Data: data, Kind: canbus.SFF}
}

func TestNewMotor(t *testing.T) {
	g := gomega.NewWithT(t)

	_, err := NewMotor(0, 1, 1)
	g.Expect(err).To(gomega.HaveOccurred())
	_, err = NewMotor(9, 1, 1)
	g.Expect(err).To(gomega.HaveOccurred())
	_, err = NewMotor(1, -2, 1)
	g.Expect(err).To(gomega.HaveOccurred())
	_, err = NewMotor(1, 1, math.NaN())
	g.Expect(err).To(gomega.HaveOccurred())

	m, err := NewMotor(3, 0, 1000)
	g.Expect(err).NotTo(gomega.HaveOccurred())
	g.Expect(m.ID()).To(gomega.Equal(3))
	g.Expect(m.Online()).To(gomega.BeFalse())
}

func TestMotorFeedback(t *testing.T) {
	g := gomega.NewWithT(t)

	m, _ := NewMotor(1, 2, 1)
	g.Expect(m.update(feedback(1, 2048, 600, -120).Data)).To(gomega.Succeed())

	g.Expect(m.Online()).To(gomega.BeTrue())
	// A quarter rotor turn through a 2:1 gear.
	g.Expect(m.Position()).To(gomega.BeNumerically("~", math.Pi/4, 1e-12))
	// 600 rpm at the rotor is 5 rev/s at the output.
	g.Expect(m.Velocity()).To(gomega.BeNumerically("~", 10*math.Pi, 1e-12))
	g.Expect(m.Current()).To(gomega.Equal(int16(-120)))

	g.Expect(m.update([]byte{1, 2})).To(gomega.HaveOccurred())
	g.Expect(m.update(feedback(1, 9000, 0, 0).Data)).To(gomega.HaveOccurred())
}

func TestMotorMultiTurn(t *testing.T) {
	g := gomega.NewWithT(t)

	m, _ := NewMotor(1, 1, 1)
	steps := []uint16{8000, 100, 4000, 7000, 50}
	for _, a := range steps {
		g.Expect(m.update(feedback(1, a, 0, 0).Data)).To(gomega.Succeed())
	}
	// Wraps forward after 8000 and again after 7000.
	want := (2*EncoderCounts + 50) * 2 * math.Pi / EncoderCounts
	g.Expect(m.Position()).To(gomega.BeNumerically("~", want, 1e-9))

	// Backward across zero.
	g.Expect(m.update(feedback(1, 8150, 0, 0).Data)).To(gomega.Succeed())
	want = (EncoderCounts + 8150) * 2 * math.Pi / EncoderCounts
	g.Expect(m.Position()).To(gomega.BeNumerically("~", want, 1e-9))
}

func TestMotorCommandClamp(t *testing.T) {
	g := gomega.NewWithT(t)

	m, _ := NewMotor(1, 1, 1000)
	m.SetCommand(1.5)
	g.Expect(m.Command()).To(gomega.Equal(int16(1500)))
	m.SetCommand(-100)
	g.Expect(m.Command()).To(gomega.Equal(int16(-MaxCurrent)))
	m.SetCommand(math.Inf(1))
	g.Expect(m.Command()).To(gomega.Equal(int16(MaxCurrent)))
	m.SetCommand(math.NaN())
	g.Expect(m.Command()).To(gomega.BeZero())
}

func TestBusHandle(t *testing.T) {
	g := gomega.NewWithT(t)

	bus := NewBus(&fakeSocket{}, zaptest.NewLogger(t))
	m, _ := NewMotor(6, 1, 1)
	g.Expect(bus.Add(m)).To(gomega.Succeed())
	dup, _ := NewMotor(6, 1, 1)
	g.Expect(bus.Add(dup)).To(gomega.HaveOccurred())

	g.Expect(bus.Handle(feedback(6, 10, 60, 0))).To(gomega.Succeed())
	g.Expect(m.Velocity()).To(gomega.BeNumerically("~", 2*math.Pi, 1e-12))

	err := bus.Handle(feedback(2, 10, 0, 0))
	g.Expect(errors.Is(err, ErrUnknownMotor)).To(gomega.BeTrue())
	err = bus.Handle(canbus.Frame{ID: 0x100, Data: make([]byte, 8)})
	g.Expect(errors.Is(err, ErrUnknownMotor)).To(gomega.BeTrue())
}

func TestBusFlush(t *testing.T) {
	g := gomega.NewWithT(t)

	sock := &fakeSocket{}
	bus := NewBus(sock, nil)
	for _, id := range []int{1, 4, 5} {
		m, _ := NewMotor(id, 1, 1)
		g.Expect(bus.Add(m)).To(gomega.Succeed())
	}
	g.Expect(bus.IDs()).To(gomega.Equal([]int{1, 4, 5}))

	bus.Motor(1).SetCommand(1000)
	bus.Motor(4).SetCommand(-2)
	bus.Motor(5).SetCommand(300)
	g.Expect(bus.Flush()).To(gomega.Succeed())

	g.Expect(sock.sent).To(gomega.HaveLen(2))
	low, high := sock.sent[0], sock.sent[1]
	g.Expect(low.ID).To(gomega.Equal(uint32(0x200)))
	g.Expect(low.Data).To(gomega.Equal([]byte{0x03, 0xE8, 0, 0, 0, 0, 0xFF, 0xFE}))
	g.Expect(high.ID).To(gomega.Equal(uint32(0x1FF)))
	g.Expect(high.Data).To(gomega.Equal([]byte{0x01, 0x2C, 0, 0, 0, 0, 0, 0}))

	sock.sent = nil
	g.Expect(bus.Halt()).To(gomega.Succeed())
	g.Expect(sock.sent[0].Data).To(gomega.Equal(make([]byte, 8)))
	g.Expect(sock.sent[1].Data).To(gomega.Equal(make([]byte, 8)))
}

func TestBusFlushOnlyUsedFrames(t *testing.T) {
	g := gomega.NewWithT(t)

	sock := &fakeSocket{}
	bus := NewBus(sock, nil)
	m, _ := NewMotor(7, 1, 1)
	g.Expect(bus.Add(m)).To(gomega.Succeed())
	g.Expect(bus.Flush()).To(gomega.Succeed())
	g.Expect(sock.sent).To(gomega.HaveLen(1))
	g.Expect(sock.sent[0].ID).To(gomega.Equal(uint32(0x1FF)))
}

func TestBusFlushErrors(t *testing.T) {
	g := gomega.NewWithT(t)

	boom := errors.New("bus off")
	bus := NewBus(&fakeSocket{err: boom}, nil)
	for _, id := range []int{1, 8} {
		m, _ := NewMotor(id, 1, 1)
		g.Expect(bus.Add(m)).To(gomega.Succeed())
	}
	err := bus.Flush()
	g.Expect(errors.Is(err, boom)).To(gomega.BeTrue())
	g.Expect(err.Error()).To(gomega.ContainSubstring("0x200"))
	g.Expect(err.Error()).To(gomega.ContainSubstring("0x1FF"))
}

func TestListen(t *testing.T) {
	g := gomega.NewWithT(t)

	sock := &fakeSocket{rx: []canbus.Frame{
		feedback(1, 100, 0, 0),
		feedback(3, 100, 0, 0),
		feedback(1, 200, 0, 0),
	}}
	bus := NewBus(sock, zaptest.NewLogger(t))
	m, _ := NewMotor(1, 1, 1)
	g.Expect(bus.Add(m)).To(gomega.Succeed())

	err := bus.Listen(context.Background(), sock)
	g.Expect(errors.Is(err, io.EOF)).To(gomega.BeTrue())
	g.Expect(m.Position()).To(gomega.BeNumerically("~", 200*2*math.Pi/EncoderCounts, 1e-12))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g.Expect(bus.Listen(ctx, sock)).To(gomega.MatchError(context.Canceled))
}
