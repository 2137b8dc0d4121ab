// Package fakesocket provides net.PacketConn implementations that produce collectd datagrams, for tests and
// benchmarks.
package fakesocket

import (
	"encoding/binary"
	"errors"
	"math"
	"math/rand"
	"net"
	"time"
)

// FakeAddr is a fake net.Addr
var FakeAddr = &net.UDPAddr{
	IP:   net.IPv4(127, 0, 0, 1),
	Port: 8181,
}

var ErrClosedConnection = errors.New("Connection is closed")
var ErrAlreadyClosedConnection = errors.New("Connection is already closed")

// FakeDatagram is a collectd datagram with one gauge, named fake.fake.gauge, with the value 1.
var FakeDatagram = buildDatagram("fake", "fake", "gauge", 1, 1, math.Float64bits(1))

// FakeDatagramSampleName is the name of the sample in FakeDatagram.
const FakeDatagramSampleName = "fake.fake.gauge"

func appendString(b []byte, code uint16, s string) []byte {
	b = appendHeader(b, code, 4+len(s)+1)
	b = append(b, s...)
	return append(b, 0)
}

func appendHeader(b []byte, code uint16, length int) []byte {
	var hdr [4]byte
	binary.BigEndian.PutUint16(hdr[0:], code)
	binary.BigEndian.PutUint16(hdr[2:], uint16(length))
	return append(b, hdr[:]...)
}

// buildDatagram builds a datagram with a single value.  Gauge doubles are little endian, like collectd sends.
func buildDatagram(host, plugin, typ string, ts uint64, valueType byte, bits uint64) []byte {
	var b []byte
	var scratch [8]byte
	b = appendString(b, 0x0000, host)
	b = appendHeader(b, 0x0001, 12)
	binary.BigEndian.PutUint64(scratch[:], ts)
	b = append(b, scratch[:]...)
	b = appendString(b, 0x0002, plugin)
	b = appendString(b, 0x0004, typ)
	b = appendHeader(b, 0x0006, 4+2+1+8)
	b = append(b, 0, 1, valueType)
	if valueType == 1 {
		binary.LittleEndian.PutUint64(scratch[:], bits)
	} else {
		binary.BigEndian.PutUint64(scratch[:], bits)
	}
	return append(b, scratch[:]...)
}

// FakePacketConn is a fake net.PacketConn providing FakeDatagram when read from.
type FakePacketConn struct {
	closed chan int
}

func (fpc *FakePacketConn) isClosed() bool {
	select {
	case <-fpc.closed:
		return true
	default:
		return false
	}
}

// ReadFrom copies FakeDatagram into b.
func (fpc *FakePacketConn) ReadFrom(b []byte) (int, net.Addr, error) {
	if fpc.isClosed() {
		return 0, nil, ErrClosedConnection
	}
	n := copy(b, FakeDatagram)
	return n, FakeAddr, nil
}

// WriteTo dummy impl.
func (fpc *FakePacketConn) WriteTo(b []byte, addr net.Addr) (int, error) {
	if fpc.isClosed() {
		return 0, ErrClosedConnection
	}
	return 0, nil
}

// Close dummy impl.
func (fpc *FakePacketConn) Close() error {
	if fpc.isClosed() {
		return ErrAlreadyClosedConnection
	}
	// Potential race, but it's a test fixture anyway
	close(fpc.closed)
	return nil
}

// LocalAddr dummy impl.
func (fpc *FakePacketConn) LocalAddr() net.Addr { return FakeAddr }

// SetDeadline dummy impl.
func (fpc *FakePacketConn) SetDeadline(t time.Time) error { return nil }

// SetReadDeadline dummy impl.
func (fpc *FakePacketConn) SetReadDeadline(t time.Time) error { return nil }

// SetWriteDeadline dummy impl.
func (fpc *FakePacketConn) SetWriteDeadline(t time.Time) error { return nil }

// FakeRandomPacketConn is a fake net.PacketConn providing datagrams for random series of the
// built in gauge, derive, counter and absolute types.
type FakeRandomPacketConn struct {
	FakePacketConn
}

// ReadFrom generates a random datagram and writes it into b.
func (frpc *FakeRandomPacketConn) ReadFrom(b []byte) (int, net.Addr, error) {
	if frpc.isClosed() {
		return 0, nil, ErrClosedConnection
	}

	host := "tester"
	plugin := "plugin_" + string(rune('a'+rand.Intn(26))) // #nosec
	ts := uint64(time.Now().Unix())
	var dg []byte
	switch rand.Int31n(4) { // #nosec
	case 0:
		dg = buildDatagram(host, plugin, "gauge", ts, 1, math.Float64bits(rand.Float64()*100)) // #nosec
	case 1:
		dg = buildDatagram(host, plugin, "derive", ts, 2, uint64(rand.Int63n(1<<40))) // #nosec
	case 2:
		dg = buildDatagram(host, plugin, "counter", ts, 0, uint64(rand.Int63())) // #nosec
	case 3:
		dg = buildDatagram(host, plugin, "absolute", ts, 3, uint64(rand.Int63n(1000))) // #nosec
	default:
		panic(errors.New("unreachable"))
	}
	n := copy(b, dg)
	return n, FakeAddr, nil
}

// Factory is a replacement for net.ListenPacket() that produces instances of FakeRandomPacketConn.
func Factory() (net.PacketConn, error) {
	frpc := &FakeRandomPacketConn{
		FakePacketConn: FakePacketConn{
			closed: make(chan int),
		},
	}
	return frpc, nil
}

// NewFakePacketConn returns a FakePacketConn.
func NewFakePacketConn() net.PacketConn {
	return &FakePacketConn{
		closed: make(chan int),
	}
}

// CountingPacketConn is a FakePacketConn which returns FakeDatagram a fixed number of times, then blocks
// until closed.
type CountingPacketConn struct {
	FakePacketConn
	remaining chan struct{}
}

// NewCountingPacketConn returns a CountingPacketConn producing n datagrams.
func NewCountingPacketConn(n int) *CountingPacketConn {
	remaining := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		remaining <- struct{}{}
	}
	return &CountingPacketConn{
		FakePacketConn: FakePacketConn{
			closed: make(chan int),
		},
		remaining: remaining,
	}
}

// ReadFrom copies FakeDatagram into b while datagrams remain.
func (cpc *CountingPacketConn) ReadFrom(b []byte) (int, net.Addr, error) {
	select {
	case <-cpc.remaining:
		return cpc.FakePacketConn.ReadFrom(b)
	case <-cpc.closed:
		return 0, nil, ErrClosedConnection
	}
}
