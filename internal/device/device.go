// Package device provides a control-plane handle to the FPGA board: a
// small set of mutex-guarded read/write operations for requant gain
// control, temperature and overflow telemetry, and ADC RMS readback, per
// spec §5-6.
package device

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Device is the control-plane handle shared read-mostly between the
// orchestrator (setup, calibration) and the Monitor thread (telemetry
// polling). Its internal transport guards writes with a mutex, per spec
// §5: "no two components write to the Device concurrently."
type Device interface {
	// SetRequantGain sets the per-channel post-FFT scaling applied before
	// quantization to the 8-bit complex wire format. len(gains) must equal
	// payload.Channels.
	SetRequantGain(gains []float64) error
	// ReadTemperature returns the FPGA die temperature in degrees Celsius.
	ReadTemperature() (float64, error)
	// ReadFFTOverflowCount returns the cumulative FFT bit-growth overflow
	// count since board programming.
	ReadFFTOverflowCount() (uint64, error)
	// ReadRequantOverflow returns the cumulative post-requant saturation
	// count for each polarization.
	ReadRequantOverflow() (polA, polB uint64, err error)
	// ReadADCRMS returns the RMS ADC code for each polarization, used to
	// verify healthy input power levels.
	ReadADCRMS() (polA, polB float64, err error)
	// Close releases the underlying transport.
	Close() error
}

// tcpDevice implements Device over a simple line-oriented text register
// protocol to the board's control port: a read sends "R <name>\n" and
// scans one value line back; a vector write sends a single
// "W <name> v0,v1,...\n" line and reads no reply. The wire protocol itself is out
// of scope for this pipeline's spec; tcpDevice exists so the pipeline has
// a real implementation to run against real hardware, grounded in the
// same request/response register-read idiom the teacher uses for its own
// hardware control paths (radio CAT control over a serial/TCP handle).
type tcpDevice struct {
	mu   sync.Mutex
	conn net.Conn
	log  *log.Logger
}

// Dial connects to the FPGA's control-plane TCP endpoint at addr.
func Dial(addr string) (Device, error) {
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("device: dial %s: %w", addr, err)
	}
	return &tcpDevice{conn: conn, log: log.With("component", "device")}, nil
}

func (d *tcpDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conn.Close()
}

func (d *tcpDevice) SetRequantGain(gains []float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writeVectorRegister("requant_gain", gains)
}

func (d *tcpDevice) ReadTemperature() (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.readFloatRegister("fpga_temp")
}

func (d *tcpDevice) ReadFFTOverflowCount() (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.readUintRegister("fft_of_count")
}

func (d *tcpDevice) ReadRequantOverflow() (polA, polB uint64, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, err := d.readUintRegister("requant_of_a")
	if err != nil {
		return 0, 0, err
	}
	b, err := d.readUintRegister("requant_of_b")
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

func (d *tcpDevice) ReadADCRMS() (polA, polB float64, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, err := d.readFloatRegister("adc_rms_a")
	if err != nil {
		return 0, 0, err
	}
	b, err := d.readFloatRegister("adc_rms_b")
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

// writeVectorRegister, readFloatRegister and readUintRegister are
// placeholders for the board's actual register protocol; callers must
// hold d.mu.

// writeVectorRegister writes a per-channel register as a single
// comma-separated line of values, matching the board's bulk-load path for
// tables too large to set one register at a time.
func (d *tcpDevice) writeVectorRegister(name string, values []float64) error {
	if _, err := fmt.Fprintf(d.conn, "W %s ", name); err != nil {
		return fmt.Errorf("device: write register %s: %w", name, err)
	}
	for i, v := range values {
		sep := ","
		if i == len(values)-1 {
			sep = "\n"
		}
		if _, err := fmt.Fprintf(d.conn, "%f%s", v, sep); err != nil {
			return fmt.Errorf("device: write register %s: %w", name, err)
		}
	}
	return nil
}

func (d *tcpDevice) readFloatRegister(name string) (float64, error) {
	if _, err := fmt.Fprintf(d.conn, "R %s\n", name); err != nil {
		return 0, fmt.Errorf("device: request register %s: %w", name, err)
	}
	var v float64
	if _, err := fmt.Fscanf(d.conn, "%f\n", &v); err != nil {
		return 0, fmt.Errorf("device: read register %s: %w", name, err)
	}
	return v, nil
}

func (d *tcpDevice) readUintRegister(name string) (uint64, error) {
	if _, err := fmt.Fprintf(d.conn, "R %s\n", name); err != nil {
		return 0, fmt.Errorf("device: request register %s: %w", name, err)
	}
	var v uint64
	if _, err := fmt.Fscanf(d.conn, "%d\n", &v); err != nil {
		return 0, fmt.Errorf("device: read register %s: %w", name, err)
	}
	return v, nil
}
