package device

import "sync"

// FakeDevice is an in-memory Device used for tests, for development
// without hardware, and as the board-skip fallback.
type FakeDevice struct {
	mu sync.Mutex

	Gain               []float64
	Temperature        float64
	FFTOverflowCount   uint64
	RequantOverflowA   uint64
	RequantOverflowB   uint64
	ADCRMSA, ADCRMSB   float64
	Closed             bool
}

// NewFake returns a FakeDevice with plausible healthy-board defaults.
func NewFake() *FakeDevice {
	return &FakeDevice{
		Temperature: 42.0,
		ADCRMSA:     20.0,
		ADCRMSB:     20.0,
	}
}

func (f *FakeDevice) SetRequantGain(gains []float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Gain = gains
	return nil
}

func (f *FakeDevice) ReadTemperature() (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Temperature, nil
}

func (f *FakeDevice) ReadFFTOverflowCount() (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.FFTOverflowCount, nil
}

func (f *FakeDevice) ReadRequantOverflow() (polA, polB uint64, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.RequantOverflowA, f.RequantOverflowB, nil
}

func (f *FakeDevice) ReadADCRMS() (polA, polB float64, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ADCRMSA, f.ADCRMSB, nil
}

func (f *FakeDevice) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}
