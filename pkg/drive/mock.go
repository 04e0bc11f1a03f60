package drive

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockPredictor implements Predictor for testing.
type MockPredictor struct {
	// PredictFunc is called when Predict is invoked.
	PredictFunc func(input gocv.Mat) (float64, error)

	mu     sync.Mutex
	inputs []MockInput
}

// MockInput records the shape of a Predict argument.
type MockInput struct {
	Rows, Cols, Channels int
	Type                 gocv.MatType
}

// Predict records the input shape and calls PredictFunc. Without a
// PredictFunc it steers straight.
func (m *MockPredictor) Predict(input gocv.Mat) (float64, error) {
	m.mu.Lock()
	m.inputs = append(m.inputs, MockInput{
		Rows:     input.Rows(),
		Cols:     input.Cols(),
		Channels: input.Channels(),
		Type:     input.Type(),
	})
	m.mu.Unlock()

	if m.PredictFunc != nil {
		return m.PredictFunc(input)
	}
	return SteerStraight, nil
}

// Inputs returns the recorded input shapes.
func (m *MockPredictor) Inputs() []MockInput {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockInput, len(m.inputs))
	copy(out, m.inputs)
	return out
}

// MockDeriver implements Deriver for testing.
type MockDeriver struct {
	// DeriveFunc is called when Derive is invoked.
	DeriveFunc func(in Input) Command

	mu    sync.Mutex
	calls int
}

// Derive calls DeriveFunc, or returns Stop.
func (m *MockDeriver) Derive(in Input) Command {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.DeriveFunc != nil {
		return m.DeriveFunc(in)
	}
	return Stop()
}

// Name identifies the mock.
func (m *MockDeriver) Name() string { return "mock" }

// Calls returns how many times Derive ran.
func (m *MockDeriver) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
