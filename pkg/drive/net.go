package drive

import (
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

// NetPredictor runs an exported steering network (ONNX, TensorFlow, ...)
// through OpenCV's DNN module.
type NetPredictor struct {
	net gocv.Net
	mu  sync.Mutex
}

// Ensure NetPredictor implements Predictor
var _ Predictor = (*NetPredictor)(nil)

// LoadNet reads the model at path. The format is inferred from the file
// extension.
func LoadNet(path string) (*NetPredictor, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("drive: model file: %w", err)
	}

	net := gocv.ReadNet(path, "")
	if net.Empty() {
		return nil, fmt.Errorf("drive: failed to load model from %s", path)
	}

	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	return &NetPredictor{net: net}, nil
}

// Predict feeds input as a 1×3×66×100 blob and returns the first output
// value.
func (n *NetPredictor) Predict(input gocv.Mat) (float64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	blob := gocv.BlobFromImage(input, 1.0, image.Pt(InputWidth, InputHeight), gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	n.net.SetInput(blob, "")

	output := n.net.Forward("")
	defer output.Close()

	if output.Empty() {
		return 0, fmt.Errorf("drive: network produced no output")
	}
	data, err := output.DataPtrFloat32()
	if err != nil {
		return 0, fmt.Errorf("drive: read network output: %w", err)
	}
	if len(data) == 0 {
		return 0, fmt.Errorf("drive: network produced no output")
	}
	return float64(data[0]), nil
}

// Close releases the network.
func (n *NetPredictor) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.net.Close()
}
