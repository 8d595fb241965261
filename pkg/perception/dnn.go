package perception

import (
	"fmt"
	"image"
	"math"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/EngrAlegre/ALGAE-ML/pkg/world"
)

// Model input geometry. The classifier is a two-class CNN exported to
// ONNX from the training pipeline; it expects 224x224 RGB normalized to
// [0,1] and outputs [no_target, target] scores.
const (
	inputSize   = 224
	classTarget = 1
)

// DNNClassifier runs the algae classifier with OpenCV's DNN module.
type DNNClassifier struct {
	net       gocv.Net
	threshold float64
	mu        sync.Mutex // protects inference, Net is not goroutine-safe
}

// NewDNN loads the ONNX classifier at modelPath. threshold is the minimum
// target-class score for IsTarget; the arbitration policy applies its own
// threshold on top, mirroring the collaborator contract.
func NewDNN(modelPath string, threshold float64) (*DNNClassifier, error) {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("perception: model file not found: %s", modelPath)
	}

	net := gocv.ReadNetFromONNX(modelPath)
	if net.Empty() {
		return nil, fmt.Errorf("perception: failed to load model: %s", modelPath)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	return &DNNClassifier{net: net, threshold: threshold}, nil
}

// Classify implements Classifier.
func (c *DNNClassifier) Classify(jpeg []byte) (world.Detection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	img, err := gocv.IMDecode(jpeg, gocv.IMReadColor)
	if err != nil {
		return world.Detection{}, fmt.Errorf("perception: decode frame: %w", err)
	}
	defer img.Close()

	if img.Empty() {
		return world.Detection{}, fmt.Errorf("perception: empty frame")
	}

	// BGR->RGB swap and [0,1] scaling match the training preprocessing.
	blob := gocv.BlobFromImage(img, 1.0/255.0,
		image.Pt(inputSize, inputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	c.net.SetInput(blob, "")
	out := c.net.Forward("")
	defer out.Close()

	scores := normalize(matRow(out))
	if len(scores) == 0 {
		return world.Detection{}, fmt.Errorf("perception: empty model output")
	}

	conf := scores[0]
	if len(scores) > classTarget {
		conf = scores[classTarget]
	}
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}

	return world.Detection{
		IsTarget:   conf > c.threshold,
		Confidence: conf,
	}, nil
}

// Close releases the network.
func (c *DNNClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.net.Close()
}

// matRow extracts the first row of a 2D result Mat as float64s.
func matRow(m gocv.Mat) []float64 {
	cols := m.Cols()
	if cols <= 0 {
		if m.Total() > 0 {
			cols = m.Total()
		} else {
			return nil
		}
	}
	row := make([]float64, cols)
	for i := 0; i < cols; i++ {
		row[i] = float64(m.GetFloatAt(0, i))
	}
	return row
}

// normalize turns model output into class probabilities. Exports from the
// training pipeline usually end in softmax already; raw-logit exports are
// detected by values outside [0,1] and softmaxed here.
func normalize(scores []float64) []float64 {
	logits := false
	for _, s := range scores {
		if s < 0 || s > 1 {
			logits = true
			break
		}
	}
	if !logits {
		return scores
	}

	maxv := scores[0]
	for _, s := range scores[1:] {
		if s > maxv {
			maxv = s
		}
	}
	var sum float64
	out := make([]float64, len(scores))
	for i, s := range scores {
		out[i] = math.Exp(s - maxv)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
