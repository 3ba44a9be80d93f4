package classify

import (
	"context"
	"image"
	"os"
	"sync"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/liptakmatyas/opencv-playground/landmarkcam/internal/frame"
	"github.com/liptakmatyas/opencv-playground/landmarkcam/internal/logging"
)

var ClassificationError = errors.New("classification failed")

type Parameters struct {
	ModelFile  string
	ConfigFile string
	LabelsFile string

	// InputSize is the side of the square the model expects.
	InputSize int
	Threshold float32
	MaxResults int
}

func NewParameters(modelFile, labelsFile string) *Parameters {
	return &Parameters{
		ModelFile:  modelFile,
		LabelsFile: labelsFile,
		InputSize:  321,
		Threshold:  0.5,
		MaxResults: 1,
	}
}

// Net wraps an OpenCV DNN classification model. Inference is serialised; a gocv.Net must not be
// used from several goroutines at once.
type Net struct {
	p     *Parameters
	names []string

	mu  sync.Mutex
	net gocv.Net
}

func Open(p *Parameters) (*Net, error) {
	logger := logging.For("classify").WithField("model", p.ModelFile)

	f, err := os.Open(p.LabelsFile)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open labels file '%s'", p.LabelsFile)
	}
	defer f.Close()

	names, err := ReadLabels(f)
	if err != nil {
		return nil, err
	}

	net := gocv.ReadNet(p.ModelFile, p.ConfigFile)
	if net.Empty() {
		return nil, errors.Errorf("failed to load model '%s'", p.ModelFile)
	}

	logger.Infof("Loaded model with %d labels", len(names))
	return &Net{p: p, names: names, net: net}, nil
}

// Classify runs the model on img. The image is resized to the model input; it is not modified.
func (n *Net) Classify(ctx context.Context, img *frame.SquareImage) ([]Label, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	size := image.Pt(n.p.InputSize, n.p.InputSize)
	blob := gocv.BlobFromImage(img.Mat(), 1.0/255.0, size, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	n.mu.Lock()
	n.net.SetInput(blob, "")
	prob := n.net.Forward("")
	n.mu.Unlock()
	defer prob.Close()

	if prob.Empty() {
		return nil, errors.Wrap(ClassificationError, "model produced no output")
	}

	scores, err := prob.DataPtrFloat32()
	if err != nil {
		return nil, errors.Wrapf(ClassificationError, "unexpected output: %v", err)
	}

	// scores aliases prob, which is closed on return.
	return TopLabels(scores, n.names, n.p.Threshold, n.p.MaxResults), nil
}

func (n *Net) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.net.Close()
}
