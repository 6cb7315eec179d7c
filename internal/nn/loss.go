package nn

import (
	"fmt"
	"math"

	"github.com/born-ml/trainer/internal/tensor"
)

// LossOutput is the result of a loss evaluation over one batch.
type LossOutput struct {
	Loss    float64           // Mean loss over the batch
	Grad    *tensor.RawTensor // d(Loss)/d(logits), same shape as the logits
	Correct int               // Samples whose argmax matches the target
}

// Loss maps logits and integer targets to a scalar loss and its gradient.
type Loss interface {
	Forward(logits *tensor.RawTensor, targets []int32) LossOutput
}

// CrossEntropyLoss is softmax followed by negative log-likelihood, computed
// with the log-sum-exp shift for stability.
type CrossEntropyLoss struct{}

// NewCrossEntropyLoss creates a new cross-entropy loss.
func NewCrossEntropyLoss() *CrossEntropyLoss {
	return &CrossEntropyLoss{}
}

// Forward computes mean cross-entropy over the batch.
func (c *CrossEntropyLoss) Forward(logits *tensor.RawTensor, targets []int32) LossOutput {
	shape := logits.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("CrossEntropyLoss: expected 2D logits, got shape %v", shape))
	}
	batch, classes := shape[0], shape[1]
	if len(targets) != batch {
		panic(fmt.Sprintf("CrossEntropyLoss: %d targets for batch of %d", len(targets), batch))
	}

	grad := tensor.MustRaw(tensor.Shape{batch, classes}, tensor.Float32)
	var total float64
	correct := 0
	scale := 1.0 / float64(batch)

	for r := range batch {
		row := logits.Row(r)
		target := int(targets[r])
		if target < 0 || target >= classes {
			panic(fmt.Sprintf("CrossEntropyLoss: target %d out of range [0, %d)", target, classes))
		}

		maxLogit := row[0]
		argmax := 0
		for j, v := range row {
			if v > maxLogit {
				maxLogit = v
				argmax = j
			}
		}
		if argmax == target {
			correct++
		}

		var sumExp float64
		for _, v := range row {
			sumExp += math.Exp(float64(v - maxLogit))
		}
		logSumExp := float64(maxLogit) + math.Log(sumExp)
		total += logSumExp - float64(row[target])

		g := grad.Row(r)
		for j, v := range row {
			p := math.Exp(float64(v) - logSumExp)
			if j == target {
				p -= 1
			}
			g[j] = float32(p * scale)
		}
	}

	return LossOutput{Loss: total * scale, Grad: grad, Correct: correct}
}
