// Package nn provides the layers trained by the engine.
//
// Layers operate on 2D float32 tensors shaped [batch, features] and carry an
// explicit backward pass: Forward caches what Backward needs, Backward
// accumulates parameter gradients and returns the gradient with respect to
// the layer input.
//
//	model := nn.NewSequential(
//	    nn.NewLazyLinear(64, rng), // input width inferred on first Forward
//	    nn.NewReLU(),
//	    nn.NewLinear(64, 10, rng),
//	)
//	logits := model.Forward(x)
//	loss := nn.NewCrossEntropyLoss().Forward(logits, labels)
//	model.Backward(loss.Grad)
package nn
