// Package engine is a small CPU training loop with lifecycle hooks.
//
// A Trainer fits an engine.Model on a data.DataModule for a fixed number of
// epochs, reports metrics to Loggers and notifies Callbacks. ModelCheckpoint
// keeps the best checkpoints by a monitored metric; ProgressBar renders batch
// progress.
//
//	ckpt, _ := engine.NewModelCheckpoint(engine.CheckpointConfig{
//	    Dir:      "checkpoints",
//	    Filename: "mlp_{epoch:02d}-{val_loss:.2f}",
//	    Monitor:  "val_loss",
//	})
//	t := engine.New(engine.WithMaxEpochs(10), engine.WithCallbacks(ckpt))
//	if err := t.Fit(ctx, model, dm, engine.FitOptions{}); err != nil {
//	    return err
//	}
//	metrics, err := t.Test(ctx, model, dm, ckpt.BestModelPath(), nil)
package engine
