// Package serialization implements the .born container used for training
// checkpoints.
//
//	Layout (format version 2):
//	  0x00  [4]byte  magic "BORN"
//	  0x04  uint32   format version (LE)
//	  0x08  uint32   flags (LE)
//	  0x0C  uint32   reserved
//	  0x10  uint64   header size (LE)
//	  0x18  uint64   data size (LE)
//	  0x20  [32]byte SHA-256 of the data section
//	  0x40  header JSON, zero padded to a 64-byte boundary
//	        tensor data, in header order
//
// Tensors are written in lexical name order so that two checkpoints of the
// same state are byte-identical apart from the creation timestamp.
//
// Example:
//
//	err := serialization.WriteFile("model.ckpt", stateDict, serialization.Header{
//	    ModelType: "MLP",
//	})
//
//	f, err := serialization.ReadFile("model.ckpt", serialization.ReaderOptions{})
//	model.LoadStateDict(f.StateDict)
package serialization
