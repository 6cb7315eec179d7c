package serialization

import (
	"time"
)

// Format constants.
const (
	MagicBytes      = "BORN"
	FormatVersion   = 2
	HeaderAlignment = 64 // Tensor data starts on a 64-byte boundary
	FixedHeaderSize = 64
	ChecksumSize    = 32
	ChecksumOffset  = 0x20
)

// Flags for the .born format.
const (
	FlagHasOptimizer uint32 = 1 << 1 // optimizer state included
	FlagHasMetadata  uint32 = 1 << 2 // custom metadata included
)

// OptimizerPrefix namespaces optimizer state inside a checkpoint state dict.
const OptimizerPrefix = "optimizer."

// Header represents the JSON header in a .born file.
type Header struct {
	FormatVersion  int               `json:"format_version"`
	CreatedBy      string            `json:"created_by"`
	ModelType      string            `json:"model_type"`
	CreatedAt      time.Time         `json:"created_at"`
	Tensors        []TensorMeta      `json:"tensors"`
	Metadata       map[string]string `json:"metadata"`
	CheckpointMeta *CheckpointMeta   `json:"checkpoint,omitempty"`
}

// CheckpointMeta contains training state information for checkpoints.
type CheckpointMeta struct {
	Epoch           int            `json:"epoch"` // Completed epochs
	Step            int64          `json:"step"`  // Completed optimizer steps
	Monitor         string         `json:"monitor,omitempty"`
	MonitorValue    float64        `json:"monitor_value,omitempty"`
	OptimizerType   string         `json:"optimizer_type,omitempty"`
	OptimizerConfig map[string]any `json:"optimizer_config,omitempty"`
	TrainingMeta    map[string]any `json:"training_meta,omitempty"`
}

// TensorMeta describes a tensor in the .born file.
type TensorMeta struct {
	Name   string `json:"name"`   // e.g. "0.weight"
	DType  string `json:"dtype"`  // e.g. "float32"
	Shape  []int  `json:"shape"`  //
	Offset int64  `json:"offset"` // Bytes from the start of the data section
	Size   int64  `json:"size"`   // Size in bytes
}

func alignedOffset(pos int64) int64 {
	return pos + (HeaderAlignment-(pos%HeaderAlignment))%HeaderAlignment
}
