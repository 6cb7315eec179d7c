// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor exposes the dense float32 tensors that models consume and
// checkpoints store.
//
// Tensors are row-major and untyped at compile time; the element type is
// carried as a DataType:
//
//	x, err := tensor.FromFloat32([]float32{1, 2, 3, 4}, tensor.Shape{2, 2})
//	if err != nil {
//	    return err
//	}
//	fmt.Println(x.Shape(), x.DType()) // [2 2] float32
package tensor
