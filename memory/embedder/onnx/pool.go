package onnx

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// pool reduces model output to one vector. Output of shape [1, hidden] is
// already pooled; [1, seq, hidden] is mean-pooled over attended positions.
func pool(data []float32, shape []int64, mask []int64) ([]float64, error) {
	switch len(shape) {
	case 2:
		if shape[0] != 1 {
			return nil, fmt.Errorf("expected batch size 1, got %d", shape[0])
		}
		out := make([]float64, shape[1])
		for i := range out {
			out[i] = float64(data[i])
		}
		return out, nil
	case 3:
		if shape[0] != 1 {
			return nil, fmt.Errorf("expected batch size 1, got %d", shape[0])
		}
		seq, hidden := int(shape[1]), int(shape[2])
		if len(data) < seq*hidden {
			return nil, fmt.Errorf("output holds %d values, shape %v needs %d", len(data), shape, seq*hidden)
		}
		out := make([]float64, hidden)
		attended := 0
		for i := 0; i < seq && i < len(mask); i++ {
			if mask[i] == 0 {
				continue
			}
			attended++
			row := data[i*hidden : (i+1)*hidden]
			for j, v := range row {
				out[j] += float64(v)
			}
		}
		if attended > 0 {
			floats.Scale(1/float64(attended), out)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unexpected output shape: %v", shape)
	}
}

// fit truncates or zero-pads v to n values and scales it to unit length.
func fit(v []float64, n int) []float64 {
	out := make([]float64, n)
	copy(out, v)
	if norm := floats.Norm(out, 2); norm > 0 {
		floats.Scale(1/norm, out)
	}
	return out
}
