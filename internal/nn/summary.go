package nn

import "fmt"

// LayerSummary describes one layer the way a model summary table does
type LayerSummary struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	OutputShape string `json:"output_shape"`
	Params      int    `json:"params"`
}

// Summary lists every layer plus parameter totals
type Summary struct {
	Layers             []LayerSummary `json:"layers"`
	TotalParams        int            `json:"total_params"`
	TrainableParams    int            `json:"trainable_params"`
	NonTrainableParams int            `json:"non_trainable_params"`
}

// Summary describes the network layer by layer
func (n *Network) Summary() Summary {
	var s Summary
	for _, l := range n.layers {
		trainable := 0
		for _, p := range l.Params() {
			r, c := p.Value.Dims()
			trainable += r * c
		}
		s.Layers = append(s.Layers, LayerSummary{
			Name:        l.Name(),
			Type:        l.Kind(),
			OutputShape: fmt.Sprintf("(None, %d)", l.Units()),
			Params:      l.ParamCount(),
		})
		s.TotalParams += l.ParamCount()
		s.TrainableParams += trainable
	}
	s.NonTrainableParams = s.TotalParams - s.TrainableParams
	return s
}
