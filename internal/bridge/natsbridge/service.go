package natsbridge

import (
	"context"
	"math"

	"github.com/go-monolith/mono"
	"go.uber.org/zap"

	"github.com/meandmytram/pybind-example/internal/calculator"
)

const errNonFinite = "result is not a finite number"

// OperandsRequest is the request body for every calculator service.
type OperandsRequest struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
}

// ResultResponse is the reply body for every calculator service.
type ResultResponse struct {
	Result float64 `json:"result"`
	Method string  `json:"method"`
	Error  string  `json:"error,omitempty"`
}

func (m *Module) handler(method string) func(context.Context, OperandsRequest, *mono.Msg) (ResultResponse, error) {
	return func(_ context.Context, req OperandsRequest, _ *mono.Msg) (ResultResponse, error) {
		result, err := m.mod.Invoke(calculator.ClassName, method, []float64{req.A, req.B})
		if err != nil {
			m.logger.Debug("call failed", zap.String("method", method), zap.Error(err))
			return ResultResponse{Method: method, Error: err.Error()}, nil // Return error in response, not as Go error
		}
		if math.IsNaN(result) || math.IsInf(result, 0) {
			return ResultResponse{Method: method, Error: errNonFinite}, nil
		}
		return ResultResponse{Result: result, Method: method}, nil
	}
}
