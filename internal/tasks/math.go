package tasks

import (
	"context"
	"fmt"

	"github.com/shaiso/Delegate/internal/rpc"
)

// Add возвращает сумму всех параметров. Без параметров — 0.
func Add(_ context.Context, p rpc.Params) (any, error) {
	nums, err := numbers(p)
	if err != nil {
		return nil, err
	}

	var sum float64
	for _, n := range nums {
		sum += n
	}
	return sum, nil
}

// Multiply возвращает произведение всех параметров. Без параметров — 1.
func Multiply(_ context.Context, p rpc.Params) (any, error) {
	nums, err := numbers(p)
	if err != nil {
		return nil, err
	}

	product := 1.0
	for _, n := range nums {
		product *= n
	}
	return product, nil
}

// numbers декодирует все параметры как числа.
func numbers(p rpc.Params) ([]float64, error) {
	nums := make([]float64, p.Len())
	for i := range nums {
		n, err := p.Float(i)
		if err != nil {
			return nil, fmt.Errorf("%w: param %d is not a number", ErrInvalidParams, i)
		}
		nums[i] = n
	}
	return nums, nil
}

// Echo возвращает параметры без изменений.
func Echo(_ context.Context, p rpc.Params) (any, error) {
	values, err := p.Values()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	return values, nil
}
