// Package batch - fan-out с ограничением параллелизма, где у каждого элемента
// свой результат и своя ошибка. Падение одного элемента не отменяет соседей.
package batch

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"
)

type Options struct {
	// Limit - сколько элементов выполняется одновременно; <= 0 - без ограничения.
	Limit int
	// Timeout - на каждый элемент отдельно; 0 - без таймаута.
	Timeout time.Duration
}

type Result[T any] struct {
	Index int
	Value T
	Err   error
}

// Gather запускает fn для всех items и ждёт все результаты. Порядок результатов
// совпадает с порядком items.
func Gather[I, T any](ctx context.Context, items []I, opts Options, fn func(ctx context.Context, item I) (T, error)) []Result[T] {
	results := make([]Result[T], len(items))
	if len(items) == 0 {
		return results
	}

	limit := int64(opts.Limit)
	if limit <= 0 {
		limit = int64(len(items))
	}
	sem := semaphore.NewWeighted(limit)
	done := make(chan struct{}, len(items))

	for i, item := range items {
		results[i].Index = i
		go func() {
			defer func() { done <- struct{}{} }()
			if err := sem.Acquire(ctx, 1); err != nil {
				results[i].Err = err
				return
			}
			defer sem.Release(1)
			results[i].Value, results[i].Err = call(ctx, opts.Timeout, item, fn)
		}()
	}

	for range items {
		<-done
	}
	return results
}

func call[I, T any](ctx context.Context, timeout time.Duration, item I, fn func(context.Context, I) (T, error)) (v T, err error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("batch: panic: %v", p)
		}
	}()
	return fn(ctx, item)
}
