package tui

import (
	"context"
	"sync"

	"github.com/wewew312/todomemes/internal/model"
)

// Merge fans several snapshot channels into one. The result closes once
// every input has closed or ctx ends; nil inputs are skipped.
func Merge(ctx context.Context, chans ...<-chan []model.Item) <-chan []model.Item {
	out := make(chan []model.Item, 1)
	var wg sync.WaitGroup
	for _, ch := range chans {
		if ch == nil {
			continue
		}
		wg.Add(1)
		go func(ch <-chan []model.Item) {
			defer wg.Done()
			for {
				select {
				case items, ok := <-ch:
					if !ok {
						return
					}
					select {
					case out <- items:
					case <-ctx.Done():
						return
					}
				case <-ctx.Done():
					return
				}
			}
		}(ch)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}
