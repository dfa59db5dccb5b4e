package turn

import (
	"context"
	"errors"
	"iter"
)

// StreamValue is one element of a streaming turn. Values carry either a
// text fragment or, exactly once as the final element, the Done marker with
// the committed Output.
type StreamValue struct {
	Chunk  string  // partial response text, empty on the done element
	Done   bool    // true only for the final element
	Output *Result // set when Done is true
}

// errConsumerStopped signals that the stream consumer stopped iterating.
var errConsumerStopped = errors.New("stream consumer stopped")

// Stream runs a streaming turn as a single-use lazy sequence. The sequence
// yields zero or more chunk values, then exactly one of: a Done value with
// the committed result, or an error. Abandoning the iteration aborts the
// underlying model call.
//
// The sequence does its work during iteration on the consumer's goroutine;
// nothing runs until the consumer starts ranging.
func (e *Executor) Stream(ctx context.Context, req Request) iter.Seq2[StreamValue, error] {
	return func(yield func(StreamValue, error) bool) {
		res, err := e.executeStream(ctx, req, func(chunk string) error {
			if !yield(StreamValue{Chunk: chunk}, nil) {
				return errConsumerStopped
			}
			return nil
		})
		if err != nil {
			if errors.Is(err, errConsumerStopped) {
				return
			}
			yield(StreamValue{}, err)
			return
		}
		yield(StreamValue{Done: true, Output: res}, nil)
	}
}
