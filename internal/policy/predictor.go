package policy

import (
	"context"
	"sync"

	"github.com/workcell-labs/foundry/internal/types"
)

// Predictor is the learned-policy capability the engine consults. Variants
// are absent, loaded, and load-failed; callers never branch on a concrete
// model type, only on this capability and its memoized load state.
type Predictor interface {
	// PredictAction maps an encoded planner input to a raw candidate action.
	PredictAction(ctx context.Context, tokens []string) (Prediction, error)
}

// PredictorLoader constructs a Predictor, typically by loading a model
// bundle from disk. Called at most once per engine.
type PredictorLoader func() (Predictor, error)

// lazyPredictor memoizes a PredictorLoader, including its failure. Repeated
// decisions never retry a broken bundle, and concurrent callers never race
// to reload: sync.Once is the single initialization guard.
type lazyPredictor struct {
	load PredictorLoader

	once      sync.Once
	predictor Predictor
	err       error
}

func newLazyPredictor(load PredictorLoader) *lazyPredictor {
	return &lazyPredictor{load: load}
}

// get returns the memoized predictor or load error. A nil loader means no
// predictor is configured.
func (l *lazyPredictor) get() (Predictor, error) {
	l.once.Do(func() {
		if l.load == nil {
			l.err = types.NewError(types.PREDICTOR_LOAD_FAILED, "no predictor configured")
			return
		}
		l.predictor, l.err = l.load()
		if l.err == nil && l.predictor == nil {
			l.err = types.NewError(types.PREDICTOR_LOAD_FAILED, "predictor loader returned nil")
		}
	})
	return l.predictor, l.err
}
