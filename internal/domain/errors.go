package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrGenerationTimeout = errors.New("generation timed out")
	ErrGenerationFailed  = errors.New("generation failed")
	ErrCritiqueGateway   = errors.New("critique gateway error")
	ErrRunCancelled      = errors.New("run cancelled")
	ErrInvalidRequest    = errors.New("invalid request")
	// ErrRunFinished は終了済みのランに対する操作で返されます。
	ErrRunFinished = errors.New("run already finished")

	// ErrRunLeased は他のワーカーが有効なリースを保持しているランを実行しようとした場合に返されます。
	ErrRunLeased            = errors.New("run is leased by another worker")
	ErrContentNotReviewable = errors.New("content is not reviewable")
)
