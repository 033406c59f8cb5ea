package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"fast3r/internal/types"
)

// normalize maps SDK and transport failures into the error taxonomy. The SDK's
// APIError is flattened into a plain cause so its shape never leaves the package.
func normalize(op string, err error) error {
	if err == nil {
		return nil
	}
	var te *types.Error
	if errors.As(err, &te) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return types.NewError(types.KindTimeout, op, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if code, msg, ok := apiError(err); ok {
		cause := fmt.Errorf("provider returned %d: %s", code, msg)
		if code == http.StatusBadRequest {
			return types.NewError(types.KindGenerationFailed, op, cause)
		}
		return types.NewError(types.KindProviderUnavailable, op, cause)
	}
	return types.NewError(types.KindProviderUnavailable, op, err)
}

// retryable reports whether a failed call may succeed if repeated.
func retryable(err error) bool {
	code, _, ok := apiError(err)
	if !ok {
		return false
	}
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

func apiError(err error) (int, string, bool) {
	var v genai.APIError
	if errors.As(err, &v) {
		return v.Code, v.Message, true
	}
	var p *genai.APIError
	if errors.As(err, &p) && p != nil {
		return p.Code, p.Message, true
	}
	return 0, "", false
}
