package infra

import "context"

type TransformClientInterface interface {
	Transform(ctx context.Context, contentType string, body []byte) (*TransformResponse, error)
}

var _ TransformClientInterface = (*TransformClient)(nil)
