package formatter

import (
	"context"

	"github.com/horockey/fit/internal/model"
)

// Response is the body of a reply.
type Response struct {
	Code model.Code
	Msg  string
	Args model.Arguments
}

func (r Response) Err() error {
	return model.ErrorOf(r.Code, r.Msg)
}

// Codec is a stateless body encoding. Meta supplies per-generic type info.
type Codec interface {
	Format() model.Format
	EncodeRequest(ctx context.Context, meta Meta, args model.Arguments) ([]byte, error)
	DecodeRequest(ctx context.Context, meta Meta, data []byte) (model.Arguments, error)
	EncodeResponse(ctx context.Context, meta Meta, resp Response) ([]byte, error)
	DecodeResponse(ctx context.Context, meta Meta, data []byte) (Response, error)
}

// Formatter converts arguments of one generic in one format.
type Formatter interface {
	GenericID() string
	Format() model.Format
	SerializeRequest(ctx context.Context, args model.Arguments) ([]byte, error)
	DeserializeRequest(ctx context.Context, data []byte) (model.Arguments, error)
	SerializeResponse(ctx context.Context, resp Response) ([]byte, error)
	DeserializeResponse(ctx context.Context, data []byte) (Response, error)
	CreateArgOut(ctx context.Context) model.Arguments
}
