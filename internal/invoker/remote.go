package invoker

import (
	"context"
	"fmt"

	"github.com/horockey/fit/internal/formatter"
	"github.com/horockey/fit/internal/gateway/remote_fitables"
	"github.com/horockey/fit/internal/message"
	"github.com/horockey/fit/internal/model"
)

// TokenSource supplies the access token of outgoing calls.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// Remote performs envelope level calls of remote fitables.
type Remote struct {
	gateway    remote_fitables.Gateway
	formatters *formatter.Repository
	tokens     TokenSource
}

// NewRemote builds a remote caller. A nil tokens sends calls without token.
func NewRemote(gateway remote_fitables.Gateway, formatters *formatter.Repository, tokens TokenSource) *Remote {
	return &Remote{
		gateway:    gateway,
		formatters: formatters,
		tokens:     tokens,
	}
}

// Call serializes in with a format the target accepts, sends it and decodes
// the results.
func (r *Remote) Call(ctx context.Context, target model.Target, in model.Arguments) (model.Arguments, error) {
	offered := target.Formats
	if len(offered) == 0 {
		offered = []model.Format{model.FormatJSON}
	}
	f, err := r.formatters.Negotiate(target.Fitable.GenericID, offered)
	if err != nil {
		return nil, fmt.Errorf("negotiating format: %w", err)
	}

	token := ""
	if r.tokens != nil {
		if token, err = r.tokens.AccessToken(ctx); err != nil {
			return nil, fmt.Errorf("getting access token: %w", err)
		}
	}

	h := message.NewRequestHeader(target.Fitable, f.Format(), token)
	if gc := message.GlobalContextFrom(ctx); len(gc) > 0 {
		h.SetGlobalContext(gc)
	}

	body, err := f.SerializeRequest(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("serializing request: %w", err)
	}

	req, err := message.Build(h, body)
	if err != nil {
		return nil, fmt.Errorf("building request envelope: %w", err)
	}

	respBuf, err := r.gateway.Invoke(ctx, target, req)
	if err != nil {
		return nil, fmt.Errorf("invoking %s: %w", target.Address, err)
	}

	rh, respBody, err := message.Parse(respBuf)
	if err != nil {
		return nil, fmt.Errorf("parsing response envelope: %w", err)
	}
	if err := rh.Err(); err != nil {
		return nil, err
	}

	resp, err := f.DeserializeResponse(ctx, respBody)
	if err != nil {
		return nil, fmt.Errorf("deserializing response: %w", err)
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp.Args, nil
}
