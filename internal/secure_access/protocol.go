package secure_access

import (
	"context"
	"fmt"

	"github.com/horockey/fit/internal/formatter"
	"github.com/horockey/fit/internal/model"
)

// Generic ids of the secure access protocol. They are served without a
// token by the authority worker.
const (
	GenericGetTokenRole       = "f0f3b7a46a1e4d0c9c1b2e8d7a6c5b41"
	GenericRefreshAccessToken = "0b8a7c6d5e4f4a3b9c2d1e0f9a8b7c62"
	GenericIsAuthorized       = "9c1e2d3f4a5b4c6d8e7f6a5b4c3d2e13"

	AuthorityFitableID = "secure-access"
	AuthorityVersion   = "1.0.0"
)

var GenericIDs = []string{
	GenericGetTokenRole,
	GenericRefreshAccessToken,
	GenericIsAuthorized,
}

var tokensOut = map[int]formatter.ObjectFactory{0: formatter.ObjectFactoryFor[[]model.AuthTokenRole]()}

func signatureOf(genericID string) model.Signature {
	switch genericID {
	case GenericGetTokenRole:
		return model.Signature{
			In:  []model.Kind{model.KindString, model.KindInt, model.KindString},
			Out: []model.Kind{model.KindObject},
		}
	case GenericRefreshAccessToken:
		return model.Signature{
			In:  []model.Kind{model.KindString},
			Out: []model.Kind{model.KindObject},
		}
	default:
		return model.Signature{
			In:  []model.Kind{model.KindString, model.KindObject},
			Out: []model.Kind{model.KindBool},
		}
	}
}

func Metas() []formatter.Meta {
	return []formatter.Meta{
		{
			GenericID:  GenericGetTokenRole,
			Signature:  signatureOf(GenericGetTokenRole),
			OutObjects: tokensOut,
		},
		{
			GenericID:  GenericRefreshAccessToken,
			Signature:  signatureOf(GenericRefreshAccessToken),
			OutObjects: tokensOut,
		},
		{
			GenericID: GenericIsAuthorized,
			Signature: signatureOf(GenericIsAuthorized),
			InObjects: map[int]formatter.ObjectFactory{1: formatter.ObjectFactoryFor[model.Permission]()},
		},
	}
}

// AuthorityFitable is the identity under which genericID is served.
func AuthorityFitable(genericID string) model.Fitable {
	return model.Fitable{
		GenericID:      genericID,
		GenericVersion: AuthorityVersion,
		FitableID:      AuthorityFitableID,
		FitableVersion: AuthorityVersion,
	}
}

// Fitables exposes svc as local fitables.
func Fitables(svc *Service) []*model.FitableDetail {
	bind := func(genericID string, fn model.FitableFunc) *model.FitableDetail {
		return &model.FitableDetail{
			Fitable:   AuthorityFitable(genericID),
			Type:      model.FitableTypeMain,
			Signature: signatureOf(genericID),
			Func:      fn,
		}
	}

	return []*model.FitableDetail{
		bind(GenericGetTokenRole, func(ctx context.Context, in model.Arguments) (model.Arguments, error) {
			ak, _ := in[0].AsString()
			ts, _ := in[1].AsInt()
			signature, _ := in[2].AsString()
			tokens, err := svc.GetTokenRole(ctx, ak, ts, signature)
			if err != nil {
				return nil, err
			}
			return model.Arguments{model.Object(tokens)}, nil
		}),
		bind(GenericRefreshAccessToken, func(ctx context.Context, in model.Arguments) (model.Arguments, error) {
			refresh, _ := in[0].AsString()
			tokens, err := svc.RefreshAccessToken(ctx, refresh)
			if err != nil {
				return nil, err
			}
			return model.Arguments{model.Object(tokens)}, nil
		}),
		bind(GenericIsAuthorized, func(ctx context.Context, in model.Arguments) (model.Arguments, error) {
			token, _ := in[0].AsString()
			p, _ := model.ObjectAs[model.Permission](in[1])
			if err := svc.IsAuthorized(ctx, token, p); err != nil {
				return nil, err
			}
			return model.Arguments{model.Bool(true)}, nil
		}),
	}
}

// Caller invokes one secure access generic on the authority.
type Caller interface {
	Call(ctx context.Context, genericID string, in model.Arguments) (model.Arguments, error)
}

type CallerFunc func(ctx context.Context, genericID string, in model.Arguments) (model.Arguments, error)

func (fn CallerFunc) Call(ctx context.Context, genericID string, in model.Arguments) (model.Arguments, error) {
	return fn(ctx, genericID, in)
}

// Client reaches a remote authority.
type Client struct {
	caller Caller
}

func NewClient(caller Caller) *Client {
	return &Client{caller: caller}
}

func (c *Client) GetTokenRole(ctx context.Context, ak string, timestamp int64, signature string) ([]model.AuthTokenRole, error) {
	return c.tokens(ctx, GenericGetTokenRole, model.String(ak), model.Int(timestamp), model.String(signature))
}

func (c *Client) RefreshAccessToken(ctx context.Context, refreshToken string) ([]model.AuthTokenRole, error) {
	return c.tokens(ctx, GenericRefreshAccessToken, model.String(refreshToken))
}

func (c *Client) IsAuthorized(ctx context.Context, token string, p model.Permission) error {
	if _, err := c.caller.Call(ctx, GenericIsAuthorized, model.Arguments{model.String(token), model.Object(p)}); err != nil {
		return fmt.Errorf("checking token: %w", err)
	}
	return nil
}

func (c *Client) tokens(ctx context.Context, genericID string, in ...model.Value) ([]model.AuthTokenRole, error) {
	out, err := c.caller.Call(ctx, genericID, in)
	if err != nil {
		return nil, fmt.Errorf("calling secure access generic %s: %w", genericID, err)
	}
	if len(out) == 0 || out[0].IsNull() {
		return nil, nil
	}
	tokens, ok := model.ObjectAs[[]model.AuthTokenRole](out[0])
	if !ok {
		return nil, model.NewError(model.CodeDeserialize, "unexpected %s result of generic %s", out[0].Kind(), genericID)
	}
	return tokens, nil
}
