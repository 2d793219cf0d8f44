package formatter

import (
	"context"
	"sync"

	"github.com/horockey/fit/internal/model"
	"github.com/samber/lo"
)

// Repository is the process-wide formatter table. Lookups by
// (genericID, format) are map hits.
type Repository struct {
	mu     sync.RWMutex
	codecs map[model.Format]Codec
	metas  map[string]Meta
}

func NewRepository(codecs ...Codec) *Repository {
	repo := Repository{
		codecs: map[model.Format]Codec{},
		metas:  map[string]Meta{},
	}
	for _, c := range codecs {
		repo.codecs[c.Format()] = c
	}
	return &repo
}

func (repo *Repository) RegisterCodec(c Codec) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	repo.codecs[c.Format()] = c
}

func (repo *Repository) Register(metas ...Meta) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	for _, m := range metas {
		if m.GenericID == "" {
			return model.NewError(model.CodeParameter, "formatter meta without generic id")
		}
		repo.metas[m.GenericID] = m
	}
	return nil
}

func (repo *Repository) Unregister(genericIDs ...string) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	for _, id := range genericIDs {
		delete(repo.metas, id)
	}
}

// Clear drops every meta. Codecs are kept.
func (repo *Repository) Clear() {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	repo.metas = map[string]Meta{}
}

func (repo *Repository) Meta(genericID string) (Meta, error) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()

	m, found := repo.metas[genericID]
	if !found {
		return Meta{}, model.NewError(model.CodeNotFound, "no formatter meta for generic %s", genericID)
	}
	return m, nil
}

func (repo *Repository) Get(genericID string, format model.Format) (Formatter, error) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()

	m, found := repo.metas[genericID]
	if !found {
		return nil, model.NewError(model.CodeNotFound, "no formatter meta for generic %s", genericID)
	}
	c, found := repo.codecs[format]
	if !found {
		return nil, model.NewError(model.CodeNotFound, "no %s formatter for generic %s", format, genericID)
	}
	return &boundFormatter{meta: m, codec: c}, nil
}

// Formats lists codecs known to the repository.
func (repo *Repository) Formats() []model.Format {
	repo.mu.RLock()
	defer repo.mu.RUnlock()
	return lo.Keys(repo.codecs)
}

// Negotiate picks the first of offered formats a codec exists for.
func (repo *Repository) Negotiate(genericID string, offered []model.Format) (Formatter, error) {
	for _, f := range offered {
		if fm, err := repo.Get(genericID, f); err == nil {
			return fm, nil
		}
	}
	return nil, model.NewError(model.CodeNotFound, "none of formats %v is supported for generic %s", offered, genericID)
}

var _ Formatter = &boundFormatter{}

type boundFormatter struct {
	meta  Meta
	codec Codec
}

func (bf *boundFormatter) GenericID() string {
	return bf.meta.GenericID
}

func (bf *boundFormatter) Format() model.Format {
	return bf.codec.Format()
}

func (bf *boundFormatter) SerializeRequest(ctx context.Context, args model.Arguments) ([]byte, error) {
	return bf.codec.EncodeRequest(ctx, bf.meta, args)
}

func (bf *boundFormatter) DeserializeRequest(ctx context.Context, data []byte) (model.Arguments, error) {
	return bf.codec.DecodeRequest(ctx, bf.meta, data)
}

func (bf *boundFormatter) SerializeResponse(ctx context.Context, resp Response) ([]byte, error) {
	return bf.codec.EncodeResponse(ctx, bf.meta, resp)
}

func (bf *boundFormatter) DeserializeResponse(ctx context.Context, data []byte) (Response, error) {
	return bf.codec.DecodeResponse(ctx, bf.meta, data)
}

func (bf *boundFormatter) CreateArgOut(_ context.Context) model.Arguments {
	return bf.meta.Signature.NewOut()
}
