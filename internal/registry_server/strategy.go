package registry_server

import (
	"sync"

	"github.com/horockey/fit/internal/model"
	"github.com/horockey/fit/internal/repository/registry_records"
)

// Strategy verifies one kind of check element.
type Strategy interface {
	Type() string
	Check(kvs map[string]string) model.Code
}

var _ Strategy = &applicationStrategy{}

// applicationStrategy expects every kvs pair to map a version to the name of
// a registered application.
type applicationStrategy struct {
	repo registry_records.Repository
}

func (s *applicationStrategy) Type() string {
	return model.CheckTypeApplication
}

func (s *applicationStrategy) Check(kvs map[string]string) model.Code {
	if len(kvs) == 0 {
		return model.CodeParameter
	}
	for version, name := range kvs {
		if _, found := s.repo.ApplicationInstance(model.Application{Name: name, Version: version}); !found {
			return model.CodeNotExist
		}
	}
	return model.CodeOK
}

var _ Strategy = &applicationInstanceStrategy{}

// applicationInstanceStrategy expects a worker of an application to be
// registered.
type applicationInstanceStrategy struct {
	repo registry_records.Repository
}

func (s *applicationInstanceStrategy) Type() string {
	return model.CheckTypeApplicationInstance
}

func (s *applicationInstanceStrategy) Check(kvs map[string]string) model.Code {
	name, version, workerID := kvs[model.CheckKeyApplicationName], kvs[model.CheckKeyApplicationVersion], kvs[model.CheckKeyWorkerID]
	if name == "" || workerID == "" {
		return model.CodeParameter
	}
	if !s.repo.HasWorker(model.Application{Name: name, Version: version}, workerID) {
		return model.CodeNotExist
	}
	return model.CodeOK
}

// checkContext dispatches elements by type. The strategy table is built on
// first use.
type checkContext struct {
	once       sync.Once
	build      func() []Strategy
	strategies map[string]Strategy
}

func newCheckContext(build func() []Strategy) *checkContext {
	return &checkContext{build: build}
}

func (cc *checkContext) strategy(typ string) (Strategy, bool) {
	cc.once.Do(func() {
		cc.strategies = map[string]Strategy{}
		for _, s := range cc.build() {
			cc.strategies[s.Type()] = s
		}
	})
	s, found := cc.strategies[typ]
	return s, found
}

func (cc *checkContext) check(elements []model.CheckElement) []model.CheckResult {
	res := make([]model.CheckResult, 0, len(elements))
	for _, el := range elements {
		code := model.CodeNotFound
		if s, found := cc.strategy(el.Type); found {
			code = s.Check(el.Kvs)
		}
		res = append(res, model.CheckResult{Element: el, Code: code})
	}
	return res
}
