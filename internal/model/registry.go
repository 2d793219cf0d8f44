package model

import (
	"context"
)

// Registry is the registry server RPC surface. It is implemented in process
// by the registry server and remotely by the registry gateway.
type Registry interface {
	RegisterFitableMetas(ctx context.Context, metas []FitableMeta) error
	UnregisterFitableMetas(ctx context.Context, app Application, fitables []Fitable) error
	QueryFitableMetas(ctx context.Context, genericIDs []string) ([]FitableMeta, error)
	RegisterApplicationInstances(ctx context.Context, instances []ApplicationInstance) error
	UnregisterApplicationInstances(ctx context.Context, app Application, workerIDs []string) error
	SubscribeApplicationInstances(ctx context.Context, fitables []Fitable, sub Subscriber) ([]FitableInstance, error)
	UnsubscribeApplicationInstances(ctx context.Context, fitables []Fitable, listenerID string) error
	QueryApplicationInstances(ctx context.Context, fitables []Fitable) ([]FitableInstance, error)
	Check(ctx context.Context, elements []CheckElement) ([]CheckResult, error)
}

// Subscriber is notified through the NotifyFitableMetas generic at Address.
type Subscriber struct {
	ListenerID string  `json:"listenerId"`
	Address    Address `json:"address"`
}

// Generic ids of the registry protocol, served as ordinary fitables.
const (
	GenericRegisterFitableMetas            = "85bdce64cf724589b87cb6b6a950999d"
	GenericUnregisterFitableMetas          = "4d3cbd9637b4480b9c1d5a0f2fdb1b6f"
	GenericQueryFitableMetas               = "33ab3b7f4e1d4a2c9e3a7f4b5c1d2e9a"
	GenericNotifyFitableMetas              = "b69df5e8cbcd4166aa5029602e7a58cf"
	GenericRegisterApplicationInstances    = "dacee6d6d6a14cea8c8d8a9b3f6f2a11"
	GenericUnregisterApplicationInstances  = "2ca9d2f1b46c4a3f8b4d9c6e1f7a5b28"
	GenericSubscribeApplicationInstances   = "7c52fb4fdfa243af928ad5ed4d4e8b53"
	GenericUnsubscribeApplicationInstances = "d5e4bf1a70f34e6c8b3f2a9c6d1e7b40"
	GenericQueryApplicationInstances       = "5a5c1d6e8f2b4c3a9d7e6f1a2b3c4d5e"
	GenericCheck                           = "e1a4c9b2d8f34a6b7c5d3e2f1a9b8c7d"

	RegistryFitableID      = "registry-server"
	NotifyFitableID        = "registry-listener"
	RegistryGenericVersion = "1.0.0"
)

// RegistryGenericIDs lists every generic of the registry protocol.
var RegistryGenericIDs = []string{
	GenericRegisterFitableMetas,
	GenericUnregisterFitableMetas,
	GenericQueryFitableMetas,
	GenericNotifyFitableMetas,
	GenericRegisterApplicationInstances,
	GenericUnregisterApplicationInstances,
	GenericSubscribeApplicationInstances,
	GenericUnsubscribeApplicationInstances,
	GenericQueryApplicationInstances,
	GenericCheck,
}
