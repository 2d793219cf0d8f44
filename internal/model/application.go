package model

import "cmp"

type Application struct {
	Name       string            `json:"name"`
	Version    string            `json:"version"`
	Extensions map[string]string `json:"extensions,omitempty"`
}

func (a Application) Compare(other Application) int {
	return cmp.Or(
		cmp.Compare(a.Name, other.Name),
		cmp.Compare(a.Version, other.Version),
	)
}

func (a Application) String() string {
	return a.Name + ":" + a.Version
}

type EndpointDetail struct {
	Host     string   `json:"host"`
	Port     int      `json:"port"`
	Protocol Protocol `json:"protocol"`
}

func (e EndpointDetail) Compare(other EndpointDetail) int {
	return cmp.Or(
		cmp.Compare(e.Host, other.Host),
		cmp.Compare(e.Port, other.Port),
		cmp.Compare(e.Protocol, other.Protocol),
	)
}

type WorkerDetail struct {
	ID          string            `json:"id"`
	Environment string            `json:"environment"`
	Extensions  map[string]string `json:"extensions,omitempty"`
	Endpoints   []EndpointDetail  `json:"endpoints"`
}

// ApplicationInstance is an application together with its running workers.
type ApplicationInstance struct {
	Application Application    `json:"application"`
	Formats     []Format       `json:"formats,omitempty"`
	Workers     []WorkerDetail `json:"workers"`
}

// FitableMeta describes a fitable exposed by an application.
type FitableMeta struct {
	Fitable     Fitable           `json:"fitable"`
	Aliases     []string          `json:"aliases,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
	Extensions  map[string]string `json:"extensions,omitempty"`
	Environment string            `json:"environment"`
	Formats     []Format          `json:"formats"`
	Application Application       `json:"application"`
}

// FitableInstance lists where a fitable is currently served.
type FitableInstance struct {
	Fitable              Fitable               `json:"fitable"`
	Aliases              []string              `json:"aliases,omitempty"`
	Tags                 []string              `json:"tags,omitempty"`
	Extensions           map[string]string     `json:"extensions,omitempty"`
	ApplicationInstances []ApplicationInstance `json:"applicationInstances"`
}

const (
	CheckTypeApplication         = "application"
	CheckTypeApplicationInstance = "application_instance"
)

// Keys of an application_instance check element.
const (
	CheckKeyApplicationName    = "name"
	CheckKeyApplicationVersion = "version"
	CheckKeyWorkerID           = "worker_id"
)

// CheckElement asserts that the registry still knows some state.
// For CheckTypeApplication every kvs pair maps version to application name.
type CheckElement struct {
	Type string            `json:"type"`
	Kvs  map[string]string `json:"kvs"`
}

type CheckResult struct {
	Element CheckElement `json:"element"`
	Code    Code         `json:"code"`
}
