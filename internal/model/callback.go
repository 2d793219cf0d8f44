package model

// CallBackInfo is reported exactly once per invocation.
type CallBackInfo struct {
	Code      Code
	Err       error
	GenericID string
	FitableID string
	Aliases   []string
	Host      string
	Port      int
	WorkerID  string
	Local     bool
}

type CallBack func(info CallBackInfo)
