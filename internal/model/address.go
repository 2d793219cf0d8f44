package model

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

type Protocol int32

const (
	ProtocolRSocket Protocol = iota
	ProtocolSocket
	ProtocolHTTP
	ProtocolGRPC
	ProtocolHTTPS
	ProtocolUC
	ProtocolSharedMemory
)

func (p Protocol) String() string {
	switch p {
	case ProtocolRSocket:
		return "rsocket"
	case ProtocolSocket:
		return "socket"
	case ProtocolHTTP:
		return "http"
	case ProtocolGRPC:
		return "grpc"
	case ProtocolHTTPS:
		return "https"
	case ProtocolUC:
		return "uc"
	case ProtocolSharedMemory:
		return "sharedMemory"
	default:
		return "protocol(" + strconv.Itoa(int(p)) + ")"
	}
}

// Format is a payload encoding id carried in the message header.
type Format uint8

const (
	FormatProtobuf Format = iota
	FormatJSON
)

func (f Format) String() string {
	switch f {
	case FormatProtobuf:
		return "protobuf"
	case FormatJSON:
		return "json"
	default:
		return "format(" + strconv.Itoa(int(f)) + ")"
	}
}

// Address is a reachable endpoint of a worker.
type Address struct {
	Host        string            `json:"host"`
	Port        int               `json:"port"`
	WorkerID    string            `json:"workerId"`
	Protocol    Protocol          `json:"protocol"`
	Formats     []Format          `json:"formats"`
	Environment string            `json:"environment"`
	Extensions  map[string]string `json:"extensions,omitempty"`
}

func (a Address) HostPort() string {
	return a.Host + ":" + strconv.Itoa(a.Port)
}

func (a Address) String() string {
	return fmt.Sprintf("%s://%s (worker %s)", a.Protocol, a.HostPort(), a.WorkerID)
}

// Target is a fully resolved remote destination of a call.
type Target struct {
	Fitable Fitable
	Aliases []string
	Address
}

// CompareExtensions is a total order over string maps: entries are compared
// pairwise in key order, a shorter prefix sorts first.
func CompareExtensions(a, b map[string]string) int {
	ak := slices.Sorted(maps.Keys(a))
	bk := slices.Sorted(maps.Keys(b))
	for i := 0; i < len(ak) && i < len(bk); i++ {
		if c := cmp.Or(strings.Compare(ak[i], bk[i]), strings.Compare(a[ak[i]], b[bk[i]])); c != 0 {
			return c
		}
	}
	return cmp.Compare(len(ak), len(bk))
}
