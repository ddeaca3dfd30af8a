package syncer

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"doorsync/internal/gateway"
)

// Kind names a failure category.  The set is closed: every sync failure
// maps to exactly one kind, falling back to KindSync.
type Kind string

const (
	KindNetworkOffline Kind = "NetworkOfflineError"
	KindTimeout        Kind = "TimeoutError"
	KindBadRequest     Kind = "BadRequestError"
	KindUnauthorized   Kind = "UnauthorizedError"
	KindForbidden      Kind = "ForbiddenError"
	KindNotFound       Kind = "NotFoundError"
	KindServer         Kind = "ServerError"
	KindSync           Kind = "SyncError"
)

var kindCodes = map[Kind]string{
	KindNetworkOffline: "SYNC_NET_001",
	KindTimeout:        "SYNC_TMO_001",
	KindBadRequest:     "SYNC_REQ_400",
	KindUnauthorized:   "SYNC_AUT_401",
	KindForbidden:      "SYNC_FOR_403",
	KindNotFound:       "SYNC_NTF_404",
	KindServer:         "SYNC_SRV_500",
	KindSync:           "SYNC_ERR_001",
}

// Code returns the diagnostic code for the kind.
func (k Kind) Code() string {
	if code, ok := kindCodes[k]; ok {
		return code
	}
	return kindCodes[KindSync]
}

// Classify maps a sync failure to its kind.  The connectivity state is
// checked first: any failure while offline is a network failure, whatever
// its shape.  Then structured status codes, then timeout signals, then
// message text, then the default.
func Classify(err error, online bool) Kind {
	if !online {
		return KindNetworkOffline
	}

	var serr *gateway.StatusError
	if errors.As(err, &serr) {
		switch serr.StatusCode {
		case http.StatusBadRequest:
			return KindBadRequest
		case http.StatusUnauthorized:
			return KindUnauthorized
		case http.StatusForbidden:
			return KindForbidden
		case http.StatusNotFound:
			return KindNotFound
		}
		if serr.StatusCode >= 500 {
			return KindServer
		}
		return KindSync
	}

	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return KindTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "failed to fetch"),
		strings.Contains(msg, "network"),
		strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "no such host"):
		return KindNetworkOffline
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "timed out"):
		return KindTimeout
	}

	return KindSync
}
