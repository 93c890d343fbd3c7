package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dan13ram/yusd-settlement/settlement"
	"github.com/dan13ram/yusd-settlement/signer"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	log "github.com/sirupsen/logrus"
)

const (
	HeaderTimestamp = "X-Timestamp"
	HeaderSignature = "X-Signature"

	maxBodyBytes = 1 << 20
)

var (
	errMissingHeaders = errors.New("missing signature headers")
	errBadTimestamp   = errors.New("timestamp outside the accepted window")
)

type callerKey struct{}

// CallerFrom returns the address that signed the request.
func CallerFrom(ctx context.Context) (common.Address, bool) {
	caller, ok := ctx.Value(callerKey{}).(common.Address)
	return caller, ok
}

// RequestMessage is the text a caller signs with personal_sign: method,
// request uri, unix millisecond timestamp and keccak256 of the body, one per
// line.
func RequestMessage(method, uri, timestamp string, body []byte) []byte {
	return []byte(strings.Join([]string{
		strings.ToUpper(method),
		uri,
		timestamp,
		crypto.Keccak256Hash(body).Hex(),
	}, "\n"))
}

// SignRequest sets the signature headers on req for s.
func SignRequest(s signer.Signer, req *http.Request, body []byte, now time.Time) error {
	timestamp := strconv.FormatInt(now.UnixMilli(), 10)
	signature, err := signer.SignPersonal(s, RequestMessage(req.Method, req.URL.RequestURI(), timestamp, body))
	if err != nil {
		return err
	}
	req.Header.Set(HeaderTimestamp, timestamp)
	req.Header.Set(HeaderSignature, hexutil.Encode(signature))
	return nil
}

type authenticator struct {
	maxAge time.Duration
	clock  func() time.Time
}

func (a *authenticator) authenticate(r *http.Request, body []byte) (common.Address, error) {
	timestamp := r.Header.Get(HeaderTimestamp)
	signatureHex := r.Header.Get(HeaderSignature)
	if timestamp == "" || signatureHex == "" {
		return common.Address{}, errMissingHeaders
	}

	millis, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", errBadTimestamp, err)
	}
	age := a.clock().Sub(time.UnixMilli(millis))
	if age < 0 {
		age = -age
	}
	if age > a.maxAge {
		return common.Address{}, errBadTimestamp
	}

	signature, err := hexutil.Decode(signatureHex)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", settlement.ErrInvalidSignature, err)
	}
	digest := accounts.TextHash(RequestMessage(r.Method, r.URL.RequestURI(), timestamp, body))
	return settlement.RecoverSigner(digest, signature)
}

func (a *authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			writeError(w, http.StatusRequestEntityTooLarge, err)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		caller, err := a.authenticate(r, body)
		if err != nil {
			log.Debug("[API] Rejected request to ", r.URL.Path, ": ", err)
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		ctx := context.WithValue(r.Context(), callerKey{}, caller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
