package api

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/dan13ram/yusd-settlement/intake"
	"github.com/dan13ram/yusd-settlement/models"
	"github.com/dan13ram/yusd-settlement/rewards"
	"github.com/dan13ram/yusd-settlement/settlement"
	"github.com/dan13ram/yusd-settlement/store"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const defaultListLimit = 100

// Engine is the settlement surface served over HTTP.
type Engine interface {
	intake.Engine
	TransferToCustody(ctx context.Context, caller, custodian, asset common.Address, amount *big.Int) error
	ForceTransferToCustody(ctx context.Context, caller, custodian, asset common.Address) (*big.Int, error)
	FreezeFunds(ctx context.Context, caller, asset common.Address, amount *big.Int) error
	UnfreezeFunds(ctx context.Context, caller, asset common.Address, amount *big.Int) error
	CustodyAccount(ctx context.Context, asset common.Address) (settlement.CustodyAccount, error)
	GetRedeemRequest(ctx context.Context, id string) (settlement.RedeemRequest, error)
	MintLimit(ctx context.Context) (settlement.RateLimitWindow, error)
	RedeemLimit(ctx context.Context) (settlement.RateLimitWindow, error)
}

type RequestLister interface {
	ListRedeemRequests(status string, limit int64) ([]settlement.RedeemRequest, error)
}

type PricePusher interface {
	Push(pusher common.Address, price *big.Int) error
}

type RewardsClaimer interface {
	Claim(ctx context.Context, snapshotID [32]byte, account common.Address, amount *big.Int) error
	Snapshot(ctx context.Context, snapshotID [32]byte) (rewards.Snapshot, error)
}

// Options wires a Server. Requests, Oracle and Rewards are optional; their
// routes are not mounted when nil.
type Options struct {
	Engine            Engine
	Requests          RequestLister
	Oracle            PricePusher
	Rewards           RewardsClaimer
	RequestsPerMinute float64
	Burst             int
	SignatureMaxAge   time.Duration
}

type Server struct {
	engine   Engine
	requests RequestLister
	oracle   PricePusher
	rewards  RewardsClaimer
	clock    func() time.Time
	router   http.Handler
}

func NewServer(opts Options) *Server {
	s := &Server{
		engine:   opts.Engine,
		requests: opts.Requests,
		oracle:   opts.Oracle,
		rewards:  opts.Rewards,
		clock:    time.Now,
	}
	now := func() time.Time { return s.clock() }
	auth := &authenticator{maxAge: opts.SignatureMaxAge, clock: now}
	limiter := newCallerLimiter(opts.RequestsPerMinute, opts.Burst, now)
	s.router = s.buildRouter(auth, limiter)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter(auth *authenticator, limiter *callerLimiter) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestMetrics().Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(auth.Middleware)
		v1.Use(limiter.Middleware)

		v1.Post("/orders/mint", s.Mint)
		v1.Post("/orders/redeem", s.RequestRedeem)
		v1.Post("/orders/deposit-income", s.DepositIncome)

		if s.requests != nil {
			v1.Get("/redeem-requests", s.ListRedeemRequests)
		}
		v1.Get("/redeem-requests/{id}", s.GetRedeemRequest)
		v1.Post("/redeem-requests/{id}/approve", s.ApproveRedeemRequest)
		v1.Post("/redeem-requests/{id}/reject", s.RejectRedeemRequest)
		v1.Post("/redeem-requests/{id}/withdraw", s.WithdrawRedeemRequest)

		v1.Get("/custody/{asset}", s.GetCustody)
		v1.Post("/custody/transfer", s.TransferToCustody)
		v1.Post("/custody/force-transfer", s.ForceTransferToCustody)
		v1.Post("/custody/freeze", s.FreezeFunds)
		v1.Post("/custody/unfreeze", s.UnfreezeFunds)

		v1.Get("/limits", s.GetLimits)

		if s.oracle != nil {
			v1.Post("/oracle/price", s.PushPrice)
		}
		if s.rewards != nil {
			v1.Get("/rewards/{snapshot}", s.GetSnapshot)
			v1.Post("/rewards/{snapshot}/claim", s.Claim)
		}

		v1.Post("/submissions", s.Submit)
		v1.Get("/submissions/{id}", s.GetSubmission)
	})

	return r
}

func caller(r *http.Request) common.Address {
	address, _ := CallerFrom(r.Context())
	return address
}

func decode(r *http.Request, body interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(body); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func parseAddressParam(name, value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%w: %s is not an address", errBadRequest, name)
	}
	return common.HexToAddress(value), nil
}

func parseAmountParam(name, value string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not an integer", settlement.ErrInvalidAmount, name)
	}
	return amount, nil
}

func (s *Server) decodeOrder(r *http.Request) (settlement.Order, []byte, error) {
	var body orderBody
	if err := decode(r, &body); err != nil {
		return settlement.Order{}, nil, err
	}
	order, err := store.OrderFromModel(body.Order)
	if err != nil {
		return settlement.Order{}, nil, err
	}
	signature, err := hexutil.Decode(body.Signature)
	if err != nil {
		return settlement.Order{}, nil, fmt.Errorf("%w: %v", settlement.ErrInvalidSignature, err)
	}
	return order, signature, nil
}

func (s *Server) Mint(w http.ResponseWriter, r *http.Request) {
	order, signature, err := s.decodeOrder(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	result, err := s.engine.Mint(r.Context(), caller(r), order, signature)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mintView{Minted: amountString(result.Minted), Fee: amountString(result.Fee)})
}

func (s *Server) RequestRedeem(w http.ResponseWriter, r *http.Request) {
	order, signature, err := s.decodeOrder(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	request, err := s.engine.RequestRedeem(r.Context(), caller(r), order, signature)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, store.RedeemRequestToModel(request))
}

func (s *Server) DepositIncome(w http.ResponseWriter, r *http.Request) {
	order, signature, err := s.decodeOrder(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	result, err := s.engine.DepositIncome(r.Context(), caller(r), order, signature)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, incomeView{
		Amount:  amountString(result.Amount),
		Rewards: amountString(result.Rewards),
		Fee:     amountString(result.Fee),
	})
}

func (s *Server) ListRedeemRequests(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status == "" {
		status = models.RedeemStatusPending
	}
	limit := int64(defaultListLimit)
	if value := r.URL.Query().Get("limit"); value != "" {
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil || parsed <= 0 {
			fail(w, r, fmt.Errorf("%w: limit", errBadRequest))
			return
		}
		limit = parsed
	}

	requests, err := s.requests.ListRedeemRequests(status, limit)
	if err != nil {
		fail(w, r, err)
		return
	}
	views := make([]models.RedeemRequest, 0, len(requests))
	for _, request := range requests {
		views = append(views, store.RedeemRequestToModel(request))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) GetRedeemRequest(w http.ResponseWriter, r *http.Request) {
	request, err := s.engine.GetRedeemRequest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, store.RedeemRequestToModel(request))
}

func (s *Server) ApproveRedeemRequest(w http.ResponseWriter, r *http.Request) {
	var body approveBody
	if err := decode(r, &body); err != nil {
		fail(w, r, err)
		return
	}
	amount, err := parseAmountParam("collateral_amount", body.CollateralAmount)
	if err != nil {
		fail(w, r, err)
		return
	}
	outcome, err := s.engine.ApproveRedeemRequest(r.Context(), caller(r), chi.URLParam(r, "id"), amount)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outcomeView{
		Request:  store.RedeemRequestToModel(outcome.Request),
		Rejected: outcome.Rejected,
		Reason:   outcome.Reason,
	})
}

func (s *Server) RejectRedeemRequest(w http.ResponseWriter, r *http.Request) {
	request, err := s.engine.RejectRedeemRequest(r.Context(), caller(r), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, store.RedeemRequestToModel(request))
}

func (s *Server) WithdrawRedeemRequest(w http.ResponseWriter, r *http.Request) {
	request, err := s.engine.WithdrawRedeemRequest(r.Context(), caller(r), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, store.RedeemRequestToModel(request))
}

func (s *Server) GetCustody(w http.ResponseWriter, r *http.Request) {
	asset, err := parseAddressParam("asset", chi.URLParam(r, "asset"))
	if err != nil {
		fail(w, r, err)
		return
	}
	s.writeCustody(w, r, asset)
}

func (s *Server) decodeCustody(r *http.Request, needCustodian, needAmount bool) (custodian, asset common.Address, amount *big.Int, err error) {
	var body custodyBody
	if err = decode(r, &body); err != nil {
		return
	}
	if needCustodian {
		if custodian, err = parseAddressParam("custodian", body.Custodian); err != nil {
			return
		}
	}
	if asset, err = parseAddressParam("asset", body.Asset); err != nil {
		return
	}
	if needAmount {
		amount, err = parseAmountParam("amount", body.Amount)
	}
	return
}

func (s *Server) TransferToCustody(w http.ResponseWriter, r *http.Request) {
	custodian, asset, amount, err := s.decodeCustody(r, true, true)
	if err != nil {
		fail(w, r, err)
		return
	}
	if err := s.engine.TransferToCustody(r.Context(), caller(r), custodian, asset, amount); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transferView{Amount: amount.String()})
}

func (s *Server) ForceTransferToCustody(w http.ResponseWriter, r *http.Request) {
	custodian, asset, _, err := s.decodeCustody(r, true, false)
	if err != nil {
		fail(w, r, err)
		return
	}
	amount, err := s.engine.ForceTransferToCustody(r.Context(), caller(r), custodian, asset)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transferView{Amount: amountString(amount)})
}

func (s *Server) FreezeFunds(w http.ResponseWriter, r *http.Request) {
	_, asset, amount, err := s.decodeCustody(r, false, true)
	if err != nil {
		fail(w, r, err)
		return
	}
	if err := s.engine.FreezeFunds(r.Context(), caller(r), asset, amount); err != nil {
		fail(w, r, err)
		return
	}
	s.writeCustody(w, r, asset)
}

func (s *Server) UnfreezeFunds(w http.ResponseWriter, r *http.Request) {
	_, asset, amount, err := s.decodeCustody(r, false, true)
	if err != nil {
		fail(w, r, err)
		return
	}
	if err := s.engine.UnfreezeFunds(r.Context(), caller(r), asset, amount); err != nil {
		fail(w, r, err)
		return
	}
	s.writeCustody(w, r, asset)
}

func (s *Server) writeCustody(w http.ResponseWriter, r *http.Request, asset common.Address) {
	account, err := s.engine.CustodyAccount(r.Context(), asset)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCustodyView(account))
}

func (s *Server) GetLimits(w http.ResponseWriter, r *http.Request) {
	mint, err := s.engine.MintLimit(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	redeem, err := s.engine.RedeemLimit(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	now := s.clock()
	writeJSON(w, http.StatusOK, []limitView{newLimitView(mint, now), newLimitView(redeem, now)})
}

func (s *Server) PushPrice(w http.ResponseWriter, r *http.Request) {
	var body priceBody
	if err := decode(r, &body); err != nil {
		fail(w, r, err)
		return
	}
	price, ok := new(big.Int).SetString(body.Price, 10)
	if !ok {
		fail(w, r, fmt.Errorf("%w: %q", settlement.ErrInvalidPrice, body.Price))
		return
	}
	if err := s.oracle.Push(caller(r), price); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, priceBody{Price: price.String()})
}

func snapshotParam(r *http.Request) ([32]byte, error) {
	var id [32]byte
	raw, err := hexutil.Decode(chi.URLParam(r, "snapshot"))
	if err != nil || len(raw) != len(id) {
		return id, fmt.Errorf("%w: snapshot id must be 32 hex bytes", errBadRequest)
	}
	copy(id[:], raw)
	return id, nil
}

func (s *Server) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	id, err := snapshotParam(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	snapshot, err := s.rewards.Snapshot(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSnapshotView(snapshot))
}

func (s *Server) Claim(w http.ResponseWriter, r *http.Request) {
	id, err := snapshotParam(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	var body claimBody
	if err := decode(r, &body); err != nil {
		fail(w, r, err)
		return
	}
	amount, err := parseAmountParam("amount", body.Amount)
	if err != nil {
		fail(w, r, err)
		return
	}
	if err := s.rewards.Claim(r.Context(), id, caller(r), amount); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, claimBody{Amount: amount.String()})
}

func (s *Server) Submit(w http.ResponseWriter, r *http.Request) {
	var body models.Submission
	if err := decode(r, &body); err != nil {
		fail(w, r, err)
		return
	}
	sub, err := intake.Enqueue(caller(r), body)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, sub)
}

func (s *Server) GetSubmission(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, fmt.Errorf("%w: submission id", errBadRequest))
		return
	}
	sub, err := intake.FindSubmission(id)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}
