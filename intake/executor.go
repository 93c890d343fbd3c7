package intake

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/dan13ram/yusd-settlement/app"
	"github.com/dan13ram/yusd-settlement/models"
	"github.com/dan13ram/yusd-settlement/settlement"
	"github.com/dan13ram/yusd-settlement/store"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
)

const (
	OrderExecutorName = "ORDER EXECUTOR"

	defaultBatchSize = 50
	executeTimeout   = 30 * time.Second
	recordAttempts   = 3
)

// Engine is the part of the settlement engine the executor drives.
type Engine interface {
	Mint(ctx context.Context, caller common.Address, order settlement.Order, signature []byte) (settlement.MintResult, error)
	RequestRedeem(ctx context.Context, caller common.Address, order settlement.Order, signature []byte) (settlement.RedeemRequest, error)
	DepositIncome(ctx context.Context, caller common.Address, order settlement.Order, signature []byte) (settlement.IncomeResult, error)
	ApproveRedeemRequest(ctx context.Context, caller common.Address, id string, collateralAmount *big.Int) (settlement.RedeemOutcome, error)
	RejectRedeemRequest(ctx context.Context, caller common.Address, id string) (settlement.RedeemRequest, error)
	WithdrawRedeemRequest(ctx context.Context, caller common.Address, id string) (settlement.RedeemRequest, error)
}

// OrderExecutorRunner drains pending submissions oldest first.
type OrderExecutorRunner struct {
	engine     Engine
	batchSize  int64
	retryDelay time.Duration

	statusMu  sync.RWMutex
	processed int64
	failed    int64
}

func (x *OrderExecutorRunner) Run() {
	x.SyncSubmissions()
}

func (x *OrderExecutorRunner) Status() models.RunnerStatus {
	x.statusMu.RLock()
	defer x.statusMu.RUnlock()
	return models.RunnerStatus{
		Processed: strconv.FormatInt(x.processed, 10),
		Failed:    strconv.FormatInt(x.failed, 10),
	}
}

func (x *OrderExecutorRunner) count(success bool) {
	x.statusMu.Lock()
	defer x.statusMu.Unlock()
	x.processed++
	if !success {
		x.failed++
	}
}

func (x *OrderExecutorRunner) execute(ctx context.Context, sub models.Submission) (string, error) {
	caller := common.HexToAddress(sub.Caller)

	if orderKind(sub.Kind) {
		if sub.Order == nil {
			return "", fmt.Errorf("%w: missing order", settlement.ErrInvalidOrder)
		}
		order, err := store.OrderFromModel(*sub.Order)
		if err != nil {
			return "", err
		}
		signature, err := hexutil.Decode(sub.Signature)
		if err != nil {
			return "", fmt.Errorf("%w: %v", settlement.ErrInvalidSignature, err)
		}

		switch sub.Kind {
		case models.SubmissionMint:
			result, err := x.engine.Mint(ctx, caller, order, signature)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("minted %s, fee %s", result.Minted, result.Fee), nil
		case models.SubmissionRedeem:
			request, err := x.engine.RequestRedeem(ctx, caller, order, signature)
			if err != nil {
				return "", err
			}
			return request.ID, nil
		default:
			result, err := x.engine.DepositIncome(ctx, caller, order, signature)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("deposited %s, rewards %s, fee %s", result.Amount, result.Rewards, result.Fee), nil
		}
	}

	switch sub.Kind {
	case models.SubmissionApprove:
		amount, err := store.ParseAmount(sub.CollateralAmount)
		if err != nil {
			return "", fmt.Errorf("%w: collateral amount", settlement.ErrInvalidAmount)
		}
		outcome, err := x.engine.ApproveRedeemRequest(ctx, caller, sub.RequestId, amount)
		if err != nil {
			return "", err
		}
		if outcome.Rejected {
			return fmt.Sprintf("%s: %s", outcome.Request.Status, outcome.Reason), nil
		}
		return fmt.Sprintf("%s: released %s", outcome.Request.Status, outcome.Request.ReleasedCollateral), nil
	case models.SubmissionReject:
		request, err := x.engine.RejectRedeemRequest(ctx, caller, sub.RequestId)
		if err != nil {
			return "", err
		}
		return string(request.Status), nil
	case models.SubmissionWithdraw:
		request, err := x.engine.WithdrawRedeemRequest(ctx, caller, sub.RequestId)
		if err != nil {
			return "", err
		}
		return string(request.Status), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, sub.Kind)
}

// claim moves a pending submission to processing so that no later sync
// executes it again. It reports false when another run already took it.
func (x *OrderExecutorRunner) claim(sub models.Submission) (bool, error) {
	filter := bson.M{
		"_id":    sub.Id,
		"status": models.SubmissionStatusPending,
	}
	update := bson.M{"$set": bson.M{
		"status":     models.SubmissionStatusProcessing,
		"updated_at": time.Now(),
	}}
	matched, err := app.DB.UpdateOne(models.CollectionSubmissions, filter, update)
	if err != nil {
		return false, err
	}
	return matched > 0, nil
}

// record stores the outcome of a claimed submission, retrying a few times.
// Engine effects are already committed, so the submission is never put
// back to pending.
func (x *OrderExecutorRunner) record(sub models.Submission, update bson.M) error {
	filter := bson.M{
		"_id":    sub.Id,
		"status": models.SubmissionStatusProcessing,
	}
	var err error
	for attempt := 1; attempt <= recordAttempts; attempt++ {
		if _, err = app.DB.UpdateOne(models.CollectionSubmissions, filter, bson.M{"$set": update}); err == nil {
			return nil
		}
		log.Warn("[ORDER EXECUTOR] Error recording submission ", sub.Id.Hex(), " attempt ", attempt, ": ", err)
		if attempt < recordAttempts {
			time.Sleep(x.retryDelay)
		}
	}
	return err
}

// HandleSubmission claims one submission, executes it and records its
// outcome. It returns false when the submission could not be claimed or
// its outcome could not be stored.
func (x *OrderExecutorRunner) HandleSubmission(sub models.Submission) bool {
	if sub.Id == nil {
		log.Error("[ORDER EXECUTOR] Submission without id")
		return false
	}
	log.Debug("[ORDER EXECUTOR] Handling ", sub.Kind, " submission ", sub.Id.Hex())

	claimed, err := x.claim(sub)
	if err != nil {
		log.Error("[ORDER EXECUTOR] Error claiming submission ", sub.Id.Hex(), ": ", err)
		return false
	}
	if !claimed {
		log.Debug("[ORDER EXECUTOR] Submission ", sub.Id.Hex(), " already claimed")
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), executeTimeout)
	result, err := x.execute(ctx, sub)
	cancel()

	update := bson.M{
		"status":     models.SubmissionStatusSuccess,
		"result":     result,
		"error":      "",
		"updated_at": time.Now(),
	}
	if err != nil {
		log.Warn("[ORDER EXECUTOR] Submission ", sub.Id.Hex(), " failed: ", err)
		update["status"] = models.SubmissionStatusFailed
		update["error"] = err.Error()
	}
	x.count(err == nil)

	if err := x.record(sub, update); err != nil {
		log.Error("[ORDER EXECUTOR] Submission ", sub.Id.Hex(), " left processing with ", update["status"], " outcome ", result, ": ", err)
		return false
	}

	log.Info("[ORDER EXECUTOR] Submission ", sub.Id.Hex(), " ", update["status"])
	return true
}

func (x *OrderExecutorRunner) SyncSubmissions() bool {
	log.Debug("[ORDER EXECUTOR] Syncing pending submissions")

	filter := bson.M{"status": models.SubmissionStatusPending}
	sort := bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}

	var submissions []models.Submission
	err := app.DB.FindManySorted(models.CollectionSubmissions, filter, sort, x.batchSize, &submissions)
	if err != nil {
		log.Error("[ORDER EXECUTOR] Error fetching pending submissions: ", err)
		return false
	}
	log.Info("[ORDER EXECUTOR] Found ", len(submissions), " pending submissions")

	success := true
	for _, sub := range submissions {
		success = x.HandleSubmission(sub) && success
	}

	log.Info("[ORDER EXECUTOR] Synced pending submissions")
	return success
}

func NewOrderExecutor(engine Engine, batchSize int64) *OrderExecutorRunner {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &OrderExecutorRunner{
		engine:     engine,
		batchSize:  batchSize,
		retryDelay: time.Second,
	}
}

// NewOrderExecutorServiceWithLastHealth resumes the processed and failed
// counters reported by a previous run.
func NewOrderExecutorServiceWithLastHealth(engine Engine, wg *sync.WaitGroup, lastHealth models.ServiceHealth) app.Service {
	service := NewOrderExecutorService(engine, wg)
	runnerService, ok := service.(*app.RunnerService)
	if !ok {
		return service
	}
	if runner, ok := runnerService.Runner().(*OrderExecutorRunner); ok {
		runner.processed, _ = strconv.ParseInt(lastHealth.Processed, 10, 64)
		runner.failed, _ = strconv.ParseInt(lastHealth.Failed, 10, 64)
	}
	return service
}

// NewOrderExecutorService wraps the executor in a RunnerService, or returns
// an empty service when it is disabled.
func NewOrderExecutorService(engine Engine, wg *sync.WaitGroup) app.Service {
	if !app.Config.OrderExecutor.Enabled {
		log.Debug("[ORDER EXECUTOR] Order executor disabled")
		return app.NewEmptyService(wg)
	}

	log.Debug("[ORDER EXECUTOR] Initializing order executor")
	runner := NewOrderExecutor(engine, app.Config.OrderExecutor.BatchSize)
	interval := time.Duration(app.Config.OrderExecutor.IntervalMillis) * time.Millisecond
	service := app.NewRunnerService(OrderExecutorName, runner, wg, interval)
	log.Info("[ORDER EXECUTOR] Initialized order executor")
	return service
}
