package settlement

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// MemoryStore keeps settlement state in process. Commit validates the whole
// change set before applying any of it.
type MemoryStore struct {
	mu       sync.RWMutex
	nonces   map[string]UsedNonce
	requests map[string]RedeemRequest
	windows  map[LimitKind]RateLimitWindow
	custody  map[common.Address]CustodyState

	// FailCommit, when set, is returned by the next Commit.
	FailCommit error
}

var _ Store = &MemoryStore{}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nonces:   make(map[string]UsedNonce),
		requests: make(map[string]RedeemRequest),
		windows:  make(map[LimitKind]RateLimitWindow),
		custody:  make(map[common.Address]CustodyState),
	}
}

func nonceKey(requester common.Address, nonce *big.Int) string {
	return requester.Hex() + "/" + nonce.String()
}

func (s *MemoryStore) IsNonceUsed(_ context.Context, requester common.Address, nonce *big.Int) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.nonces[nonceKey(requester, nonce)]
	return ok, nil
}

func (s *MemoryStore) GetRedeemRequest(_ context.Context, id string) (RedeemRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	request, ok := s.requests[id]
	if !ok {
		return RedeemRequest{}, ErrNotFound
	}
	return request, nil
}

func (s *MemoryStore) GetRateLimitWindow(_ context.Context, kind LimitKind) (RateLimitWindow, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	window, ok := s.windows[kind]
	if ok {
		window.Accumulated = cloneInt(window.Accumulated)
	}
	return window, ok, nil
}

func (s *MemoryStore) GetCustodyState(_ context.Context, asset common.Address) (CustodyState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.custody[asset]
	if !ok {
		return CustodyState{}, false, nil
	}
	return state.clone(), true, nil
}

func (s *MemoryStore) Commit(_ context.Context, changes ChangeSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailCommit != nil {
		err := s.FailCommit
		s.FailCommit = nil
		return err
	}

	for _, used := range changes.Nonces {
		if _, ok := s.nonces[nonceKey(used.Requester, used.Nonce)]; ok {
			return ErrInvalidNonce
		}
	}
	for _, request := range changes.NewRequests {
		if _, ok := s.requests[request.ID]; ok {
			return fmt.Errorf("%w: %s already exists", ErrInvalidRedeemRequest, request.ID)
		}
	}
	for _, update := range changes.RequestUpdates {
		current, ok := s.requests[update.Request.ID]
		if !ok || current.Status != update.From {
			return fmt.Errorf("%w: %s changed concurrently", ErrInvalidRedeemRequest, update.Request.ID)
		}
	}

	for _, used := range changes.Nonces {
		s.nonces[nonceKey(used.Requester, used.Nonce)] = used
	}
	for _, request := range changes.NewRequests {
		s.requests[request.ID] = request
	}
	for _, update := range changes.RequestUpdates {
		s.requests[update.Request.ID] = update.Request
	}
	for kind, window := range changes.Windows {
		s.windows[kind] = window
	}
	for asset, state := range changes.Custody {
		s.custody[asset] = state.clone()
	}
	return nil
}
