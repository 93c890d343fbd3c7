package settlement

import "errors"

// Class groups settlement errors by the kind of failure they report.
type Class int

const (
	ClassInternal Class = iota
	ClassValidation
	ClassAuthentication
	ClassAuthorization
	ClassEconomic
	ClassStateMachine
)

func (c Class) String() string {
	switch c {
	case ClassValidation:
		return "validation"
	case ClassAuthentication:
		return "authentication"
	case ClassAuthorization:
		return "authorization"
	case ClassEconomic:
		return "economic"
	case ClassStateMachine:
		return "state_machine"
	default:
		return "internal"
	}
}

var (
	ErrInvalidOrder            = errors.New("invalid order")
	ErrInvalidAmount           = errors.New("invalid amount")
	ErrInvalidAssetAddress     = errors.New("invalid asset address")
	ErrInvalidCustodianAddress = errors.New("invalid custodian address")
	ErrStalePrice              = errors.New("stale price")
	ErrInvalidPrice            = errors.New("invalid price")

	ErrInvalidSignature = errors.New("invalid signature")
	ErrInvalidSender    = errors.New("invalid sender")
	ErrInvalidNonce     = errors.New("invalid nonce")
	ErrSignatureExpired = errors.New("signature expired")

	ErrUnauthorized = errors.New("unauthorized")

	ErrPriceSlippage               = errors.New("price slippage")
	ErrLimitReached                = errors.New("limit reached")
	ErrInsufficientContractBalance = errors.New("insufficient contract balance")
	ErrNotEnoughFunds              = errors.New("not enough funds")

	ErrInvalidRedeemRequest = errors.New("invalid redeem request")
	ErrUnknownRewards       = errors.New("unknown rewards")
	ErrAlreadyClaimed       = errors.New("already claimed")
)

var classes = map[error]Class{
	ErrInvalidOrder:            ClassValidation,
	ErrInvalidAmount:           ClassValidation,
	ErrInvalidAssetAddress:     ClassValidation,
	ErrInvalidCustodianAddress: ClassValidation,
	ErrStalePrice:              ClassValidation,
	ErrInvalidPrice:            ClassValidation,

	ErrInvalidSignature: ClassAuthentication,
	ErrInvalidSender:    ClassAuthentication,
	ErrInvalidNonce:     ClassAuthentication,
	ErrSignatureExpired: ClassAuthentication,

	ErrUnauthorized: ClassAuthorization,

	ErrPriceSlippage:               ClassEconomic,
	ErrLimitReached:                ClassEconomic,
	ErrInsufficientContractBalance: ClassEconomic,
	ErrNotEnoughFunds:              ClassEconomic,

	ErrInvalidRedeemRequest: ClassStateMachine,
	ErrUnknownRewards:       ClassStateMachine,
	ErrAlreadyClaimed:       ClassStateMachine,
}

// ClassOf returns the class of the first settlement sentinel found in err's
// chain, or ClassInternal.
func ClassOf(err error) Class {
	for sentinel, class := range classes {
		if errors.Is(err, sentinel) {
			return class
		}
	}
	return ClassInternal
}

// isPriceFailure reports whether err came from a price source that answered
// with an unusable value.
func isPriceFailure(err error) bool {
	return errors.Is(err, ErrStalePrice) || errors.Is(err, ErrInvalidPrice)
}
